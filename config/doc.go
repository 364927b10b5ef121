// Package config loads service configuration for dikit hosts.
//
// It uses Viper to read a YAML file found in the standard locations
// (cmd/<service>/config.yml, config/config.yml, ./config.yml), loads a .env
// file with godotenv, and lets environment variables override file values.
//
// # Usage
//
//	var cfg config.ServiceConfig
//	err := config.LoadConfig("dikit-inspect", &cfg, config.WithEnvPrefix("DIKIT"))
//
// With the DIKIT prefix, DIKIT_REGISTRY_WARM_ON_START=true sets
// registry.warm_on_start.
package config
