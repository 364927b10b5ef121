package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/dikit/logger"
)

// FileSystem interface for file operations (useful for testing).
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
	Getwd() (string, error)
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (rfs *RealFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (rfs *RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

func (rfs *RealFileSystem) Getwd() (string, error) {
	return os.Getwd()
}

// FileResolver finds the config and env files for a service.
type FileResolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths. Empty
// means nothing was found.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns the explicit paths from opts, searching the standard
// locations for whichever is unset.
func (cr *FileResolver) ResolveFiles(serviceName string, opts LoaderConfig) ResolvedFiles {
	resolved := ResolvedFiles{
		ConfigFile: opts.ConfigFile,
		EnvFile:    opts.EnvFile,
	}
	names := serviceNames(serviceName)
	if resolved.ConfigFile == "" {
		resolved.ConfigFile = cr.first(configCandidates(names))
	}
	if resolved.EnvFile == "" {
		resolved.EnvFile = cr.first(envCandidates(serviceName, names))
	}
	return resolved
}

func (cr *FileResolver) first(paths []string) string {
	for _, p := range paths {
		if cr.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

// serviceNames returns the service name and, for hyphenated names, its last
// segment: "dikit-inspect" is also searched as "inspect".
func serviceNames(serviceName string) []string {
	idx := strings.LastIndex(serviceName, "-")
	if idx == -1 || idx == len(serviceName)-1 {
		return []string{serviceName}
	}
	return []string{serviceName, serviceName[idx+1:]}
}

// configCandidates lists config.yml/config.yaml under cmd/<name> for each
// name, then the shared config directory and the working directory.
func configCandidates(names []string) []string {
	var paths []string
	for _, name := range names {
		for _, dir := range dirsByPrefix("cmd/" + name) {
			paths = append(paths, dir+"/config.yml", dir+"/config.yaml")
		}
	}
	return append(paths,
		"./config/config.yml",
		"../config/config.yml",
		"./config.yml",
		"./config.yaml",
	)
}

// envCandidates lists .env.<service> before .env, each across every search
// directory.
func envCandidates(serviceName string, names []string) []string {
	var dirs []string
	for _, name := range names {
		dirs = append(dirs, buildEnvSearchPaths(name)...)
	}

	var paths []string
	for _, file := range []string{".env." + serviceName, ".env"} {
		for _, dir := range dirs {
			if dir == "" {
				paths = append(paths, file)
			} else {
				paths = append(paths, dir+"/"+file)
			}
		}
	}
	return paths
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // Direct config file path (optional)
	EnvFile    string // Direct env file path (optional)
	EnvPrefix  string // Only bind env vars with this prefix, e.g. "DIKIT" (optional)
}

// LoaderOption is a functional option for LoadConfig.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix binds only environment variables starting with prefix + "_",
// with the prefix stripped: DIKIT_REGISTRY_NAME sets registry.name.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = strings.TrimSuffix(strings.ToUpper(prefix), "_") }
}

// LoadConfig loads configuration for a service into the provided cfg struct.
// It searches for config.yml and .env files in standard locations, binds
// environment variables, and unmarshals the result into cfg.
func LoadConfig(serviceName string, cfg interface{}, opts ...LoaderOption) error {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.FileSystem == nil {
		lc.FileSystem = &RealFileSystem{}
	}

	resolver := &FileResolver{FileSystem: lc.FileSystem}
	files := resolver.ResolveFiles(serviceName, lc)

	return loadFromResolvedFiles(serviceName, cfg, files, lc)
}

// loadFromResolvedFiles loads configuration from specific files.
// A config file that exists but cannot be parsed is an error; a missing
// file leaves cfg to defaults and environment variables.
func loadFromResolvedFiles(serviceName string, cfg interface{}, files ResolvedFiles, lc LoaderConfig) error {
	v := viper.New()
	fs := lc.FileSystem

	// 1. Load YAML config first (base configuration)
	if files.ConfigFile != "" && fs.Exists(files.ConfigFile) {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", files.ConfigFile, err)
		}
	}

	// 2. Load .env file so its variables are visible to the binding below
	if files.EnvFile != "" && fs.Exists(files.EnvFile) {
		if err := fs.LoadEnv(files.EnvFile); err != nil {
			logger.Warn("failed to load .env file", logger.Fields("path", files.EnvFile, logger.FieldError, err.Error()))
		}
	}

	// 3. Environment variables override file values
	if err := bindEnv(v, cfg, lc.EnvPrefix); err != nil {
		return fmt.Errorf("failed to bind environment for service %s: %w", serviceName, err)
	}

	// 4. Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config for service %s: %w", serviceName, err)
	}

	return nil
}

// buildEnvSearchPaths lists the directories searched for .env files.
func buildEnvSearchPaths(serviceName string) []string {
	var paths []string
	paths = append(paths, dirsByPrefix("cmd/"+serviceName)...)
	paths = append(paths, dirsByPrefix("config/"+serviceName)...)
	paths = append(paths, dirsByPrefix("config")...)
	paths = append(paths, dirsByPrefix("")...)
	return paths
}

func dirsByPrefix(path string) []string {
	if path == "" {
		return []string{".", "..", "../..", ""}
	}
	return []string{"./" + path, "../" + path, "../../" + path}
}

// bindEnv binds every key cfg can hold to one environment variable, the key
// upper-cased with dots turned into underscores: registry.warm_on_start reads
// REGISTRY_WARM_ON_START, or DIKIT_REGISTRY_WARM_ON_START with prefix DIKIT.
func bindEnv(v *viper.Viper, cfg interface{}, prefix string) error {
	for _, key := range configKeys(reflect.TypeOf(cfg), "") {
		if err := v.BindEnv(key, envName(prefix, key)); err != nil {
			return err
		}
	}
	return nil
}

func envName(prefix, key string) string {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// configKeys lists the dotted mapstructure keys of a config struct. Embedded
// structs tagged ",squash" contribute their keys at the parent level.
func configKeys(t reflect.Type, parent string) []string {
	t = derefType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}

	var keys []string
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			continue
		}
		ft := derefType(f.Type)
		if f.Anonymous && strings.Contains(opts, "squash") {
			keys = append(keys, configKeys(ft, parent)...)
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		key := name
		if parent != "" {
			key = parent + "." + name
		}
		if ft.Kind() == reflect.Struct && ft != timeType {
			keys = append(keys, configKeys(ft, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

var timeType = reflect.TypeFor[time.Time]()

func derefType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
