// Package logger provides structured logging for dikit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers with structured fields. The registry logs
// through a logger tagged with the "di" component.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("di")
//	log.Debug("singleton constructed", logger.Fields("service", "*app.DB"))
package logger
