// Package logger provides structured logging for chainkit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers. The chain and stream packages log through a
// *Logger passed in their options and fall back to the global logger.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("chain")
//	log.Debug("flush", logger.Fields("pipe", name))
package logger
