// Package logger provides the leveled logging utility used across the Scour
// data-quality pipeline. It wraps the standard log package and filters output
// by the configured level.
package logger

import (
	"fmt"
	"log"
	"strings"
)

// LogLevel represents a logging verbosity level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// logLevel is the global level; only messages at or above it are emitted.
var logLevel = LevelInfo

// SetLogLevel sets the global log level from its string form
// ("DEBUG", "INFO", "WARN", "ERROR", "FATAL", case-insensitive).
// Unknown values fall back to INFO.
func SetLogLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = LevelDebug
	case "INFO":
		logLevel = LevelInfo
	case "WARN":
		logLevel = LevelWarn
	case "ERROR":
		logLevel = LevelError
	case "FATAL":
		logLevel = LevelFatal
	default:
		fmt.Printf("Unknown log level '%s' specified. Defaulting to INFO level.\n", level)
		logLevel = LevelInfo
	}
}

// Debugf logs a DEBUG level message.
func Debugf(format string, v ...interface{}) {
	if logLevel <= LevelDebug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Infof logs an INFO level message.
func Infof(format string, v ...interface{}) {
	if logLevel <= LevelInfo {
		log.Printf("[INFO] "+format, v...)
	}
}

// Warnf logs a WARN level message.
func Warnf(format string, v ...interface{}) {
	if logLevel <= LevelWarn {
		log.Printf("[WARN] "+format, v...)
	}
}

// Errorf logs an ERROR level message.
func Errorf(format string, v ...interface{}) {
	if logLevel <= LevelError {
		log.Printf("[ERROR] "+format, v...)
	}
}

// Fatalf logs a FATAL level message and terminates the process.
func Fatalf(format string, v ...interface{}) {
	log.Fatalf("[FATAL] "+format, v...)
}
