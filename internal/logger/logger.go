// Package logger provides the process-wide structured logger.
package logger

import (
	"go.uber.org/zap"
)

var instance *zap.Logger

// Init initializes the global logger. The production configuration
// writes JSON to stdout.
func Init() error {
	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	instance = log
	return nil
}

// Get returns the global logger, creating a fallback if Init was not
// called.
func Get() *zap.Logger {
	if instance == nil {
		instance, _ = zap.NewProduction()
	}
	return instance
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	if instance != nil {
		_ = instance.Sync()
	}
}
