package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Verbose enables debug output when true
var Verbose bool

// Debugf prints debug messages to stderr when Verbose is true. Stderr
// keeps the chatter out of pipeable command output.
func Debugf(format string, args ...any) {
	if Verbose {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// NewLogger builds the zap logger handed to the pixel library: a
// development logger at debug level in verbose mode, a nop logger
// otherwise.
func NewLogger() *zap.Logger {
	if !Verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}
