// Package logging constructs the engine's zap loggers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a logger appropriate for the environment: human-readable
// development output for "local", JSON production output otherwise.
func New(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
