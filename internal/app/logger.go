package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/mdpanel/internal/config"
)

// NewLogger builds the process logger: JSON in production, console output
// in development.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
