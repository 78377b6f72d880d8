package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/dunamismax/iconflow/internal/config"
)

func New(name string, cfg config.LogConfig) hclog.Logger {
	return NewWithOutput(name, cfg, os.Stdout)
}

func NewWithOutput(name string, cfg config.LogConfig, out io.Writer) hclog.Logger {
	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     out,
		JSONFormat: cfg.JSON,
	})
}
