package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/listenupapp/listenup-ingest/internal/config"
	"github.com/listenupapp/listenup-ingest/internal/logger"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// logWriter receives log output; stderr when nil.
	logWriter io.Writer
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

// ensureConfig loads the --config file once. Without one the defaults apply;
// commands never touch the server's database or media root.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		if path == "" {
			cfg := config.Default()
			c.config = &cfg
			return
		}
		c.config, c.configErr = config.LoadFile(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) logger() *slog.Logger {
	w := c.logWriter
	if w == nil {
		w = os.Stderr
	}
	level := "warn"
	if cfg, err := c.ensureConfig(); err == nil && cfg.Logger.Level != "" {
		level = cfg.Logger.Level
	}
	return logger.New(logger.Config{
		Writer: w,
		Level:  logger.ParseLevel(level),
	}).Logger
}
