package main

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Wt-Zhou/arxiv-agent/internal/config"
	"github.com/Wt-Zhou/arxiv-agent/internal/logging"
)

const defaultConfigPath = "config.yaml"

type commandContext struct {
	configFlag *string

	once   sync.Once
	config config.Config
	err    error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads the configuration once. Without --config a missing
// config.yaml is tolerated and defaults plus the environment apply.
func (c *commandContext) ensureConfig() (config.Config, error) {
	c.once.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		optional := path == ""
		if optional {
			path = defaultConfigPath
		}
		c.config, c.err = config.Load(path, optional)
	})
	return c.config, c.err
}

func (c *commandContext) logger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogEnv, cfg.LogLevel)
}
