package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"aacnorm/internal/config"
	"aacnorm/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) isVerbose() bool {
	return c.verbose != nil && *c.verbose
}

// newLogger writes to the configured log file, mirrored to stderr in
// verbose mode.
func (c *commandContext) newLogger(cfg *config.Config) (*slog.Logger, error) {
	var extra []string
	if c.isVerbose() {
		extra = append(extra, "stderr")
	}
	return logging.NewFromConfig(cfg, extra...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
