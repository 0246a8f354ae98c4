package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"discripper/internal/config"
	"discripper/internal/disc"
	"discripper/internal/drives"
	"discripper/internal/jobs"
	"discripper/internal/logging"
	"discripper/internal/notifications"
	"discripper/internal/rename"
	"discripper/internal/store"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	ctl        disc.Controller
	enumerator drives.Enumerator
	notifier   notifications.Service
	logger     *slog.Logger
}

// contextOption replaces a system collaborator; tests use it to avoid real
// drives and binaries.
type contextOption func(*commandContext)

func withController(ctl disc.Controller) contextOption {
	return func(c *commandContext) { c.ctl = ctl }
}

func withEnumerator(fn drives.Enumerator) contextOption {
	return func(c *commandContext) { c.enumerator = fn }
}

func withNotifier(n notifications.Service) contextOption {
	return func(c *commandContext) { c.notifier = n }
}

func withLogger(logger *slog.Logger) contextOption {
	return func(c *commandContext) { c.logger = logger }
}

func newCommandContext(configFlag *string, opts ...contextOption) *commandContext {
	c := &commandContext{configFlag: configFlag}
	for _, opt := range opts {
		opt(c)
	}
	return c
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

func (c *commandContext) controller() disc.Controller {
	if c.ctl == nil {
		c.ctl = disc.NewSystem(disc.ExecRunner{})
	}
	return c.ctl
}

func (c *commandContext) notifications(cfg *config.Config) notifications.Service {
	if c.notifier != nil {
		return c.notifier
	}
	return notifications.NewService(cfg)
}

// commandLogger logs to stderr only; file logs belong to the daemon and
// job processes.
func (c *commandContext) commandLogger(cfg *config.Config) *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	logger, err := logging.NewFromConfig(cfg, "")
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// env bundles the store-backed components a command works with.
type env struct {
	cfg      *config.Config
	store    *store.Store
	jobs     *jobs.Manager
	registry *drives.Registry
	renamer  *rename.Engine
	logger   *slog.Logger
}

// withEnv opens the store for the duration of fn.
func (c *commandContext) withEnv(fn func(*env) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	logger := c.commandLogger(cfg)
	var regOpts []drives.Option
	if c.enumerator != nil {
		regOpts = append(regOpts, drives.WithEnumerator(c.enumerator))
	}
	return fn(&env{
		cfg:      cfg,
		store:    st,
		jobs:     jobs.NewManager(cfg, st, c.controller(), logger),
		registry: drives.NewRegistry(st, c.controller(), logger, regOpts...),
		renamer:  rename.New(cfg, st, c.notifications(cfg), logger),
		logger:   logger,
	})
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
