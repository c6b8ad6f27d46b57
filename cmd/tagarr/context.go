package main

import (
	"strings"
	"sync"

	"github.com/tagarr/tagarr/internal/analyzer"
	"github.com/tagarr/tagarr/internal/classify"
	"github.com/tagarr/tagarr/internal/config"
	"github.com/tagarr/tagarr/internal/logger"
	"github.com/tagarr/tagarr/internal/notification"
	"github.com/tagarr/tagarr/internal/registry"
	"github.com/tagarr/tagarr/internal/rules"
	"github.com/tagarr/tagarr/internal/runlock"
	"github.com/tagarr/tagarr/internal/tagging"
)

type globalFlags struct {
	config string
	dryRun bool
	debug  bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	logOnce sync.Once
	log     *logger.Logger
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

// ensureConfig loads and validates the configuration once. Command-line
// flags override file and environment values.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.dryRun {
			cfg.DryRun = true
		}
		if c.flags.debug {
			cfg.Debug = true
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *logger.Logger {
	c.logOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.log = logger.New(logger.Config{Level: "info"})
			return
		}
		c.log = logger.New(logger.Config{
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
			Path:       cfg.Logging.Path,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
			Debug:      cfg.Debug,
		})
	})
	return c.log
}

func (c *commandContext) close() {
	if c.log != nil {
		_ = c.log.Close()
	}
}

// app holds the collaborators wired from configuration.
type app struct {
	cfg       *config.Config
	primary   registry.Registry
	secondary registry.Registry
	analyzer  *analyzer.DoviTool
	rules     *rules.Store
	notifier  *notification.Service
	tagging   *tagging.Service
	lock      *runlock.Lock
}

func (c *commandContext) buildApp() (*app, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	log := c.logger()

	a := &app{
		cfg:     cfg,
		primary: registry.NewClient(cfg.Primary.ClientConfig()),
		rules:   rules.NewStore(cfg.RulesFile),
		lock:    runlock.New(cfg.LockFile),
	}
	if cfg.Secondary.Enabled {
		a.secondary = registry.NewClient(cfg.Secondary.ClientConfig())
	}

	var extractor classify.ProfileExtractor
	if cfg.Classifiers.HDR.Enabled {
		a.analyzer = analyzer.NewDoviTool(cfg.Analyzer.AnalyzerSettings(), &log.Logger)
		extractor = a.analyzer
	}

	notifiers, err := notification.NewFactory(&log.Logger).Create(&cfg.Notifications)
	if err != nil {
		return nil, err
	}
	a.notifier = notification.NewService(notifiers, cfg.Notifications.NotifyOn, &log.Logger)

	a.tagging = tagging.NewService(a.primary, a.secondary, extractor, a.rules, a.notifier, cfg.TaggingSettings(), &log.Logger)
	a.tagging.SetLocker(a.lock)
	return a, nil
}

func (a *app) registries() []registry.Registry {
	regs := []registry.Registry{a.primary}
	if a.secondary != nil {
		regs = append(regs, a.secondary)
	}
	return regs
}
