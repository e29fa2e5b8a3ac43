package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"nugget/internal/batch"
	"nugget/internal/config"
	"nugget/internal/logging"
	"nugget/internal/pipeline"
	"nugget/internal/stages"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configFile string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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
		c.configFile = resolved
	})
	return c.config, c.configErr
}

// configPath reports the resolved configuration file path. Only meaningful
// after ensureConfig has succeeded.
func (c *commandContext) configPath() string {
	return c.configFile
}

// environment bundles everything a batch command needs. Close releases the
// store and the workspace lock.
type environment struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *batch.Store
	manager *batch.Manager
	lock    *flock.Flock
}

func (e *environment) Close() error {
	var firstErr error
	if e.manager != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		firstErr = e.manager.Shutdown(shutdownCtx)
		cancel()
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// openEnvironment wires the store, stages, and manager. When exclusive is
// set, a workspace flock is taken so two processes cannot run jobs against
// the same database concurrently.
func (c *commandContext) openEnvironment(exclusive bool) (*environment, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize logging: %w", err)
	}

	env := &environment{cfg: cfg, logger: logger}
	if exclusive {
		lock := flock.New(filepath.Join(cfg.Paths.WorkspaceDir, "nugget.lock"))
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire workspace lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("another nugget process is already running jobs in %s", cfg.Paths.WorkspaceDir)
		}
		env.lock = lock
	}

	store, err := batch.Open(cfg)
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("open job store: %w", err)
	}
	env.store = store
	logger.Debug("job store opened", logging.String("path", store.Path()))

	stageSet, fetcher, err := stages.Build(cfg, logger)
	if err != nil {
		env.Close()
		return nil, err
	}
	runner, err := pipeline.NewRunner(stageSet, logger)
	if err != nil {
		env.Close()
		return nil, err
	}
	manager, err := batch.NewManager(cfg, store, runner, logger,
		batch.WithPlaylistExpander(fetcher))
	if err != nil {
		env.Close()
		return nil, err
	}
	env.manager = manager
	return env, nil
}

func (c *commandContext) withEnvironment(exclusive bool, fn func(*environment) error) error {
	env, err := c.openEnvironment(exclusive)
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}
