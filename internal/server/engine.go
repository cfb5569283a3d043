package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/eternalApril/objectdb/internal/config"
	"github.com/eternalApril/objectdb/internal/database"
	"github.com/eternalApril/objectdb/internal/docstore"
	"github.com/eternalApril/objectdb/internal/persistence"
	"github.com/eternalApril/objectdb/internal/resp"
)

// maxSweepRounds bounds how many times one tick repeats a sweep that keeps finding expired keys
const maxSweepRounds = 16

// Engine coordinates the execution of commands and manages the background tasks of the store
type Engine struct {
	commands  map[string]command     // Registry of available commands (the key is the command name in uppercase)
	db        *database.DB           // Object database the commands run against
	store     docstore.Collection    // Collection behind db, for sweeps and snapshots
	cfg       *config.Config         // Configuration engine
	snapshots *persistence.Snapshots // nil unless the store can be snapshotted
	metrics   *commandMetrics        // nil without a registerer
	stop      chan struct{}          // Channel for the background tasks stop signal
	stopOnce  sync.Once              // Ensures that the stop happens only once
	wg        sync.WaitGroup
	logger    *zap.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine) error

// WithRegisterer records command metrics on the registerer
func WithRegisterer(reg prometheus.Registerer) EngineOption {
	return func(e *Engine) error {
		m, err := newCommandMetrics(reg)
		if err != nil {
			return fmt.Errorf("register command metrics: %w", err)
		}
		e.metrics = m
		return nil
	}
}

// NewEngine initializes the engine, registers the commands, and, when the store
// supports it and the config enables it, loads the last snapshot and starts the
// background sweep and periodic snapshots
func NewEngine(db *database.DB, store docstore.Collection, cfg *config.Config, logger *zap.Logger, opts ...EngineOption) (*Engine, error) {
	engine := &Engine{
		commands: make(map[string]command),
		db:       db,
		store:    store,
		cfg:      cfg,
		stop:     make(chan struct{}),
		logger:   logger.Named("engine"),
	}

	for _, opt := range opts {
		if err := opt(engine); err != nil {
			return nil, err
		}
	}

	engine.registerCommands()

	if cfg.Snapshot.Enabled {
		if snapshotter, ok := store.(docstore.Snapshotter); ok {
			engine.snapshots = persistence.NewSnapshots(cfg.Snapshot.Filename, logger)
			if err := engine.snapshots.Load(snapshotter); err != nil {
				return nil, err
			}

			if cfg.Snapshot.Interval > 0 {
				engine.goBackground(func() { engine.autoSaveLoop(snapshotter, cfg.Snapshot.Interval) })
			}
		} else {
			engine.logger.Info("snapshots disabled, the store persists itself")
		}
	}

	if cfg.Sweep.Enabled {
		if sweeper, ok := store.(docstore.Sweeper); ok {
			engine.goBackground(func() { engine.sweepLoop(sweeper) })
		}
	}

	return engine, nil
}

func (e *Engine) goBackground(task func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		task()
	}()
}

func (e *Engine) autoSaveLoop(src docstore.Snapshotter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.snapshots.Save(src); err != nil {
				e.logger.Error("auto-save snapshot failed", zap.Error(err))
			}
		case <-e.stop:
			return
		}
	}
}

// sweepLoop triggers the active expiration mechanism
func (e *Engine) sweepLoop(sweeper docstore.Sweeper) {
	ticker := time.NewTicker(e.cfg.Sweep.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.sweep(sweeper)
		case <-e.stop:
			e.logger.Info("sweep stopped")
			return
		}
	}
}

// sweep samples expiring keys, repeating while the expired share stays above the threshold
func (e *Engine) sweep(sweeper docstore.Sweeper) {
	for range maxSweepRounds {
		ratio := sweeper.DeleteExpired(e.cfg.Sweep.SamplesPerCheck)

		if ratio > 0 && e.logger.Core().Enabled(zap.DebugLevel) {
			e.logger.Debug("sweep deleted expired", zap.Float64("expired_ratio", ratio))
		}

		if ratio <= e.cfg.Sweep.MatchThreshold {
			return
		}
	}
}

// register adds a new command to the engine. The command name is uppercase
func (e *Engine) register(name string, cmd command) {
	e.commands[strings.ToUpper(name)] = cmd
}

// Execute finds the command by name and executes it with the passed arguments.
// If the command is not found, returns an error in the RESP format
func (e *Engine) Execute(ctx context.Context, name string, args []resp.Value) resp.Value {
	name = strings.ToUpper(name)

	if e.logger.Core().Enabled(zap.DebugLevel) {
		// Log the command name and number of args
		e.logger.Debug("executing command",
			zap.String("cmd", name),
			zap.Int("args_count", len(args)),
		)
	}

	cmd, ok := e.commands[name]
	if !ok {
		return resp.MakeError(fmt.Sprintf("ERR unknown command '%s'", name))
	}

	if !commandRegistry[name].acceptsArgs(len(args)) {
		return resp.MakeErrorWrongNumberOfArguments(strings.ToLower(name))
	}

	start := time.Now()
	res := cmd.execute(&commandContext{ctx: ctx, args: args, db: e.db})
	e.metrics.observe(name, res.Type == resp.TypeError, time.Since(start))

	return res
}

// Shutdown stops the background tasks and writes a last snapshot
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		close(e.stop)
		e.wg.Wait()
		e.logger.Info("background tasks stopped")

		if e.snapshots == nil {
			return
		}
		if err := e.snapshots.Save(e.store.(docstore.Snapshotter)); err != nil {
			e.logger.Error("final snapshot failed", zap.Error(err))
		}
	})
}
