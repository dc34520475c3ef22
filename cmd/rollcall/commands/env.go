package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dyluth/rollcall/internal/auth"
	"github.com/dyluth/rollcall/internal/config"
	"github.com/dyluth/rollcall/internal/logging"
	"github.com/dyluth/rollcall/internal/pending"
	"github.com/dyluth/rollcall/internal/printer"
	"github.com/dyluth/rollcall/internal/syncer"
	"github.com/dyluth/rollcall/pkg/remotestore"
	"go.uber.org/zap"
)

// Drain lease holders. Only an agent reacts to the trigger signal.
const (
	holderAgent = "agent"
	holderSync  = "sync"
)

// drainLeaseTTL bounds how long a crashed process can keep others from draining.
const drainLeaseTTL = 30 * time.Second

// appEnv is everything a command needs, built from configuration.
type appEnv struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *remotestore.Client
	queue    pending.Queue
	identity auth.Provider
	closers  []func() error
}

// openEnv loads configuration and connects the remote store and local queue.
// The store connects lazily, so an unreachable server is not an error here.
// A queue file that cannot be opened falls back to an in-memory queue with a warning.
func openEnv() (*appEnv, error) {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return nil, printer.Error("invalid configuration", err.Error(), []string{
			fmt.Sprintf("Check %s, or run 'rollcall init' to create one", configPath),
		})
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, printer.Error("invalid logging configuration", err.Error(), nil)
	}

	env := &appEnv{
		cfg:      cfg,
		logger:   logger,
		identity: auth.NewStaticProvider(cfg.Identity.UserID, cfg.Identity.DisplayName, cfg.Identity.Role),
	}
	env.closers = append(env.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		env.Close()
		return nil, printer.Error("invalid redis.url", err.Error(), nil)
	}
	store, err := remotestore.NewClient(redisOpts, cfg.Namespace, remotestore.WithLogger(logger))
	if err != nil {
		env.Close()
		return nil, printer.Error("failed to create remote store client", err.Error(), nil)
	}
	env.store = store
	env.closers = append(env.closers, store.Close)

	queueOpts := []pending.Option{
		pending.WithCollection(cfg.Queue.Collection),
		pending.WithLogger(logger),
	}
	sq, err := pending.OpenSQLite(cfg.Queue.Path, queueOpts...)
	if err != nil {
		logger.Error("pending queue unavailable, using in-memory queue",
			zap.String("path", cfg.Queue.Path), zap.Error(err))
		printer.Warning("Local queue %s could not be opened, offline saves will not survive a restart\n", cfg.Queue.Path)
		env.queue = pending.NewMemory(queueOpts...)
	} else {
		env.queue = sq
		env.closers = append(env.closers, sq.Close)
	}

	return env, nil
}

// Close releases resources in reverse order of acquisition.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warn("close failed", zap.Error(err))
		}
	}
	e.closers = nil
}

// queueDepth reports how many sessions are waiting to sync.
func (e *appEnv) queueDepth(ctx context.Context) int {
	switch q := e.queue.(type) {
	case *pending.SQLite:
		return q.Len(ctx)
	case *pending.Memory:
		return q.Len()
	}
	entries, _ := e.queue.ListPending(ctx)
	return len(entries)
}

// engineOptions returns the sync engine options for a process acting as holder.
// The durable queue is shared by every rollcall process on the device, so each
// drain round takes its lease; an in-memory queue is private to this process.
func (e *appEnv) engineOptions(holder string) []syncer.Option {
	if q, ok := e.queue.(*pending.SQLite); ok {
		return []syncer.Option{syncer.WithLocker(q.Lease(holder, os.Getpid(), drainLeaseTTL))}
	}
	return nil
}
