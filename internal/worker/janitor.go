// Package worker runs background maintenance for the submission pipeline.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/observability"
	"go.uber.org/zap"
)

// Deleter removes objects from the object store.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Expirer drops state that has been idle for longer than idle and reports
// how much it dropped.
type Expirer interface {
	Expire(idle time.Duration) int
}

type JanitorConfig struct {
	Objects      Deleter
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	PollInterval time.Duration
	// MaxAttempts before an orphan is given up on and logged for manual cleanup.
	MaxAttempts   int
	DeleteTimeout time.Duration
	// Drafts, when set, are expired on every tick after DraftIdleTTL.
	Drafts       Expirer
	DraftIdleTTL time.Duration
}

type orphan struct {
	attempts int
	lastErr  error
}

// Janitor retries deletes of objects a failed submission could not clean up.
type Janitor struct {
	config *JanitorConfig

	mu      sync.Mutex
	pending map[string]*orphan

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewJanitor(config *JanitorConfig) *Janitor {
	if config.PollInterval == 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 10
	}
	if config.DeleteTimeout == 0 {
		config.DeleteTimeout = 10 * time.Second
	}
	if config.DraftIdleTTL == 0 {
		config.DraftIdleTTL = 24 * time.Hour
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Janitor{
		config:  config,
		pending: make(map[string]*orphan),
		done:    make(chan struct{}),
	}
}

// Enqueue schedules key for deletion.
func (j *Janitor) Enqueue(key string, cause error) {
	j.mu.Lock()
	if _, ok := j.pending[key]; !ok {
		j.pending[key] = &orphan{lastErr: cause}
	}
	n := len(j.pending)
	j.mu.Unlock()

	j.config.Metrics.SetJanitorPending(n)
	j.config.Logger.Info("orphaned object queued for cleanup", zap.String("key", key), zap.Error(cause))
}

// Pending returns the number of objects still waiting for cleanup.
func (j *Janitor) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.pending)
}

func (j *Janitor) Start(ctx context.Context) {
	j.wg.Add(1)
	go j.run(ctx)
	j.config.Logger.Info("janitor started", zap.Duration("poll_interval", j.config.PollInterval))
}

// Stop ends the loop and waits for an in-progress sweep to finish.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() { close(j.done) })
	j.wg.Wait()
	j.config.Logger.Info("janitor stopped", zap.Int("pending", j.Pending()))
}

func (j *Janitor) run(ctx context.Context) {
	defer j.wg.Done()
	ticker := time.NewTicker(j.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(ctx)
			j.ExpireDrafts()
		}
	}
}

// ExpireDrafts drops drafts idle for longer than DraftIdleTTL.
func (j *Janitor) ExpireDrafts() int {
	if j.config.Drafts == nil {
		return 0
	}
	n := j.config.Drafts.Expire(j.config.DraftIdleTTL)
	if n > 0 {
		j.config.Logger.Info("expired idle drafts", zap.Int("count", n), zap.Duration("idle_ttl", j.config.DraftIdleTTL))
	}
	return n
}

// Sweep attempts every pending delete once.
func (j *Janitor) Sweep(ctx context.Context) {
	j.mu.Lock()
	keys := make([]string, 0, len(j.pending))
	for k := range j.pending {
		keys = append(keys, k)
	}
	j.mu.Unlock()

	for _, key := range keys {
		if ctx.Err() != nil {
			return
		}
		dctx, cancel := context.WithTimeout(ctx, j.config.DeleteTimeout)
		err := j.config.Objects.Delete(dctx, key)
		cancel()

		j.mu.Lock()
		o, ok := j.pending[key]
		switch {
		case !ok:
		case err == nil:
			delete(j.pending, key)
			j.config.Logger.Info("orphaned object removed", zap.String("key", key))
		case o.attempts+1 >= j.config.MaxAttempts:
			delete(j.pending, key)
			j.config.Logger.Error("giving up on orphaned object",
				zap.String("key", key),
				zap.Int("attempts", o.attempts+1),
				zap.Error(err),
			)
		default:
			o.attempts++
			o.lastErr = err
			j.config.Logger.Warn("orphan cleanup failed", zap.String("key", key), zap.Error(err))
		}
		n := len(j.pending)
		j.mu.Unlock()
		j.config.Metrics.SetJanitorPending(n)
	}
}
