package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/veridian/hvs/pkg/store"
)

// DefaultPollInterval is how often an idle worker checks the queue.
const DefaultPollInterval = 5 * time.Second

// Pool runs a fixed number of workers over the verification queue. The pool
// size bounds concurrent outbound host connections.
type Pool struct {
	store    *store.Store
	worker   *Worker
	size     int
	interval time.Duration
	log      *slog.Logger
}

// NewPool creates a pool of size workers sharing one claim loop cadence.
// Size values below 1 are raised to 1.
func NewPool(st *store.Store, w *Worker, size int, interval time.Duration, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		store:    st,
		worker:   w,
		size:     size,
		interval: interval,
		log:      logger,
	}
}

// Run drains the queue until ctx is cancelled. In-flight entries finish
// before Run returns; there is no cooperative cancellation of a running
// verification beyond the connector's own timeouts.
func (p *Pool) Run(ctx context.Context) {
	p.log.Info("worker pool starting", "workers", p.size, "poll_interval", p.interval)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	wg.Wait()
	p.log.Info("worker pool stopped")
}

// RunOnce processes queue entries until the queue is empty, then returns the
// number of entries handled. Used by the CLI's one-shot verify path.
func (p *Pool) RunOnce(ctx context.Context) int {
	processed := 0
	for {
		if ctx.Err() != nil {
			return processed
		}
		entry, err := p.store.ClaimNext()
		if err != nil {
			p.log.Error("failed to claim queue entry", "error", err)
			return processed
		}
		if entry == nil {
			return processed
		}
		p.handle(ctx, entry)
		processed++
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		// Drain everything claimable before going back to sleep.
		for {
			entry, err := p.store.ClaimNext()
			if err != nil {
				p.log.Error("failed to claim queue entry", "worker", id, "error", err)
				break
			}
			if entry == nil {
				break
			}
			p.handle(ctx, entry)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pool) handle(ctx context.Context, entry *store.QueueEntry) {
	p.log.Debug("processing queue entry",
		"entry_id", entry.ID, "host_id", entry.HostID, "force_update", entry.ForceUpdate)

	state, message := p.worker.Process(ctx, entry)

	if err := p.store.CompleteEntry(entry.ID, state, message); err != nil {
		p.log.Error("failed to complete queue entry",
			"entry_id", entry.ID, "state", string(state), "error", err)
		return
	}
	p.log.Info("queue entry finished",
		"entry_id", entry.ID, "host_id", entry.HostID,
		"state", string(state), "message", message)
}
