package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/arcade/pkg/log"
)

// Reaper closes instances that have been idle for longer than a ttl.
type Reaper interface {
	Reap(ctx context.Context, ttl time.Duration) []string
}

type ReaperWorker struct {
	reaper   Reaper
	ttl      time.Duration
	interval time.Duration
}

type NewReaperWorkerOptions struct {
	Reaper   Reaper
	TTL      time.Duration
	Interval time.Duration
}

// NewReaperWorker creates a new ReaperWorker.
func NewReaperWorker(opts NewReaperWorkerOptions) *ReaperWorker {
	return &ReaperWorker{
		reaper:   opts.Reaper,
		ttl:      opts.TTL,
		interval: opts.Interval,
	}
}

func (w *ReaperWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if reaped := w.reaper.Reap(ctx, w.ttl); len(reaped) > 0 {
				log.Info("Closed %d idle instances", len(reaped))
				log.Debug("Closed idle instances: %v", reaped)
			}
		}
	}
}
