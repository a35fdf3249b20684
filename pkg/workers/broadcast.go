package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/arcade/pkg/arcade"
	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/queue"
)

// Broadcaster delivers a publication to its subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, publication arcade.Publication)
}

type BroadcastWorker struct {
	outbox      queue.Queue
	broadcaster Broadcaster
	interval    time.Duration
}

type NewBroadcastWorkerOptions struct {
	Outbox      queue.Queue
	Broadcaster Broadcaster
	Interval    time.Duration
}

// NewBroadcastWorker creates a new BroadcastWorker.
// The worker drains the outbox at every interval, in publication order.
func NewBroadcastWorker(opts NewBroadcastWorkerOptions) *BroadcastWorker {
	return &BroadcastWorker{
		outbox:      opts.Outbox,
		broadcaster: opts.Broadcaster,
		interval:    opts.Interval,
	}
}

func (w *BroadcastWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush broadcasts everything currently queued and returns how many
// publications were sent.
func (w *BroadcastWorker) Flush(ctx context.Context) int {
	pending, err := w.outbox.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read outbox: %v", err)
		return 0
	}

	sent := 0
	for _, item := range pending {
		publication, ok := item.(arcade.Publication)
		if !ok {
			log.Error("Unknown outbox item: %T", item)
			continue
		}
		w.broadcaster.Broadcast(ctx, publication)
		sent++
	}
	return sent
}
