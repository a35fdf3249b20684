package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/arcade/pkg/arcade"
	"github.com/cbodonnell/arcade/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	lock         sync.Mutex
	publications []arcade.Publication
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, p arcade.Publication) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.publications = append(b.publications, p)
}

func (b *recordingBroadcaster) Len() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.publications)
}

func TestBroadcastWorker_Flush(t *testing.T) {
	outbox := queue.NewInMemoryQueue(0)
	b := &recordingBroadcaster{}
	w := NewBroadcastWorker(NewBroadcastWorkerOptions{Outbox: outbox, Broadcaster: b, Interval: time.Hour})

	require.NoError(t, outbox.Enqueue(arcade.Publication{Instance: "a"}))
	require.NoError(t, outbox.Enqueue("garbage"))
	require.NoError(t, outbox.Enqueue(arcade.Publication{Instance: "b", Closed: true}))

	assert.Equal(t, 2, w.Flush(context.Background()))
	assert.Equal(t, "a", b.publications[0].Instance)
	assert.Equal(t, "b", b.publications[1].Instance)
	assert.Equal(t, 0, w.Flush(context.Background()))
}

func TestBroadcastWorker_Start(t *testing.T) {
	outbox := queue.NewInMemoryQueue(0)
	b := &recordingBroadcaster{}
	w := NewBroadcastWorker(NewBroadcastWorkerOptions{Outbox: outbox, Broadcaster: b, Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	require.NoError(t, outbox.Enqueue(arcade.Publication{Instance: "a"}))
	assert.Eventually(t, func() bool { return b.Len() == 1 }, time.Second, 5*time.Millisecond)
}

type countingReaper struct {
	lock  sync.Mutex
	calls int
	ttl   time.Duration
}

func (r *countingReaper) Reap(_ context.Context, ttl time.Duration) []string {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.calls++
	r.ttl = ttl
	return []string{"idle"}
}

func (r *countingReaper) Calls() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.calls
}

func TestReaperWorker(t *testing.T) {
	r := &countingReaper{}
	w := NewReaperWorker(NewReaperWorkerOptions{Reaper: r, TTL: time.Minute, Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	r.lock.Lock()
	defer r.lock.Unlock()
	assert.Equal(t, time.Minute, r.ttl)
}
