package whack

import (
	"context"
	"testing"
	"time"

	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/scheduler"
	"github.com/cbodonnell/arcade/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zeroRand always picks the first hole and the shortest pop-up time.
type zeroRand struct{}

func (zeroRand) Intn(int) int { return 0 }

type harness struct {
	clock   *scheduler.Manual
	store   *store.MemoryStore
	game    *Game
	updates []game.Update
}

func newHarness(t *testing.T, best *int) *harness {
	t.Helper()
	h := &harness{
		clock: scheduler.NewManual(time.Unix(0, 0)),
		store: store.NewMemoryStore(),
	}
	if best != nil {
		require.NoError(t, store.SetInt(context.Background(), h.store, store.KeyWhackAMoleMaxScore, *best))
	}
	h.game = NewGame(NewGameOptions{
		Scheduler: h.clock,
		Store:     h.store,
		Rand:      zeroRand{},
		Observer:  func(u game.Update) { h.updates = append(h.updates, u) },
	})
	return h
}

func (h *harness) view() View {
	return h.game.Snapshot().State.(View)
}

func (h *harness) ends() []*game.Summary {
	var summaries []*game.Summary
	for _, u := range h.updates {
		if u.Event == game.EventEnd {
			summaries = append(summaries, u.Summary)
		}
	}
	return summaries
}

func (h *harness) storedMax(t *testing.T) (int, bool) {
	v, ok, err := store.GetInt(context.Background(), h.store, store.KeyWhackAMoleMaxScore)
	require.NoError(t, err)
	return v, ok
}

func TestGame_HitValidation(t *testing.T) {
	h := newHarness(t, nil)
	h.game.Start()
	require.True(t, h.view().Targets[0].Up)

	assert.False(t, h.game.Hit(1, true), "target that is not up")
	assert.False(t, h.game.Hit(0, false), "untrusted hit")
	assert.False(t, h.game.Hit(-1, true), "out of range")
	assert.False(t, h.game.Hit(9, true), "out of range")
	assert.Equal(t, 0, h.game.Score())

	assert.True(t, h.game.Hit(0, true))
	assert.Equal(t, 1, h.game.Score())
	v := h.view()
	assert.False(t, v.Targets[0].Up)
	assert.True(t, v.Targets[0].Bonked)

	assert.False(t, h.game.Hit(0, true), "a hit target is down")
	assert.Equal(t, 1, h.game.Score())

	h.clock.Advance(300 * time.Millisecond)
	assert.False(t, h.view().Targets[0].Bonked)
}

func TestGame_HitWhileInactiveIsIgnored(t *testing.T) {
	h := newHarness(t, nil)
	assert.NoError(t, h.game.Dispatch(game.Action{Type: game.ActionHit, Target: 0, Trusted: true}))
	assert.Equal(t, 0, h.game.Score())
}

func TestGame_ActivationLoop(t *testing.T) {
	h := newHarness(t, nil)
	h.game.Start()

	// zeroRand keeps each target up for 500ms and immediately raises the next one
	h.clock.Advance(500 * time.Millisecond)
	assert.True(t, h.view().Targets[0].Up)
	assert.True(t, h.game.Hit(0, true))

	h.clock.Advance(500 * time.Millisecond)
	assert.True(t, h.game.Hit(0, true))
	assert.Equal(t, 2, h.game.Score())
}

func TestGame_ExpiryWithoutHitsKeepsBest(t *testing.T) {
	best := 5
	h := newHarness(t, &best)
	h.game.Start()

	h.clock.Advance(30 * time.Second)

	assert.False(t, h.game.Active())
	assert.Equal(t, 0, h.game.Score())
	stored, ok := h.storedMax(t)
	assert.True(t, ok)
	assert.Equal(t, 5, stored)

	summaries := h.ends()
	require.Len(t, summaries, 1)
	assert.Equal(t, "Game Over! Score: 0", summaries[0].Message)
	assert.False(t, summaries[0].NewRecord)

	assert.Equal(t, 0, h.clock.Pending(), "tick and activation loop stop with the session")
	for _, target := range h.view().Targets {
		assert.False(t, target.Up)
	}
}

func TestGame_ZeroScoreWithoutBestIsNotStored(t *testing.T) {
	h := newHarness(t, nil)
	h.game.Start()
	h.clock.Advance(30 * time.Second)

	_, ok := h.storedMax(t)
	assert.False(t, ok)
}

func TestGame_NewRecord(t *testing.T) {
	h := newHarness(t, nil)
	h.game.Start()
	require.True(t, h.game.Hit(0, true))
	h.clock.Advance(500 * time.Millisecond)
	require.True(t, h.game.Hit(0, true))

	h.clock.Advance(30 * time.Second)

	stored, ok := h.storedMax(t)
	assert.True(t, ok)
	assert.Equal(t, 2, stored)
	assert.Equal(t, 2, h.view().MaxScore)

	summaries := h.ends()
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].NewRecord)
	assert.Equal(t, "🎉 New Record! Score: 2", summaries[0].Message)
}

func TestGame_RecordBannerComparesAgainstHalfTheBest(t *testing.T) {
	best := 5
	h := newHarness(t, &best)
	h.game.Start()
	for i := 0; i < 3; i++ {
		require.True(t, h.game.Hit(0, true))
		h.clock.Advance(500 * time.Millisecond)
	}

	h.clock.Advance(30 * time.Second)

	stored, _ := h.storedMax(t)
	assert.Equal(t, 5, stored, "a lower score never replaces the best")
	summaries := h.ends()
	require.Len(t, summaries, 1)
	assert.True(t, summaries[0].NewRecord, "3 > 5-3")
}

func TestGame_RestartCancelsPreviousSession(t *testing.T) {
	h := newHarness(t, nil)
	h.game.Start()
	h.clock.Advance(10 * time.Second)
	h.game.Start()

	assert.Equal(t, 30, h.view().TimeLeft)
	h.clock.Advance(time.Second)
	assert.Equal(t, 29, h.view().TimeLeft, "only the new tick decrements")
	assert.Equal(t, 2, h.clock.Pending(), "one tick and one activation")

	h.clock.Advance(29 * time.Second)
	assert.Len(t, h.ends(), 1)
}

func TestGame_Close(t *testing.T) {
	h := newHarness(t, nil)
	h.game.Start()
	h.game.Close()

	assert.False(t, h.game.Active())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestGame_UnknownAction(t *testing.T) {
	h := newHarness(t, nil)
	err := h.game.Dispatch(game.Action{Type: game.ActionFlip})
	assert.ErrorIs(t, err, game.ErrUnknownAction)
}
