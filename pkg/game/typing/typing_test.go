package typing

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

type zeroRand struct{}

func (zeroRand) Intn(int) int { return 0 }

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		typed     string
		want      string
	}{
		{name: "one wrong of three", reference: "cat", typed: "cbt", want: "66.7"},
		{name: "perfect prefix", reference: "cat", typed: "ca", want: "100.0"},
		{name: "nothing typed", reference: "cat", typed: "", want: "100"},
		{name: "overflow never matches", reference: "cat", typed: "cats", want: "75.0"},
		{name: "all wrong", reference: "cat", typed: "dog", want: "0.0"},
		{name: "halves round up", reference: "aaaaaaaaaaaaaaaa", typed: "aaaaaaaaabbbbbbb", want: "56.3"},
		{name: "multibyte runes", reference: "héllo", typed: "hé", want: "100.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAccuracy(tt.typed, Accuracy(tt.reference, tt.typed))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAccuracy_Boundaries(t *testing.T) {
	tests := []struct {
		accuracy float64
		want     string
	}{
		{accuracy: 1.45, want: "1.4"},
		{accuracy: 0.15, want: "0.1"},
		{accuracy: 0.05, want: "0.1"},
		{accuracy: 8.25, want: "8.3"},
		{accuracy: 56.25, want: "56.3"},
		{accuracy: 99.95, want: "100.0"},
		{accuracy: 100, want: "100.0"},
		{accuracy: 0, want: "0.0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAccuracy("x", tt.accuracy), "%v", tt.accuracy)
	}
}

func TestHighlight(t *testing.T) {
	got := Highlight("cat", "cbt")
	assert.Equal(t, []Char{
		{Char: "c", State: CharCorrect},
		{Char: "a", State: CharIncorrect},
		{Char: "t", State: CharCorrect},
	}, got, "no current marker once the input covers the text")

	got = Highlight("cat", "c")
	assert.Equal(t, []Char{
		{Char: "c", State: CharCorrect},
		{Char: "a", State: CharCurrent},
		{Char: "t", State: CharUntouched},
	}, got)

	got = Highlight("cat", "")
	assert.Equal(t, CharCurrent, got[0].State)
}

func TestWordsPerMinute(t *testing.T) {
	assert.Equal(t, 0, WordsPerMinute("hello world", 0))
	assert.Equal(t, 4, WordsPerMinute("  hello   world ", 30*time.Second))
	assert.Equal(t, 60, WordsPerMinute("one", time.Second))
	assert.Equal(t, 0, WordsPerMinute("   ", time.Minute))
	// 5 words in 40s is 7.5 per minute
	assert.Equal(t, 8, WordsPerMinute("a b c d e", 40*time.Second))
}

type harness struct {
	clock   *scheduler.Manual
	store   *store.MemoryStore
	game    *Game
	updates []game.Update
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock: scheduler.NewManual(time.Unix(0, 0)),
		store: store.NewMemoryStore(),
	}
	h.game = NewGame(NewGameOptions{
		Scheduler: h.clock,
		Store:     h.store,
		Rand:      zeroRand{},
		Texts:     []string{"cat sat on the mat"},
		Observer:  func(u game.Update) { h.updates = append(h.updates, u) },
	})
	return h
}

func (h *harness) view() View {
	return h.game.Snapshot().State.(View)
}

func (h *harness) lastSummary() *game.Summary {
	for i := len(h.updates) - 1; i >= 0; i-- {
		if h.updates[i].Event == game.EventEnd {
			return h.updates[i].Summary
		}
	}
	return nil
}

func TestGame_SpeedStartsOnFirstInput(t *testing.T) {
	h := newHarness(t)
	h.game.Start()

	// idle time before the first keystroke does not count
	h.clock.Advance(20 * time.Second)
	h.game.Input("c")
	assert.Equal(t, 0, h.view().WPM)

	h.clock.Advance(30 * time.Second)
	h.game.Input("cat sat")
	v := h.view()
	assert.Equal(t, 4, v.WPM)
	assert.Equal(t, "100.0", v.Accuracy)
	assert.Equal(t, 10, v.TimeLeft)
	assert.True(t, v.Warning)
}

func TestGame_InputIgnoredWhenInactive(t *testing.T) {
	h := newHarness(t)
	h.game.Input("cat")
	assert.Equal(t, "", h.view().Input)

	h.game.Start()
	h.clock.Advance(60 * time.Second)
	require.False(t, h.game.Active())
	h.game.Input("cat")
	assert.Equal(t, "", h.view().Input)
}

func TestGame_EndRecordsBestInSessionStore(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.game.Dispatch(game.Action{Type: game.ActionStart}))
	h.game.Input("c")
	h.clock.Advance(30 * time.Second)
	h.game.Input("cat sat")
	h.clock.Advance(30 * time.Second)

	summary := h.lastSummary()
	require.NotNil(t, summary)
	assert.Equal(t, 4, summary.Score)
	assert.True(t, summary.NewRecord)
	assert.Equal(t, "Test Complete!\nWPM: 4\nAccuracy: 100.0%", summary.Message)

	best, ok, err := store.GetInt(context.Background(), h.store, store.KeyTypingTestBestWPM)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, best)
	assert.Equal(t, 0, h.clock.Pending())

	// a slower run keeps the best
	h.game.Start()
	h.game.Input("c")
	h.clock.Advance(30 * time.Second)
	h.game.Input("cat")
	h.clock.Advance(30 * time.Second)
	assert.Equal(t, 2, h.lastSummary().Score)
	assert.False(t, h.lastSummary().NewRecord)
	assert.Equal(t, 4, h.view().BestWPM)
}

func TestGame_StartResetsPreviousTest(t *testing.T) {
	h := newHarness(t)
	h.game.Start()
	h.game.Input("c")
	h.clock.Advance(30 * time.Second)
	h.game.Input("cat sat")
	h.game.Start()

	v := h.view()
	assert.Equal(t, "", v.Input)
	assert.Equal(t, 0, v.WPM)
	assert.Equal(t, "100", v.Accuracy)
	assert.Equal(t, 60, v.TimeLeft)
	assert.Equal(t, 1, h.clock.Pending())
}

func TestGame_ResetBest(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, store.SetInt(ctx, h.store, store.KeyTypingTestBestWPM, 50))
	h.game = NewGame(NewGameOptions{Scheduler: h.clock, Store: h.store, Rand: zeroRand{}})
	assert.Equal(t, 50, h.view().BestWPM)

	require.NoError(t, h.game.Dispatch(game.Action{Type: game.ActionReset}))
	assert.Equal(t, 50, h.view().BestWPM, "reset needs confirmation")

	require.NoError(t, h.game.Dispatch(game.Action{Type: game.ActionReset, Confirm: true}))
	assert.Equal(t, 0, h.view().BestWPM)
	_, err := h.store.Get(ctx, store.KeyTypingTestBestWPM)
	assert.True(t, store.IsNotFound(err))
}

func TestGame_PicksTextFromPool(t *testing.T) {
	g := NewGame(NewGameOptions{
		Scheduler: scheduler.NewManual(time.Unix(0, 0)),
		Store:     store.NewMemoryStore(),
		Rand:      zeroRand{},
	})
	g.Start()
	assert.Equal(t, Texts[0], g.Snapshot().State.(View).Text)
	assert.Len(t, g.Snapshot().State.(View).Highlight, len([]rune(Texts[0])))
}
