// Package typing implements the timed accuracy test: type a reference text
// against the clock while speed and accuracy are scored live.
package typing

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/game/constants"
	"github.com/cbodonnell/arcade/pkg/records"
	"github.com/cbodonnell/arcade/pkg/scheduler"
	"github.com/cbodonnell/arcade/pkg/store"
)

// Texts is the pool a test picks its reference text from.
var Texts = []string{
	"The quick brown fox jumps over the lazy dog. Practice makes perfect when learning to type faster.",
	"Technology has revolutionized the way we communicate and work in the modern digital era.",
	"Typing speed is an essential skill for anyone working with computers in today's workplace.",
}

var _ game.Controller = &Game{}

// View is the projection sent to clients.
type View struct {
	Active    bool   `json:"active"`
	Text      string `json:"text"`
	Input     string `json:"input"`
	TimeLeft  int    `json:"timeLeft"`
	Warning   bool   `json:"warning"`
	WPM       int    `json:"wpm"`
	Accuracy  string `json:"accuracy"`
	BestWPM   int    `json:"bestWPM"`
	Highlight []Char `json:"highlight"`
}

type Game struct {
	ctx       context.Context
	clock     scheduler.Scheduler
	session   *game.Session
	group     *scheduler.Group
	countdown *game.Countdown
	record    *records.Record
	rand      game.Rand
	observer  game.Observer
	texts     []string
	duration  int

	text      string
	input     string
	startedAt time.Time
	wpm       int
	accuracy  string
	bestWPM   int
}

// NewGameOptions contains options for creating a new Game.
type NewGameOptions struct {
	Context   context.Context
	Scheduler scheduler.Scheduler
	// Store is the session-scoped store holding the best WPM.
	Store    store.Store
	Rand     game.Rand
	Observer game.Observer
	Texts    []string
	Duration int
}

// NewGame creates an inactive test and loads the best WPM.
func NewGame(opts NewGameOptions) *Game {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(opts.Texts) == 0 {
		opts.Texts = Texts
	}
	if opts.Duration <= 0 {
		opts.Duration = constants.TypingTestDuration
	}

	group := scheduler.NewGroup(opts.Scheduler)
	g := &Game{
		ctx:       opts.Context,
		clock:     opts.Scheduler,
		session:   game.NewSession(opts.Duration),
		group:     group,
		countdown: game.NewCountdown(group),
		record:    records.New(opts.Store, store.KeyTypingTestBestWPM, records.HigherIsBetter),
		rand:      opts.Rand,
		observer:  opts.Observer,
		texts:     opts.Texts,
		duration:  opts.Duration,
		accuracy:  FormatAccuracy("", 100),
	}
	if best, ok := g.record.Load(g.ctx); ok {
		g.bestWPM = best
	}
	return g
}

func (g *Game) Kind() game.Kind {
	return game.KindTypingTest
}

func (g *Game) Dispatch(action game.Action) error {
	switch action.Type {
	case game.ActionStart:
		g.Start()
	case game.ActionInput:
		g.Input(action.Text)
	case game.ActionReset:
		g.ResetBest(action.Confirm)
	default:
		return fmt.Errorf("%w: %s", game.ErrUnknownAction, action.Type)
	}
	return nil
}

// Start picks a text and starts the countdown. Speed is measured from the
// first input, not from here.
func (g *Game) Start() {
	g.group.CancelAll()
	g.session.Reset(g.duration)
	g.session.Active = true
	g.startedAt = time.Time{}
	g.text = g.texts[g.rand.Intn(len(g.texts))]
	g.input = ""
	g.wpm = 0
	g.accuracy = FormatAccuracy("", 100)
	g.emit(game.EventState, nil)

	g.countdown.Start(g.session, func() {
		g.emit(game.EventTick, nil)
	}, g.end)
}

// Input replaces the typed text and rescores it.
func (g *Game) Input(text string) {
	if !g.session.Active {
		return
	}
	now := g.clock.Now()
	if g.startedAt.IsZero() {
		g.startedAt = now
	}

	g.input = text
	g.wpm = WordsPerMinute(text, now.Sub(g.startedAt))
	g.accuracy = FormatAccuracy(text, Accuracy(g.text, text))
	g.emit(game.EventState, nil)
}

// ResetBest clears the session best. It requires confirmation.
func (g *Game) ResetBest(confirm bool) {
	if !confirm {
		return
	}
	g.record.Clear(g.ctx)
	g.bestWPM = 0
	g.emit(game.EventState, nil)
}

func (g *Game) end() {
	g.session.Active = false
	g.countdown.Stop()
	g.group.CancelAll()

	// the final speed is the last one shown, not a fresh measurement
	finalWPM := g.wpm
	improved := false
	if finalWPM > g.bestWPM && g.record.Submit(g.ctx, finalWPM) {
		g.bestWPM = finalWPM
		improved = true
	}

	g.emit(game.EventEnd, &game.Summary{
		Score:     finalWPM,
		NewRecord: improved,
		Message:   fmt.Sprintf("Test Complete!\nWPM: %d\nAccuracy: %s%%", finalWPM, g.accuracy),
	})
}

func (g *Game) Snapshot() game.Update {
	return g.update(game.EventState, nil)
}

func (g *Game) Close() {
	g.session.Active = false
	g.group.CancelAll()
	g.countdown.Stop()
}

// Active reports whether input is accepted.
func (g *Game) Active() bool {
	return g.session.Active
}

func (g *Game) update(event game.EventType, summary *game.Summary) game.Update {
	return game.Update{
		Kind:  game.KindTypingTest,
		Event: event,
		State: View{
			Active:    g.session.Active,
			Text:      g.text,
			Input:     g.input,
			TimeLeft:  g.session.Remaining,
			Warning:   g.session.Remaining <= constants.TypingTestWarningThreshold,
			WPM:       g.wpm,
			Accuracy:  g.accuracy,
			BestWPM:   g.bestWPM,
			Highlight: Highlight(g.text, g.input),
		},
		Summary: summary,
	}
}

func (g *Game) emit(event game.EventType, summary *game.Summary) {
	if g.observer != nil {
		g.observer(g.update(event, summary))
	}
}
