// Package memory implements the matching-pairs game.
//
// Card selection is a small state machine:
//
//	no-selection --flip--> one-selected --flip other--> comparing
//	comparing (match)    --> no-selection
//	comparing (mismatch) --> busy --flip-back delay--> no-selection
//
// Every pending flip-back and the countdown tick belong to one scheduler
// group that is cancelled before any reset, restart or end, so a callback
// from an earlier board can never touch a newly dealt one.
package memory

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

const (
	counterMoves = "moves"
	counterPairs = "pairs"

	noCard = -1
)

var _ game.Controller = &Game{}

// Phase is the lifecycle stage of the board.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseCountdown Phase = "countdown"
	PhasePlaying   Phase = "playing"
	PhaseWon       Phase = "won"
	PhaseLost      Phase = "lost"
)

// Selection is the card selection state.
type Selection string

const (
	SelectionNone      Selection = "no-selection"
	SelectionOne       Selection = "one-selected"
	SelectionComparing Selection = "comparing"
)

// CardView is a card as a client sees it. Value is 0 while the card is face down.
type CardView struct {
	Value   int  `json:"value,omitempty"`
	Flipped bool `json:"flipped"`
	Matched bool `json:"matched"`
}

// View is the projection sent to clients.
type View struct {
	Phase      Phase      `json:"phase"`
	Selection  Selection  `json:"selection"`
	Busy       bool       `json:"busy"`
	Moves      int        `json:"moves"`
	Pairs      int        `json:"pairs"`
	TotalPairs int        `json:"totalPairs"`
	TimeLeft   int        `json:"timeLeft"`
	Countdown  int        `json:"countdown,omitempty"`
	Best       *int       `json:"best"`
	Cards      []CardView `json:"cards"`
}

type Game struct {
	ctx       context.Context
	session   *game.Session
	group     *scheduler.Group
	countdown *game.Countdown
	best      *records.Record
	last      *records.Record
	rand      game.Rand
	observer  game.Observer
	pairs     int
	duration  int

	phase     Phase
	cards     []Card
	first     int
	second    int
	busy      bool
	preCount  int
	bestScore *int
}

// NewGameOptions contains options for creating a new Game.
type NewGameOptions struct {
	Context   context.Context
	Scheduler scheduler.Scheduler
	// Store is the durable store holding the best and the last score.
	Store    store.Store
	Rand     game.Rand
	Observer game.Observer
	Pairs    int
	Duration int
}

// NewGame deals a board and loads the best score. Cards cannot be flipped
// until a session is started.
func NewGame(opts NewGameOptions) *Game {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Pairs <= 0 {
		opts.Pairs = constants.MemoryPairs
	}
	if opts.Duration <= 0 {
		opts.Duration = constants.MemoryDuration
	}

	group := scheduler.NewGroup(opts.Scheduler)
	g := &Game{
		ctx:       opts.Context,
		session:   game.NewSession(opts.Duration, counterMoves, counterPairs),
		group:     group,
		countdown: game.NewCountdown(group),
		best:      records.New(opts.Store, store.KeyMemoryBest, records.LowerIsBetter),
		last:      records.New(opts.Store, store.KeyMemoryLastScore, records.LowerIsBetter),
		rand:      opts.Rand,
		observer:  opts.Observer,
		pairs:     opts.Pairs,
		duration:  opts.Duration,
	}
	if best, ok := g.best.Load(g.ctx); ok {
		g.bestScore = &best
	}
	g.resetBoard()
	return g
}

func (g *Game) Kind() game.Kind {
	return game.KindMemory
}

func (g *Game) Dispatch(action game.Action) error {
	switch action.Type {
	case game.ActionStart:
		g.Start()
	case game.ActionRestart:
		g.Restart()
	case game.ActionReset:
		g.HardReset(action.Confirm)
	case game.ActionFlip:
		g.Flip(action.Target)
	default:
		return fmt.Errorf("%w: %s", game.ErrUnknownAction, action.Type)
	}
	return nil
}

// Start deals a fresh board and starts the countdown right away.
func (g *Game) Start() {
	g.resetBoard()
	g.startCountdown()
}

// Restart deals a fresh board and runs a 3-2-1 countdown before the timer
// starts. Input is locked during the countdown.
func (g *Game) Restart() {
	g.resetBoard()
	g.phase = PhaseCountdown
	g.preCount = constants.MemoryRestartCountdown
	g.emit(game.EventState, nil)

	var handle scheduler.Handle
	handle = g.group.Every(constants.TickInterval, func() {
		g.preCount--
		if g.preCount > 0 {
			g.emit(game.EventTick, nil)
			return
		}
		handle.Cancel()
		g.startCountdown()
	})
}

// HardReset clears the stored best score and deals a fresh, idle board.
// It requires confirmation.
func (g *Game) HardReset(confirm bool) {
	if !confirm {
		return
	}
	g.best.Clear(g.ctx)
	g.bestScore = nil
	g.resetBoard()
	g.emit(game.EventState, nil)
}

// Flip turns a card face up and advances the selection state machine.
func (g *Game) Flip(index int) {
	if g.phase != PhasePlaying || g.busy {
		return
	}
	if index < 0 || index >= len(g.cards) {
		return
	}
	if index == g.first || g.cards[index].Matched {
		return
	}

	g.cards[index].Flipped = true

	if g.first == noCard {
		g.first = index
		g.emit(game.EventState, nil)
		return
	}

	g.second = index
	g.busy = true
	g.session.Inc(counterMoves)

	if g.cards[g.first].Value == g.cards[g.second].Value {
		g.cards[g.first].Matched = true
		g.cards[g.second].Matched = true
		g.session.Inc(counterPairs)
		g.first, g.second = noCard, noCard
		g.busy = false

		if g.session.Counter(counterPairs) == g.pairs {
			g.end(true)
			return
		}
		g.emit(game.EventState, nil)
		return
	}

	g.emit(game.EventState, nil)
	first, second := g.first, g.second
	g.group.After(constants.MemoryFlipBackDelay, func() {
		g.cards[first].Flipped = false
		g.cards[second].Flipped = false
		g.first, g.second = noCard, noCard
		g.busy = false
		g.emit(game.EventState, nil)
	})
}

func (g *Game) startCountdown() {
	g.countdown.Stop()
	g.session.Remaining = g.duration
	g.session.Active = true
	g.phase = PhasePlaying
	g.preCount = 0
	g.emit(game.EventState, nil)

	g.countdown.Start(g.session, func() {
		g.emit(game.EventTick, nil)
	}, func() {
		g.end(false)
	})
}

// resetBoard cancels every outstanding callback, zeroes the counters and
// deals a new board. It leaves the board idle.
func (g *Game) resetBoard() {
	g.countdown.Stop()
	g.group.CancelAll()
	g.session.Reset(g.duration)
	g.first, g.second = noCard, noCard
	g.busy = false
	g.preCount = 0
	g.phase = PhaseIdle

	deck := Deal(g.pairs, g.rand)
	g.cards = make([]Card, len(deck))
	for i, v := range deck {
		g.cards[i] = Card{Value: v}
	}
}

func (g *Game) end(won bool) {
	g.session.Active = false
	g.countdown.Stop()
	g.group.CancelAll()
	// input stays locked until the next reset
	g.busy = true

	moves := g.session.Counter(counterMoves)
	summary := &game.Summary{Won: won}
	if won {
		g.phase = PhaseWon
		if g.best.Submit(g.ctx, moves) {
			best := moves
			g.bestScore = &best
			summary.NewRecord = true
		}
		g.last.Put(g.ctx, moves)
		summary.Score = moves
		summary.Message = fmt.Sprintf("You won in %d moves!", moves)
	} else {
		g.phase = PhaseLost
		g.last.Put(g.ctx, constants.MemoryLossScore)
		summary.Score = constants.MemoryLossScore
		summary.Message = "Time up! Try again."
	}
	g.emit(game.EventEnd, summary)
}

func (g *Game) Snapshot() game.Update {
	return g.update(game.EventState, nil)
}

func (g *Game) Close() {
	g.session.Active = false
	g.countdown.Stop()
	g.group.CancelAll()
}

// Phase returns the lifecycle stage of the board.
func (g *Game) Phase() Phase {
	return g.phase
}

// Selection returns the card selection state.
func (g *Game) Selection() Selection {
	switch {
	case g.second != noCard:
		return SelectionComparing
	case g.first != noCard:
		return SelectionOne
	default:
		return SelectionNone
	}
}

// Cards returns a copy of the board.
func (g *Game) Cards() []Card {
	cards := make([]Card, len(g.cards))
	copy(cards, g.cards)
	return cards
}

func (g *Game) update(event game.EventType, summary *game.Summary) game.Update {
	cards := make([]CardView, len(g.cards))
	for i, c := range g.cards {
		cards[i] = CardView{Flipped: c.Flipped, Matched: c.Matched}
		if c.Flipped || c.Matched {
			cards[i].Value = c.Value
		}
	}

	var best *int
	if g.bestScore != nil {
		b := *g.bestScore
		best = &b
	}

	return game.Update{
		Kind:  game.KindMemory,
		Event: event,
		State: View{
			Phase:      g.phase,
			Selection:  g.Selection(),
			Busy:       g.busy,
			Moves:      g.session.Counter(counterMoves),
			Pairs:      g.session.Counter(counterPairs),
			TotalPairs: g.pairs,
			TimeLeft:   g.session.Remaining,
			Countdown:  g.preCount,
			Best:       best,
			Cards:      cards,
		},
		Summary: summary,
	}
}

func (g *Game) emit(event game.EventType, summary *game.Summary) {
	if g.observer != nil {
		g.observer(g.update(event, summary))
	}
}
