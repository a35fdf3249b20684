// Package whack implements the timed reaction game: targets pop up at random
// and every genuine hit on a raised target scores a point.
package whack

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/game/constants"
	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/records"
	"github.com/cbodonnell/arcade/pkg/scheduler"
	"github.com/cbodonnell/arcade/pkg/store"
)

const counterScore = "score"

var _ game.Controller = &Game{}

// Target is one hole.
type Target struct {
	Up     bool `json:"up"`
	Bonked bool `json:"bonked"`
}

// View is the projection sent to clients.
type View struct {
	Active   bool     `json:"active"`
	Score    int      `json:"score"`
	TimeLeft int      `json:"timeLeft"`
	MaxScore int      `json:"maxScore"`
	Targets  []Target `json:"targets"`
}

type Game struct {
	ctx       context.Context
	session   *game.Session
	group     *scheduler.Group
	countdown *game.Countdown
	record    *records.Record
	rand      game.Rand
	observer  game.Observer
	duration  int
	maxScore  int
	targets   []Target
	bonks     []scheduler.Handle
}

// NewGameOptions contains options for creating a new Game.
type NewGameOptions struct {
	// Context bounds store access.
	Context   context.Context
	Scheduler scheduler.Scheduler
	// Store is the durable store holding the max score.
	Store    store.Store
	Rand     game.Rand
	Observer game.Observer
	Holes    int
	Duration int
}

// NewGame creates an inactive game and loads the max score.
func NewGame(opts NewGameOptions) *Game {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Holes <= 0 {
		opts.Holes = constants.WhackAMoleHoles
	}
	if opts.Duration <= 0 {
		opts.Duration = constants.WhackAMoleDuration
	}

	group := scheduler.NewGroup(opts.Scheduler)
	g := &Game{
		ctx:       opts.Context,
		session:   game.NewSession(opts.Duration, counterScore),
		group:     group,
		countdown: game.NewCountdown(group),
		record:    records.New(opts.Store, store.KeyWhackAMoleMaxScore, records.HigherIsBetter),
		rand:      opts.Rand,
		observer:  opts.Observer,
		duration:  opts.Duration,
		targets:   make([]Target, opts.Holes),
		bonks:     make([]scheduler.Handle, opts.Holes),
	}
	if maxScore, ok := g.record.Load(g.ctx); ok {
		g.maxScore = maxScore
	}
	return g
}

func (g *Game) Kind() game.Kind {
	return game.KindWhackAMole
}

func (g *Game) Dispatch(action game.Action) error {
	switch action.Type {
	case game.ActionStart:
		g.Start()
	case game.ActionHit:
		g.Hit(action.Target, action.Trusted)
	default:
		return fmt.Errorf("%w: %s", game.ErrUnknownAction, action.Type)
	}
	return nil
}

// Start begins a new session, cancelling everything left from a previous one.
func (g *Game) Start() {
	g.group.CancelAll()
	g.lowerAll()
	g.session.Reset(g.duration)
	g.session.Active = true
	g.emit(game.EventState, nil)

	g.popUp()
	g.countdown.Start(g.session, func() {
		g.emit(game.EventTick, nil)
	}, g.end)
}

// popUp raises one random target for a random time. When the target drops
// the next activation is scheduled, but only while the session is active.
func (g *Game) popUp() {
	if !g.session.Active {
		return
	}

	span := int(constants.MolePopUpMax - constants.MolePopUpMin)
	upFor := constants.MolePopUpMin + time.Duration(g.rand.Intn(span))
	hole := g.rand.Intn(len(g.targets))

	g.targets[hole].Up = true
	g.emit(game.EventState, nil)

	g.group.After(upFor, func() {
		g.targets[hole].Up = false
		g.emit(game.EventState, nil)
		if g.session.Active {
			g.popUp()
		}
	})
}

// Hit scores a point if the session is running, the input is trusted and the
// target is up. Anything else is ignored.
func (g *Game) Hit(target int, trusted bool) bool {
	if !trusted {
		log.Trace("Ignoring untrusted hit on target %d", target)
		return false
	}
	if !g.session.Active || target < 0 || target >= len(g.targets) {
		return false
	}
	if !g.targets[target].Up {
		return false
	}

	g.session.Inc(counterScore)
	g.targets[target].Up = false
	g.targets[target].Bonked = true
	g.emit(game.EventState, nil)

	if previous := g.bonks[target]; previous != nil {
		previous.Cancel()
	}
	g.bonks[target] = g.group.After(constants.MoleBonkDuration, func() {
		g.targets[target].Bonked = false
		g.bonks[target] = nil
		g.emit(game.EventState, nil)
	})
	return true
}

func (g *Game) end() {
	g.session.Active = false
	g.countdown.Stop()
	g.group.CancelAll()
	g.lowerAll()

	score := g.session.Counter(counterScore)
	if score > g.maxScore && g.record.Submit(g.ctx, score) {
		g.maxScore = score
	}

	// the banner compares against the max score after it has been updated
	summary := &game.Summary{Score: score}
	if score > g.maxScore-score {
		summary.NewRecord = true
		summary.Message = fmt.Sprintf("🎉 New Record! Score: %d", score)
	} else {
		summary.Message = fmt.Sprintf("Game Over! Score: %d", score)
	}
	g.emit(game.EventEnd, summary)
}

func (g *Game) lowerAll() {
	for i := range g.targets {
		g.targets[i] = Target{}
		g.bonks[i] = nil
	}
}

func (g *Game) Snapshot() game.Update {
	return g.update(game.EventState, nil)
}

// Close stops the session without recording a score.
func (g *Game) Close() {
	g.session.Active = false
	g.group.CancelAll()
	g.countdown.Stop()
}

// Active reports whether a session is running.
func (g *Game) Active() bool {
	return g.session.Active
}

// Score returns the current score.
func (g *Game) Score() int {
	return g.session.Counter(counterScore)
}

func (g *Game) update(event game.EventType, summary *game.Summary) game.Update {
	targets := make([]Target, len(g.targets))
	copy(targets, g.targets)
	return game.Update{
		Kind:  game.KindWhackAMole,
		Event: event,
		State: View{
			Active:   g.session.Active,
			Score:    g.session.Counter(counterScore),
			TimeLeft: g.session.Remaining,
			MaxScore: g.maxScore,
			Targets:  targets,
		},
		Summary: summary,
	}
}

func (g *Game) emit(event game.EventType, summary *game.Summary) {
	if g.observer != nil {
		g.observer(g.update(event, summary))
	}
}
