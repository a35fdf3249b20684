// Package arcade runs game instances on behalf of users and browser sessions.
//
// Every instance owns a scheduler.Loop. Actions, snapshots and timer callbacks
// all run on that loop, so controllers are never called concurrently.
package arcade

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/arcade/pkg/game"
	"github.com/cbodonnell/arcade/pkg/game/memory"
	"github.com/cbodonnell/arcade/pkg/game/typing"
	"github.com/cbodonnell/arcade/pkg/game/whack"
	"github.com/cbodonnell/arcade/pkg/log"
	"github.com/cbodonnell/arcade/pkg/queue"
	"github.com/cbodonnell/arcade/pkg/scheduler"
	"github.com/cbodonnell/arcade/pkg/store"
	"github.com/google/uuid"
)

// AnonymousUser owns the durable records of unauthenticated requests.
const AnonymousUser = "anonymous"

// Owner identifies who an instance belongs to.
type Owner struct {
	UserID    string
	SessionID string
}

func (o Owner) user() string {
	if o.UserID == "" {
		return AnonymousUser
	}
	return o.UserID
}

// key normalizes the user so that owners compare equal as map keys.
func (o Owner) key() Owner {
	return Owner{UserID: o.user(), SessionID: o.SessionID}
}

// Publication is an Update queued on the outbox. Closed is set once, after
// the instance has been closed.
type Publication struct {
	Instance string
	Owner    Owner
	Update   game.Update
	Closed   bool
}

// Info describes a running instance.
type Info struct {
	ID         string
	Kind       game.Kind
	Owner      Owner
	CreatedAt  time.Time
	LastActive time.Time
}

type instance struct {
	id         string
	kind       game.Kind
	owner      Owner
	createdAt  time.Time
	lastActive atomic.Int64
	loop       *scheduler.Loop
	controller game.Controller
	cancel     context.CancelFunc
}

func (i *instance) touch(now time.Time) {
	i.lastActive.Store(now.UnixNano())
}

func (i *instance) info() Info {
	return Info{
		ID:         i.id,
		Kind:       i.kind,
		Owner:      i.owner,
		CreatedAt:  i.createdAt,
		LastActive: time.Unix(0, i.lastActive.Load()),
	}
}

type Manager struct {
	durable        store.Store
	outbox         queue.Queue
	newRand        func() game.Rand
	now            func() time.Time
	loopBufferSize int

	lock      sync.RWMutex
	instances map[string]*instance
	// sessions holds the session-scoped store of every browser session that
	// has a running instance or a live connection.
	sessions map[Owner]*session
}

type session struct {
	store    *store.MemoryStore
	attached bool
}

// NewManagerOptions contains options for creating a new Manager.
type NewManagerOptions struct {
	// Store is the durable store. Keys are prefixed with the owning user.
	Store store.Store
	// Outbox receives a Publication for every Update of every instance.
	Outbox         queue.Queue
	NewRand        func() game.Rand
	Now            func() time.Time
	LoopBufferSize int
}

func NewManager(opts NewManagerOptions) *Manager {
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Outbox == nil {
		opts.Outbox = queue.NewInMemoryQueue(queue.QueueBufferSize)
	}
	if opts.NewRand == nil {
		opts.NewRand = func() game.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		durable:        opts.Store,
		outbox:         opts.Outbox,
		newRand:        opts.NewRand,
		now:            opts.Now,
		loopBufferSize: opts.LoopBufferSize,
		instances:      make(map[string]*instance),
		sessions:       make(map[Owner]*session),
	}
}

// Outbox returns the queue Updates are published to.
func (m *Manager) Outbox() queue.Queue {
	return m.outbox
}

// Launcher returns the launcher of a user.
func (m *Manager) Launcher(userID string) *Launcher {
	return NewLauncher(m.userStore(Owner{UserID: userID}))
}

// Create starts a new instance of kind and returns its id and first snapshot.
// Opening a game also records it as the user's last game.
func (m *Manager) Create(ctx context.Context, owner Owner, kind game.Kind) (string, game.Update, error) {
	if _, err := game.ParseKind(string(kind)); err != nil {
		return "", game.Update{}, &ErrUnknownKind{Kind: string(kind)}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	inst := &instance{
		id:        uuid.New().String(),
		kind:      kind,
		owner:     owner,
		createdAt: m.now(),
		loop:      scheduler.NewLoop(m.loopBufferSize),
		cancel:    cancel,
	}
	inst.touch(inst.createdAt)
	go inst.loop.Run(runCtx)

	var snapshot game.Update
	err := inst.loop.Call(ctx, func() {
		inst.controller = m.newController(runCtx, inst)
		snapshot = inst.controller.Snapshot()
	})
	if err != nil {
		cancel()
		inst.loop.Stop()
		return "", game.Update{}, fmt.Errorf("failed to create %s instance: %v", kind, err)
	}

	m.lock.Lock()
	m.instances[inst.id] = inst
	m.lock.Unlock()

	if err := m.Launcher(owner.UserID).SetLastGame(ctx, kind); err != nil {
		log.Warn("Failed to record last game for %s: %v", owner.user(), err)
	}

	log.Debug("Created %s instance %s for session %s", kind, inst.id, owner.SessionID)
	return inst.id, snapshot, nil
}

func (m *Manager) newController(ctx context.Context, inst *instance) game.Controller {
	observer := func(u game.Update) {
		m.publish(Publication{Instance: inst.id, Owner: inst.owner, Update: u})
	}

	switch inst.kind {
	case game.KindWhackAMole:
		return whack.NewGame(whack.NewGameOptions{
			Context:   ctx,
			Scheduler: inst.loop,
			Store:     m.userStore(inst.owner),
			Rand:      m.newRand(),
			Observer:  observer,
		})
	case game.KindTypingTest:
		return typing.NewGame(typing.NewGameOptions{
			Context:   ctx,
			Scheduler: inst.loop,
			Store:     m.sessionStore(inst.owner),
			Rand:      m.newRand(),
			Observer:  observer,
		})
	default:
		return memory.NewGame(memory.NewGameOptions{
			Context:   ctx,
			Scheduler: inst.loop,
			Store:     m.userStore(inst.owner),
			Rand:      m.newRand(),
			Observer:  observer,
		})
	}
}

// Dispatch applies an action to an instance owned by the user of owner.
func (m *Manager) Dispatch(ctx context.Context, owner Owner, id string, action game.Action) error {
	inst, err := m.get(owner, id)
	if err != nil {
		return err
	}
	inst.touch(m.now())

	var dispatchErr error
	if err := inst.loop.Call(ctx, func() {
		dispatchErr = inst.controller.Dispatch(action)
	}); err != nil {
		return fmt.Errorf("failed to dispatch to instance %s: %v", id, err)
	}
	return dispatchErr
}

// Snapshot returns the current state of an instance.
func (m *Manager) Snapshot(ctx context.Context, owner Owner, id string) (game.Update, error) {
	inst, err := m.get(owner, id)
	if err != nil {
		return game.Update{}, err
	}
	inst.touch(m.now())

	var snapshot game.Update
	if err := inst.loop.Call(ctx, func() {
		snapshot = inst.controller.Snapshot()
	}); err != nil {
		return game.Update{}, fmt.Errorf("failed to snapshot instance %s: %v", id, err)
	}
	return snapshot, nil
}

// Info returns the metadata of an instance.
func (m *Manager) Info(owner Owner, id string) (Info, error) {
	inst, err := m.get(owner, id)
	if err != nil {
		return Info{}, err
	}
	return inst.info(), nil
}

// Close closes an instance owned by the user of owner.
func (m *Manager) Close(ctx context.Context, owner Owner, id string) error {
	inst, err := m.get(owner, id)
	if err != nil {
		return err
	}
	m.closeInstance(ctx, inst)
	return nil
}

// AttachBrowserSession keeps the session-scoped store of owner alive while a
// connection holds the session, even when it has no running instance.
func (m *Manager) AttachBrowserSession(owner Owner) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.sessionLocked(owner.key()).attached = true
}

// EndBrowserSession closes every instance of a browser session of the user
// of owner and drops its session-scoped store.
func (m *Manager) EndBrowserSession(ctx context.Context, owner Owner) {
	key := owner.key()
	for _, inst := range m.collect(func(i *instance) bool { return i.owner.key() == key }) {
		m.closeInstance(ctx, inst)
	}

	m.lock.Lock()
	delete(m.sessions, key)
	m.lock.Unlock()
	log.Debug("Ended browser session %s of %s", key.SessionID, key.UserID)
}

// Sessions returns the number of browser sessions holding a session-scoped store.
func (m *Manager) Sessions() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.sessions)
}

// Reap closes every instance that has not been driven or observed for longer
// than ttl and returns their ids.
func (m *Manager) Reap(ctx context.Context, ttl time.Duration) []string {
	cutoff := m.now().Add(-ttl)
	idle := m.collect(func(i *instance) bool {
		return time.Unix(0, i.lastActive.Load()).Before(cutoff)
	})

	ids := make([]string, 0, len(idle))
	for _, inst := range idle {
		m.closeInstance(ctx, inst)
		ids = append(ids, inst.id)
	}
	return ids
}

// Shutdown closes every instance.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, inst := range m.collect(func(*instance) bool { return true }) {
		m.closeInstance(ctx, inst)
	}
}

// Len returns the number of running instances.
func (m *Manager) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.instances)
}

func (m *Manager) get(owner Owner, id string) (*instance, error) {
	m.lock.RLock()
	inst, ok := m.instances[id]
	m.lock.RUnlock()
	if !ok || inst.owner.user() != owner.user() {
		return nil, ErrInstanceNotFound
	}
	return inst, nil
}

func (m *Manager) collect(match func(*instance) bool) []*instance {
	m.lock.RLock()
	defer m.lock.RUnlock()
	var matched []*instance
	for _, inst := range m.instances {
		if match(inst) {
			matched = append(matched, inst)
		}
	}
	return matched
}

func (m *Manager) closeInstance(ctx context.Context, inst *instance) {
	m.lock.Lock()
	if _, ok := m.instances[inst.id]; !ok {
		m.lock.Unlock()
		return
	}
	delete(m.instances, inst.id)
	m.releaseSessionLocked(inst.owner.key())
	m.lock.Unlock()

	if err := inst.loop.Call(ctx, inst.controller.Close); err != nil {
		log.Warn("Failed to close instance %s cleanly: %v", inst.id, err)
	}
	inst.loop.Stop()
	inst.cancel()

	m.publish(Publication{Instance: inst.id, Owner: inst.owner, Closed: true})
	log.Debug("Closed %s instance %s", inst.kind, inst.id)
}

func (m *Manager) publish(p Publication) {
	if err := m.outbox.Enqueue(p); err != nil {
		log.Warn("Dropped update for instance %s: %v", p.Instance, err)
	}
}

func (m *Manager) userStore(owner Owner) store.Store {
	return store.NewPrefixedStore(m.durable, owner.user())
}

func (m *Manager) sessionStore(owner Owner) store.Store {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.sessionLocked(owner.key()).store
}

func (m *Manager) sessionLocked(key Owner) *session {
	s, ok := m.sessions[key]
	if !ok {
		s = &session{store: store.NewMemoryStore()}
		m.sessions[key] = s
	}
	return s
}

// releaseSessionLocked drops the session-scoped store of key once no
// connection holds it and its last instance is gone.
func (m *Manager) releaseSessionLocked(key Owner) {
	s, ok := m.sessions[key]
	if !ok || s.attached {
		return
	}
	for _, inst := range m.instances {
		if inst.owner.key() == key {
			return
		}
	}
	delete(m.sessions, key)
}
