package game

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"snakeiaserver/internal/engine"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Broadcaster ---

type sent struct {
	To      string
	Group   string
	Event   string
	Payload any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	sent   []sent
	groups map[string]map[string]bool
}

func newFakeBroadcaster() *fakeBroadcaster {
	return &fakeBroadcaster{groups: map[string]map[string]bool{}}
}

func (b *fakeBroadcaster) Emit(connID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sent{To: connID, Event: event, Payload: payload})
}

func (b *fakeBroadcaster) EmitGroup(group, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for connID := range b.groups[group] {
		b.sent = append(b.sent, sent{To: connID, Group: group, Event: event, Payload: payload})
	}
}

func (b *fakeBroadcaster) Join(connID, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.groups[group] == nil {
		b.groups[group] = map[string]bool{}
	}
	b.groups[group][connID] = true
}

func (b *fakeBroadcaster) Leave(connID, group string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.groups[group], connID)
}

// received returns the payloads of event delivered to connID, oldest first.
func (b *fakeBroadcaster) received(connID, event string) []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []any
	for _, s := range b.sent {
		if s.To == connID && s.Event == event {
			out = append(out, s.Payload)
		}
	}
	return out
}

func (b *fakeBroadcaster) last(connID, event string) any {
	all := b.received(connID, event)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func (b *fakeBroadcaster) members(group string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups[group])
}

// --- Simulation ---

type initCall struct {
	Grid   *engine.Grid
	Snakes []engine.Snake
}

type fakeSim struct {
	opts engine.Options

	mu    sync.Mutex
	inits []initCall
	cmds  []engine.Command

	events     chan engine.Event
	terminated atomic.Bool
	closeOnce  sync.Once
}

func (f *fakeSim) Init(grid *engine.Grid, snakes []engine.Snake) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, initCall{Grid: grid, Snakes: snakes})
}

func (f *fakeSim) Send(cmd engine.Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
}

func (f *fakeSim) Events() <-chan engine.Event { return f.events }

func (f *fakeSim) Terminate() {
	f.terminated.Store(true)
	f.closeOnce.Do(func() { close(f.events) })
}

func (f *fakeSim) Terminated() bool { return f.terminated.Load() }

func (f *fakeSim) Commands() []engine.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Command(nil), f.cmds...)
}

func (f *fakeSim) Inits() []initCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]initCall(nil), f.inits...)
}

func (f *fakeSim) emit(ev engine.Event) { f.events <- ev }

// crash mimics a worker dying mid-round: a synthesized stop, then silence.
func (f *fakeSim) crash() {
	f.terminated.Store(true)
	f.events <- engine.Event{Kind: engine.EventStop, Snapshot: engine.Snapshot{GameOver: true, ErrorOccurred: true}}
	f.closeOnce.Do(func() { close(f.events) })
}

type simFactory struct {
	mu   sync.Mutex
	sims []*fakeSim
}

func (s *simFactory) New(opts engine.Options) Simulation {
	s.mu.Lock()
	defer s.mu.Unlock()
	sim := &fakeSim{opts: opts, events: make(chan engine.Event, 64)}
	s.sims = append(s.sims, sim)
	return sim
}

func (s *simFactory) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sims)
}

func (s *simFactory) Last() *fakeSim {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sims[len(s.sims)-1]
}

// --- Clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	f     func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

// Advance moves time forward and fires every timer that came due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()

	for _, f := range due {
		f()
	}
}

// Pending counts armed timers.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// --- RoundRecorder ---

type MockRoundRecorder struct {
	mock.Mock
}

func (m *MockRoundRecorder) Record(ctx context.Context, res RoundResult) error {
	args := m.Called(ctx, res)
	return args.Error(0)
}

// --- Authenticator ---

type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(Identity), args.Error(1)
}

type codedAuthError string

func (e codedAuthError) Error() string     { return "auth: " + string(e) }
func (e codedAuthError) ErrorCode() string { return string(e) }

// --- harness ---

type harness struct {
	t     *testing.T
	ctx   context.Context
	svc   *Service
	out   *fakeBroadcaster
	clock *fakeClock
	sims  *simFactory
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PlayerWaitTime = 10 * time.Second
	cfg.MaxRooms = 5
	cfg.EmptyRoomTTL = time.Minute
	return cfg
}

func newHarness(t *testing.T, cfg Config, deps Deps) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		out:   newFakeBroadcaster(),
		clock: newFakeClock(),
		sims:  &simFactory{},
	}
	deps.Broadcaster = h.out
	deps.Clock = h.clock
	deps.Simulations = h.sims.New
	h.svc = NewService(cfg, deps)

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// session opens an authenticated session; token doubles as identity.
func (h *harness) session(connID, token string) *Session {
	h.t.Helper()
	ss := h.svc.NewSession(connID)
	require.NoError(h.t, ss.Authenticate(h.ctx, token))
	return ss
}

// on runs f on the game loop and waits for it.
func (h *harness) on(f func()) {
	h.t.Helper()
	require.NoError(h.t, h.svc.loop.Do(h.ctx, f))
}

func (h *harness) room(code string) *Room {
	var r *Room
	h.on(func() { r = h.svc.registry.Lookup(code) })
	return r
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.on(func() {})
}

func (h *harness) roster(code string) (players, spectators []string) {
	h.on(func() {
		r := h.svc.registry.Lookup(code)
		if r == nil {
			return
		}
		for _, p := range r.players {
			players = append(players, p.ConnID)
		}
		for _, p := range r.spectators {
			spectators = append(spectators, p.ConnID)
		}
	})
	return players, spectators
}

func (h *harness) state(code string) string {
	var st string
	h.on(func() {
		if r := h.svc.registry.Lookup(code); r != nil {
			st = r.State()
		}
	})
	return st
}

func boolPtr(v bool) *bool { return &v }

func roomRequest(width, height int, borderWalls bool) CreateRequest {
	return CreateRequest{
		HeightGrid:    float64(height),
		WidthGrid:     float64(width),
		BorderWalls:   boolPtr(borderWalls),
		GenerateWalls: boolPtr(false),
		Private:       boolPtr(false),
		Speed:         float64(8),
	}
}

// createRoom has creator open a room and returns its code.
func (h *harness) createRoom(creator *Session, req CreateRequest) string {
	h.t.Helper()
	code, err := creator.Create(h.ctx, req)
	require.NoError(h.t, err)
	return code
}
