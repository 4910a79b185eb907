package worker

import (
	"sync"
	"sync/atomic"

	"snakeiaserver/internal/engine"

	"go.uber.org/zap"
)

const eventBuffer = 256

// Bridge presents an engine running in its own worker goroutine as a local
// object. Commands sent before the worker acknowledges init are queued and
// flushed in order once the acknowledgment arrives.
type Bridge struct {
	inbox  *mailbox
	outbox chan []byte
	events chan engine.Event
	exited chan struct{}
	stop   chan struct{}

	stopOnce   sync.Once
	terminated atomic.Bool

	mu    sync.Mutex
	ready bool
	queue []engine.Command
	grid  *engine.Grid
}

// New spawns the worker and returns immediately. The simulation accepts
// commands only after Init has been acknowledged.
func New(opts engine.Options, factory engine.Factory) *Bridge {
	b := &Bridge{
		inbox:  newMailbox(),
		outbox: make(chan []byte, eventBuffer),
		events: make(chan engine.Event, eventBuffer),
		exited: make(chan struct{}),
		stop:   make(chan struct{}),
	}

	w := &worker{
		opts:    opts,
		factory: factory,
		inbox:   b.inbox,
		outbox:  b.outbox,
		stop:    b.stop,
		exited:  b.exited,
	}
	go w.run()
	go b.relay()
	return b
}

// Init (re)initialises the remote engine with a fresh grid and roster.
func (b *Bridge) Init(grid *engine.Grid, snakes []engine.Snake) {
	if b.terminated.Load() {
		return
	}
	raw, err := encode(message{Type: msgInit, Grid: grid, Snakes: snakes})
	if err != nil {
		zap.L().Error("bridge.encode_init", zap.Error(err))
		return
	}

	b.mu.Lock()
	b.ready = false
	b.grid = grid
	b.inbox.push(raw)
	b.mu.Unlock()
}

// Send is fire-and-forget; effects are observed through Events.
func (b *Bridge) Send(cmd engine.Command) {
	if b.terminated.Load() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.ready {
		b.queue = append(b.queue, cmd)
		return
	}
	b.push(cmd)
}

func (b *Bridge) push(cmd engine.Command) {
	raw, err := encode(message{Type: msgCommand, Command: &cmd})
	if err != nil {
		zap.L().Error("bridge.encode_cmd", zap.String("kind", string(cmd.Kind)), zap.Error(err))
		return
	}
	b.inbox.push(raw)
}

// Events is closed once the bridge is terminated.
func (b *Bridge) Events() <-chan engine.Event {
	return b.events
}

// Terminate tears the worker down. It is idempotent.
func (b *Bridge) Terminate() {
	b.stopOnce.Do(func() {
		b.terminated.Store(true)
		close(b.stop)
	})
}

func (b *Bridge) Terminated() bool {
	return b.terminated.Load()
}

func (b *Bridge) relay() {
	defer close(b.events)

	for {
		select {
		case <-b.stop:
			return
		case raw := <-b.outbox:
			b.receive(raw)
		case <-b.exited:
			for {
				select {
				case raw := <-b.outbox:
					b.receive(raw)
					continue
				default:
				}
				break
			}
			if !b.terminated.Load() {
				zap.L().Error("worker.crash")
				b.deliver(failure())
				b.Terminate()
			}
			return
		}
	}
}

func (b *Bridge) receive(raw []byte) {
	msg, err := decode(raw)
	if err != nil {
		zap.L().Warn("bridge.decode", zap.Error(err))
		return
	}

	switch msg.Type {
	case msgAck:
		b.mu.Lock()
		if msg.ErrorOccurred {
			// the engine is unusable until the next Init
			b.queue = nil
			b.mu.Unlock()
			b.deliver(failure())
			return
		}
		b.ready = true
		for _, cmd := range b.queue {
			b.push(cmd)
		}
		b.queue = nil
		grid := b.grid
		b.mu.Unlock()

		if msg.Event != nil {
			engine.Rehydrate(&msg.Event.Snapshot, grid)
			b.deliver(*msg.Event)
		}
	case msgEvent:
		if msg.Event == nil {
			return
		}
		b.mu.Lock()
		if msg.Event.Snapshot.Grid != nil {
			b.grid = msg.Event.Snapshot.Grid
		}
		grid := b.grid
		b.mu.Unlock()

		engine.Rehydrate(&msg.Event.Snapshot, grid)
		b.deliver(*msg.Event)
		if msg.Event.Kind == engine.EventKill {
			b.Terminate()
		}
	}
}

func (b *Bridge) deliver(ev engine.Event) {
	if b.terminated.Load() {
		return
	}
	select {
	case b.events <- ev:
	case <-b.stop:
	}
}

// failure is the terminal event synthesized when the worker cannot go on.
func failure() engine.Event {
	return engine.Event{
		Kind:     engine.EventStop,
		Snapshot: engine.Snapshot{GameOver: true, ErrorOccurred: true},
	}
}
