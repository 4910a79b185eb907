package worker

import (
	"context"
	"time"

	"snakeiaserver/internal/engine"

	"go.uber.org/zap"
)

// initTimeout bounds engine initialisation (model loading and the like).
const initTimeout = 30 * time.Second

// worker is the isolated execution context owning one engine. It only talks
// to its bridge through encoded messages.
type worker struct {
	opts    engine.Options
	factory engine.Factory
	inbox   *mailbox
	outbox  chan<- []byte
	stop    <-chan struct{}
	exited  chan<- struct{}
}

func (w *worker) run() {
	defer close(w.exited)
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("worker.panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	eng := w.factory(w.opts, w.emit)

	var (
		timer *time.Timer
		tickC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		if eng.Running() {
			if timer == nil {
				timer = time.NewTimer(eng.Interval())
				tickC = timer.C
			}
		} else if timer != nil {
			timer.Stop()
			timer, tickC = nil, nil
		}

		select {
		case <-w.stop:
			return
		case <-w.inbox.signal:
			for _, raw := range w.inbox.drain() {
				w.handle(eng, raw)
			}
		case <-tickC:
			timer, tickC = nil, nil
			eng.Tick()
		}
	}
}

func (w *worker) handle(eng engine.Engine, raw []byte) {
	msg, err := decode(raw)
	if err != nil {
		zap.L().Warn("worker.decode", zap.Error(err))
		return
	}

	switch msg.Type {
	case msgInit:
		ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
		err := eng.Init(ctx, msg.Grid, msg.Snakes)
		cancel()
		if err != nil {
			zap.L().Error("worker.init", zap.Error(err))
			w.send(message{Type: msgAck, ErrorOccurred: true})
			return
		}
		snap := eng.Snapshot()
		w.send(message{Type: msgAck, Event: &engine.Event{Kind: engine.EventInit, Snapshot: snap}})
	case msgCommand:
		if msg.Command != nil {
			engine.Apply(eng, *msg.Command)
		}
	}
}

func (w *worker) emit(ev engine.Event) {
	w.send(message{Type: msgEvent, Event: &ev})
}

func (w *worker) send(msg message) {
	raw, err := encode(msg)
	if err != nil {
		zap.L().Error("worker.encode", zap.Error(err))
		return
	}
	select {
	case w.outbox <- raw:
	case <-w.stop:
	}
}
