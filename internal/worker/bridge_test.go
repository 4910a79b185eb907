package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"snakeiaserver/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEngine logs every command it receives. Init blocks on release to
// mimic a slow model load.
type recordingEngine struct {
	mu      sync.Mutex
	calls   []string
	release chan struct{}
	initErr error
	panicOn string
	emit    func(engine.Event)
}

func (e *recordingEngine) record(call string) {
	if call == e.panicOn {
		panic("boom: " + call)
	}
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *recordingEngine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

func (e *recordingEngine) Init(ctx context.Context, grid *engine.Grid, snakes []engine.Snake) error {
	if e.release != nil {
		<-e.release
	}
	e.record("init")
	return e.initErr
}
func (e *recordingEngine) Start() {
	e.record("start")
	e.emit(engine.Event{Kind: engine.EventStart, Snapshot: engine.Snapshot{Snakes: []engine.Snake{{Name: "a"}}}})
}
func (e *recordingEngine) Pause()           { e.record("pause") }
func (e *recordingEngine) Reset()           { e.record("reset") }
func (e *recordingEngine) Stop(finish bool) { e.record("stop") }
func (e *recordingEngine) Kill() {
	e.record("kill")
	e.emit(engine.Event{Kind: engine.EventKill})
}
func (e *recordingEngine) Exit()                           { e.record("exit") }
func (e *recordingEngine) Tick()                           { e.record("tick") }
func (e *recordingEngine) ForceStart()                     { e.record("forceStart") }
func (e *recordingEngine) Key(key engine.Key, slot int)    { e.record("key:" + string(key)) }
func (e *recordingEngine) SetGameOver(slot int)            { e.record("setGameOver") }
func (e *recordingEngine) Update(field string, v int64)    { e.record("update:" + field) }
func (e *recordingEngine) Running() bool                   { return false }
func (e *recordingEngine) Interval() time.Duration         { return time.Second }
func (e *recordingEngine) Snapshot() engine.Snapshot       { return engine.Snapshot{} }

func newRecording(t *testing.T, eng *recordingEngine) *Bridge {
	t.Helper()
	b := New(engine.Options{Speed: 8}, func(opts engine.Options, emit func(engine.Event)) engine.Engine {
		eng.emit = emit
		return eng
	})
	t.Cleanup(b.Terminate)
	return b
}

func nextEvent(t *testing.T, b *Bridge) engine.Event {
	t.Helper()
	select {
	case ev, ok := <-b.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
	}
	return engine.Event{}
}

func TestBridge_QueuesCommandsUntilInitAck(t *testing.T) {
	eng := &recordingEngine{release: make(chan struct{})}
	b := newRecording(t, eng)

	grid := engine.NewGrid(10, 10, false, false, 1)
	grid.Init()
	b.Init(grid, nil)
	b.Send(engine.Command{Kind: engine.CmdStart})
	b.Send(engine.KeyInput(engine.KeyLeft, 1))
	b.Send(engine.Command{Kind: engine.CmdPause})
	b.Send(engine.SetGameOver(1))

	assert.Empty(t, eng.Calls())
	close(eng.release)

	assert.Equal(t, engine.EventInit, nextEvent(t, b).Kind)
	assert.Eventually(t, func() bool { return len(eng.Calls()) == 5 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"init", "start", "key:ArrowLeft", "pause", "setGameOver"}, eng.Calls())
}

func TestBridge_SendBeforeInitIsQueued(t *testing.T) {
	eng := &recordingEngine{}
	b := newRecording(t, eng)

	b.Send(engine.Command{Kind: engine.CmdReset})
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, eng.Calls())

	b.Init(engine.NewGrid(10, 10, false, false, 2), nil)
	assert.Eventually(t, func() bool { return len(eng.Calls()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"init", "reset"}, eng.Calls())
}

func TestBridge_RehydratesSnakesWithGrid(t *testing.T) {
	eng := &recordingEngine{}
	b := newRecording(t, eng)

	grid := engine.NewGrid(12, 8, true, false, 3)
	grid.Init()
	b.Init(grid, nil)
	b.Send(engine.Command{Kind: engine.CmdStart})

	require.Equal(t, engine.EventInit, nextEvent(t, b).Kind)
	ev := nextEvent(t, b)
	require.Equal(t, engine.EventStart, ev.Kind)
	require.Len(t, ev.Snapshot.Snakes, 1)
	require.NotNil(t, ev.Snapshot.Snakes[0].Grid)
	assert.Equal(t, 12, ev.Snapshot.Snakes[0].Grid.Width)
	assert.Same(t, ev.Snapshot.Grid, ev.Snapshot.Snakes[0].Grid)
}

func TestBridge_InitFailureSynthesizesStop(t *testing.T) {
	eng := &recordingEngine{initErr: errors.New("model missing")}
	b := newRecording(t, eng)

	b.Init(engine.NewGrid(10, 10, false, false, 4), nil)
	b.Send(engine.Command{Kind: engine.CmdStart})

	ev := nextEvent(t, b)
	assert.Equal(t, engine.EventStop, ev.Kind)
	assert.True(t, ev.Snapshot.ErrorOccurred)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"init"}, eng.Calls())
}

func TestBridge_WorkerPanicSynthesizesStopAndCloses(t *testing.T) {
	eng := &recordingEngine{panicOn: "pause"}
	b := newRecording(t, eng)

	b.Init(engine.NewGrid(10, 10, false, false, 5), nil)
	b.Send(engine.Command{Kind: engine.CmdPause})

	require.Equal(t, engine.EventInit, nextEvent(t, b).Kind)
	ev := nextEvent(t, b)
	assert.Equal(t, engine.EventStop, ev.Kind)
	assert.True(t, ev.Snapshot.ErrorOccurred)

	_, ok := <-b.Events()
	assert.False(t, ok)
	assert.True(t, b.Terminated())
}

func TestBridge_KillTerminates(t *testing.T) {
	eng := &recordingEngine{}
	b := newRecording(t, eng)

	b.Init(engine.NewGrid(10, 10, false, false, 6), nil)
	b.Send(engine.Command{Kind: engine.CmdKill})

	require.Equal(t, engine.EventInit, nextEvent(t, b).Kind)
	assert.Equal(t, engine.EventKill, nextEvent(t, b).Kind)
	assert.Eventually(t, b.Terminated, time.Second, 5*time.Millisecond)
}

func TestBridge_TerminateIsIdempotent(t *testing.T) {
	b := newRecording(t, &recordingEngine{})

	b.Terminate()
	b.Terminate()
	b.Send(engine.Command{Kind: engine.CmdStart})

	select {
	case _, ok := <-b.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed after terminate")
	}
}

func TestBridge_RunsBasicEngine(t *testing.T) {
	b := New(engine.Options{Speed: 1}, engine.NewBasic)
	t.Cleanup(b.Terminate)

	grid := engine.NewGrid(20, 20, true, false, 7)
	grid.Init()
	b.Init(grid, []engine.Snake{{Player: engine.PlayerHuman}, {Player: engine.PlayerAI}})
	b.Send(engine.Command{Kind: engine.CmdStart})
	b.Send(engine.Command{Kind: engine.CmdForceStart})

	require.Equal(t, engine.EventInit, nextEvent(t, b).Kind)
	assert.Equal(t, engine.EventStart, nextEvent(t, b).Kind)

	ev := nextEvent(t, b)
	assert.Contains(t, []engine.EventKind{engine.EventUpdate, engine.EventScoreIncreased, engine.EventStop}, ev.Kind)
	for _, s := range ev.Snapshot.Snakes {
		assert.NotNil(t, s.Grid)
	}
}
