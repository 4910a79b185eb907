package engine

import (
	"context"
	"time"
)

// Engine is the simulation contract consumed by the worker. Implementations are
// not safe for concurrent use; a worker owns exactly one engine.
type Engine interface {
	Init(ctx context.Context, grid *Grid, snakes []Snake) error
	Start()
	Pause()
	Reset()
	Stop(finish bool)
	Kill()
	Exit()
	Tick()
	ForceStart()
	Key(key Key, slot int)
	SetGameOver(slot int)
	Update(field string, value int64)

	// Running reports whether the engine expects Tick to be called.
	Running() bool
	// Interval is the delay until the next Tick.
	Interval() time.Duration
	Snapshot() Snapshot
}

// Factory builds an engine that reports its lifecycle events through emit.
type Factory func(opts Options, emit func(Event)) Engine

// Apply routes a command to the matching engine method.
func Apply(e Engine, cmd Command) {
	switch cmd.Kind {
	case CmdReset:
		e.Reset()
	case CmdStart:
		e.Start()
	case CmdStop:
		e.Stop(false)
	case CmdFinish:
		e.Stop(true)
	case CmdPause:
		e.Pause()
	case CmdKill:
		e.Kill()
	case CmdTick:
		e.Tick()
	case CmdExit:
		e.Exit()
	case CmdForceStart:
		e.ForceStart()
	case CmdKey:
		e.Key(cmd.Key, cmd.Slot)
	case CmdSetGameOver:
		e.SetGameOver(cmd.Slot)
	case CmdUpdate:
		e.Update(cmd.Field, cmd.Value)
	}
}
