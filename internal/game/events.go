package game

import (
	"context"
	"time"

	"snakeiaserver/internal/engine"

	"go.uber.org/zap"
)

const recordTimeout = 5 * time.Second

// RoundResult summarizes one finished round.
type RoundResult struct {
	Code          string        `json:"code"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
	Ticks         int           `json:"ticks"`
	ScoreMax      int           `json:"score_max"`
	Finished      bool          `json:"finished"`
	ErrorOccurred bool          `json:"error_occurred"`
	Players       []RoundPlayer `json:"players"`
}

type RoundPlayer struct {
	Slot     int    `json:"slot"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Score    int    `json:"score"`
	GameOver bool   `json:"game_over"`
}

// onEvent relays one simulation event to the room and reconciles the room
// state with it. Events of a replaced simulation or a reaped room are dropped.
func (s *Service) onEvent(code string, simGen uint64, ev engine.Event) {
	r := s.registry.Lookup(code)
	if r == nil || r.simGen != simGen {
		return
	}

	snap := ev.Snapshot
	if ev.Kind != engine.EventInit {
		s.out.EmitGroup(r.group(), string(ev.Kind), eventPayload(ev.Kind, &snap))
	}
	if len(snap.Snakes) > 0 || snap.ErrorOccurred {
		r.last = &snap
	}

	switch ev.Kind {
	case engine.EventStop:
		s.endRound(r, &snap)
	case engine.EventKill:
		r.sim.Terminate()
		s.endRound(r, &snap)
	}
}

// endRound returns the room to matchmaking after a stop or kill.
func (s *Service) endRound(r *Room, snap *engine.Snapshot) {
	if r.started {
		s.record(r, snap)
	}

	r.started = false
	r.searching = true
	s.cancelMaxTime(r)
	r.unbind()

	if r.sim.Terminated() {
		zap.L().Warn("room.simulation_lost", zap.String("code", r.Code), zap.Bool("error", snap.ErrorOccurred))
		s.attach(r)
	}
	s.matchmake(r)
}

func (s *Service) record(r *Room, snap *engine.Snapshot) {
	if s.recorder == nil {
		return
	}

	res := RoundResult{
		Code:          r.Code,
		StartedAt:     r.roundAt,
		EndedAt:       s.clock.Now(),
		Ticks:         snap.Ticks,
		ScoreMax:      snap.ScoreMax,
		Finished:      snap.GameFinished,
		ErrorOccurred: snap.ErrorOccurred,
		Players:       make([]RoundPlayer, 0, len(snap.Snakes)),
	}
	for i, sn := range snap.Snakes {
		res.Players = append(res.Players, RoundPlayer{
			Slot:     i + 1,
			Name:     sn.Name,
			Kind:     string(sn.Player),
			Score:    sn.Score,
			GameOver: sn.GameOver,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.recorder.Record(ctx, res); err != nil {
			zap.L().Warn("room.record_round", zap.String("code", res.Code), zap.Error(err))
		}
	}()
}
