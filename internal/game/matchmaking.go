package game

import (
	"snakeiaserver/internal/engine"

	"go.uber.org/zap"
)

// matchmake promotes spectators, arms or cancels the start countdown and
// tells every member where the room stands. Running it twice without a
// membership change in between changes nothing.
func (s *Service) matchmake(r *Room) {
	if s.registry.Lookup(r.Code) != r {
		return
	}

	if r.searching {
		r.promote()

		humans := len(r.players)
		switch {
		case humans > 1 && r.countdown == nil:
			s.armCountdown(r)
		case humans <= 1 && r.countdown != nil:
			s.cancelCountdown(r)
		}

		if humans > 0 {
			s.out.EmitGroup(r.group(), "init", InitMessage{
				SearchingPlayers:     r.searching,
				TimeStart:            r.timeStart(s.clock.Now()),
				PlayerNumber:         humans,
				MaxPlayers:           r.capacity,
				AIPlayers:            r.aiSlots,
				SpectatorMode:        false,
				ErrorOccurred:        r.last != nil && r.last.ErrorOccurred,
				OnlineMaster:         false,
				OnlineMode:           true,
				EnableRetryPauseMenu: false,
			})
			s.out.Emit(r.host().ConnID, "init", map[string]any{"onlineMaster": true})
		}
	}

	s.setupSpectators(r)
}

func (s *Service) armCountdown(r *Room) {
	r.countdownGen++
	gen := r.countdownGen
	r.countdownAt = s.clock.Now().Add(s.cfg.PlayerWaitTime)
	r.countdown = s.after(s.cfg.PlayerWaitTime, func() {
		// the room may have been reaped or the countdown replaced meanwhile
		if s.registry.Lookup(r.Code) != r || r.countdownGen != gen || r.countdown == nil || r.started {
			return
		}
		r.countdown = nil
		s.startGame(r)
	})
	zap.L().Debug("room.countdown", zap.String("code", r.Code), zap.Duration("wait", s.cfg.PlayerWaitTime))
}

func (s *Service) cancelCountdown(r *Room) {
	if r.countdown != nil {
		r.countdown.Stop()
		r.countdown = nil
	}
	r.countdownGen++
}

func (s *Service) cancelMaxTime(r *Room) {
	if r.maxTime != nil {
		r.maxTime.Stop()
		r.maxTime = nil
	}
}

// startGame binds one snake per player plus the AI slots and (re)starts the
// simulation on a freshly seeded grid.
func (s *Service) startGame(r *Room) {
	if s.registry.Lookup(r.Code) != r || r.started {
		return
	}
	s.cancelCountdown(r)

	r.searching = false
	r.started = true
	r.roundGen++
	r.roundAt = s.clock.Now()
	r.last = nil

	st := r.Settings
	grid := engine.NewGrid(st.Width, st.Height, st.BorderWalls, st.GenerateWalls, s.seed())
	grid.Init()

	snakes := make([]engine.Snake, 0, len(r.players)+r.aiSlots)
	for i, p := range r.players {
		p.Slot = i + 1
		snakes = append(snakes, engine.Snake{Player: engine.PlayerHuman, Name: p.Username})
		s.out.Emit(p.ConnID, "init", map[string]any{
			"currentPlayer": p.Slot,
			"spectatorMode": false,
		})
	}
	for range r.aiSlots {
		snakes = append(snakes, engine.Snake{Player: engine.PlayerAI, AILevel: st.AILevel})
	}

	r.sim.Init(grid, snakes)
	if !r.alreadyInit {
		r.sim.Send(engine.Command{Kind: engine.CmdStart})
		r.alreadyInit = true
	} else {
		r.sim.Send(engine.Command{Kind: engine.CmdReset})
	}

	if s.cfg.MaxGameDuration > 0 {
		gen := r.roundGen
		r.maxTime = s.after(s.cfg.MaxGameDuration, func() {
			if s.registry.Lookup(r.Code) != r || !r.started || r.roundGen != gen {
				return
			}
			r.maxTime = nil
			zap.L().Info("room.max_time", zap.String("code", r.Code))
			r.sim.Send(engine.Stop(true))
		})
	}

	zap.L().Info("room.start",
		zap.String("code", r.Code),
		zap.Int("players", len(r.players)),
		zap.Int("ai", r.aiSlots),
	)
	s.setupSpectators(r)
}

func (s *Service) setupSpectators(r *Room) {
	for _, p := range r.spectators {
		s.out.Emit(p.ConnID, "init", map[string]any{
			"spectatorMode":        true,
			"onlineMode":           true,
			"enableRetryPauseMenu": false,
		})
	}
}
