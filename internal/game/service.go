package game

import (
	"context"
	"math/rand/v2"
	"time"

	"snakeiaserver/internal/engine"
	"snakeiaserver/internal/worker"

	"go.uber.org/zap"
)

// Broadcaster delivers outbound events to connections and room groups.
// Implementations must not block.
type Broadcaster interface {
	Emit(connID, event string, payload any)
	EmitGroup(group, event string, payload any)
	Join(connID, group string)
	Leave(connID, group string)
}

// Simulation is the room's handle on one engine running out of the loop.
type Simulation interface {
	Init(grid *engine.Grid, snakes []engine.Snake)
	Send(cmd engine.Command)
	Events() <-chan engine.Event
	Terminate()
	Terminated() bool
}

type SimulationFactory func(opts engine.Options) Simulation

// Identity is an authenticated connection owner.
type Identity struct {
	Token    string
	Username string
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// RoundRecorder receives the result of every finished round.
type RoundRecorder interface {
	Record(ctx context.Context, res RoundResult) error
}

type Deps struct {
	Broadcaster   Broadcaster
	Simulations   SimulationFactory
	Authenticator Authenticator
	Recorder      RoundRecorder
	Registry      *Registry
	Clock         Clock
	Loop          *Loop
}

// Service is the room/matchmaking core. Every exported method is safe for
// concurrent use; the work itself runs on the game loop.
type Service struct {
	cfg      Config
	loop     *Loop
	clock    Clock
	registry *Registry
	out      Broadcaster
	newSim   SimulationFactory
	auth     Authenticator
	recorder RoundRecorder
	seed     func() uint64
}

func NewService(cfg Config, deps Deps) *Service {
	s := &Service{
		cfg:      cfg,
		loop:     deps.Loop,
		clock:    deps.Clock,
		registry: deps.Registry,
		out:      deps.Broadcaster,
		newSim:   deps.Simulations,
		auth:     deps.Authenticator,
		recorder: deps.Recorder,
		seed:     rand.Uint64,
	}
	if s.loop == nil {
		s.loop = NewLoop()
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.newSim == nil {
		s.newSim = func(opts engine.Options) Simulation { return worker.New(opts, engine.NewBasic) }
	}
	return s
}

func (s *Service) Config() Config { return s.cfg }

// Run drives the game loop until ctx is done, then tears every room down.
func (s *Service) Run(ctx context.Context) {
	s.loop.Run(ctx)

	for _, r := range s.registry.rooms {
		s.dispose(r)
	}
	zap.L().Info("game.stopped", zap.Int("rooms", len(s.registry.rooms)))
}

// after schedules f on the loop once d has elapsed.
func (s *Service) after(d time.Duration, f func()) Timer {
	return s.clock.AfterFunc(d, func() { s.loop.Post(f) })
}

// ListRooms returns the public rooms of this instance.
func (s *Service) ListRooms(ctx context.Context) ([]RoomSummary, error) {
	var out []RoomSummary
	err := s.loop.Do(ctx, func() { out = s.registry.ListPublic() })
	return out, err
}

// RoomsReply is the payload of the rooms event.
type RoomsReply struct {
	Rooms         []RoomSummary `json:"rooms"`
	ServerVersion string        `json:"serverVersion"`
	EngineVersion string        `json:"engineVersion"`
	Settings      RoomLimits    `json:"settings"`
}

type RoomLimits struct {
	MaxRooms    int `json:"maxRooms"`
	MinGridSize int `json:"minGridSize"`
	MaxGridSize int `json:"maxGridSize"`
	MinSpeed    int `json:"minSpeed"`
	MaxSpeed    int `json:"maxSpeed"`
}

func (s *Service) RoomsReply(rooms []RoomSummary) RoomsReply {
	if rooms == nil {
		rooms = []RoomSummary{}
	}
	return RoomsReply{
		Rooms:         rooms,
		ServerVersion: s.cfg.ServerVersion,
		EngineVersion: engine.Version,
		Settings: RoomLimits{
			MaxRooms:    s.cfg.MaxRooms,
			MinGridSize: s.cfg.MinGridSize,
			MaxGridSize: s.cfg.MaxGridSize,
			MinSpeed:    s.cfg.MinSpeed,
			MaxSpeed:    s.cfg.MaxSpeed,
		},
	}
}

// createRoom validates and registers a room for identity. It runs on the loop.
func (s *Service) createRoom(req CreateRequest, token, connID string) (*Room, error) {
	identity := token
	if identity == "" {
		identity = connID
	}
	s.reap()

	switch {
	case s.registry.RoomOf(token, connID) != nil, s.registry.owned(identity) != nil:
		return nil, reject(CodeAlreadyCreatedRoom)
	case s.registry.Len() >= s.cfg.MaxRooms:
		return nil, reject(CodeMaxRoomLimitReached)
	}

	settings, err := ValidateSettings(req, s.cfg)
	if err != nil {
		return nil, err
	}

	capacity := MaxPlayers(settings, s.cfg.MaxPlayers)
	r := newRoom("", settings, capacity, aiSlotsFor(settings, capacity, s.cfg.AISlotsPerRoom), s.clock.Now())
	s.registry.add(r, identity)
	s.attach(r)

	zap.L().Info("room.create",
		zap.String("code", r.Code),
		zap.Int("width", settings.Width),
		zap.Int("height", settings.Height),
		zap.Int("capacity", capacity),
	)
	return r, nil
}

// attach gives r a fresh simulation and pumps its events onto the loop.
func (s *Service) attach(r *Room) {
	sim := s.newSim(engine.Options{
		Speed:            r.Settings.Speed,
		EnablePause:      s.cfg.EnablePause,
		EnableRetry:      s.cfg.EnableRetry,
		ProgressiveSpeed: s.cfg.ProgressiveSpeed,
		AILevel:          r.Settings.AILevel,
	})
	r.sim = sim
	r.simGen++
	r.alreadyInit = false

	code, gen := r.Code, r.simGen
	go func() {
		for ev := range sim.Events() {
			if !s.loop.Post(func() { s.onEvent(code, gen, ev) }) {
				return
			}
		}
	}()
}

// reap collects empty rooms after a membership change.
func (s *Service) reap() {
	for _, r := range s.registry.Reap(s.clock.Now(), s.cfg.EmptyRoomTTL) {
		s.dispose(r)
	}
}

func (s *Service) dispose(r *Room) {
	s.cancelCountdown(r)
	s.cancelMaxTime(r)
	if r.sim != nil {
		r.sim.Terminate()
	}
}
