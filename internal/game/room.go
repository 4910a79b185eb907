package game

import (
	"slices"
	"time"

	"snakeiaserver/internal/engine"
)

// Room states as reported in listings.
const (
	StateStarted          = "STARTED"
	StateStarting         = "STARTING"
	StateSearchingPlayers = "SEARCHING_PLAYERS"
)

// Player is one identity's membership in a room.
type Player struct {
	Token    string
	ConnID   string
	Username string
	Version  string
	// Slot is the 1-based snake slot bound for the current round, 0 when unbound.
	Slot  int
	Ready bool
}

func (p *Player) identity() string {
	if p.Token != "" {
		return p.Token
	}
	return p.ConnID
}

// Room is one game instance. It is only touched from the game loop.
type Room struct {
	Code      string
	Private   bool
	Settings  Settings
	CreatedAt time.Time

	players    []*Player
	spectators []*Player
	capacity   int
	aiSlots    int

	searching   bool
	started     bool
	alreadyInit bool

	countdown    Timer
	countdownAt  time.Time
	countdownGen uint64

	maxTime  Timer
	roundGen uint64
	roundAt  time.Time

	sim    Simulation
	simGen uint64
	last   *engine.Snapshot

	owner      string
	ownerGone  bool
	joinedOnce bool
}

func newRoom(code string, s Settings, capacity, aiSlots int, now time.Time) *Room {
	return &Room{
		Code:      code,
		Private:   s.Private,
		Settings:  s,
		CreatedAt: now,
		capacity:  capacity,
		aiSlots:   aiSlots,
		searching: true,
	}
}

func (r *Room) State() string {
	switch {
	case r.started:
		return StateStarted
	case r.countdown != nil:
		return StateStarting
	case r.searching:
		return StateSearchingPlayers
	}
	return ""
}

func (r *Room) Players() []*Player    { return r.players }
func (r *Room) Spectators() []*Player { return r.spectators }
func (r *Room) Capacity() int         { return r.capacity }
func (r *Room) AISlots() int          { return r.aiSlots }
func (r *Room) Started() bool         { return r.started }
func (r *Room) Searching() bool       { return r.searching }

func (r *Room) size() int { return len(r.players) + len(r.spectators) }

func (r *Room) host() *Player {
	if len(r.players) == 0 {
		return nil
	}
	return r.players[0]
}

func (r *Room) group() string { return "room-" + r.Code }

func (r *Room) full() bool { return len(r.players)+r.aiSlots >= r.capacity }

func (r *Room) player(connID string) *Player {
	for _, p := range r.players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) member(connID string) *Player {
	if p := r.player(connID); p != nil {
		return p
	}
	for _, p := range r.spectators {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (r *Room) hasToken(token string) bool {
	if token == "" {
		return false
	}
	match := func(p *Player) bool { return p.Token == token }
	return slices.ContainsFunc(r.players, match) || slices.ContainsFunc(r.spectators, match)
}

// remove drops connID from both rosters and returns the removed record.
func (r *Room) remove(connID string) *Player {
	p := r.member(connID)
	match := func(p *Player) bool { return p.ConnID == connID }
	r.players = slices.DeleteFunc(r.players, match)
	r.spectators = slices.DeleteFunc(r.spectators, match)
	return p
}

// promote moves waiting spectators to players while capacity allows.
func (r *Room) promote() {
	for len(r.spectators) > 0 && !r.full() {
		p := r.spectators[0]
		r.spectators = r.spectators[1:]
		p.Ready = true
		r.players = append(r.players, p)
	}
}

func (r *Room) unbind() {
	for _, p := range r.players {
		p.Slot = 0
	}
	for _, p := range r.spectators {
		p.Slot = 0
	}
}

func (r *Room) timeStart(now time.Time) int64 {
	if r.countdown == nil {
		return 0
	}
	return max(0, r.countdownAt.Sub(now).Milliseconds())
}

// RoomSummary is the public listing entry of a room.
type RoomSummary struct {
	Code          string `json:"code"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	BorderWalls   bool   `json:"borderWalls"`
	GenerateWalls bool   `json:"generateWalls"`
	Speed         int    `json:"speed"`
	Players       int    `json:"players"`
	Spectators    int    `json:"spectators"`
	MaxPlayers    int    `json:"maxPlayers"`
	State         string `json:"state"`
}

func (r *Room) summary() RoomSummary {
	return RoomSummary{
		Code:          r.Code,
		Width:         r.Settings.Width,
		Height:        r.Settings.Height,
		BorderWalls:   r.Settings.BorderWalls,
		GenerateWalls: r.Settings.GenerateWalls,
		Speed:         r.Settings.Speed,
		Players:       len(r.players),
		Spectators:    len(r.spectators),
		MaxPlayers:    r.capacity,
		State:         r.State(),
	}
}
