package game

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const codeLength = 8

// Registry maps room codes to live rooms and keeps the secondary indices
// used for membership checks. It is not safe for concurrent use; the game
// loop owns it.
type Registry struct {
	rooms   map[string]*Room
	byToken map[string]string // identity token -> room code
	byConn  map[string]string // connection id -> room code
	owners  map[string]string // creator identity -> room code

	newCode func() string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   map[string]*Room{},
		byToken: map[string]string{},
		byConn:  map[string]string{},
		owners:  map[string]string{},
		newCode: randomCode,
	}
}

func randomCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:codeLength]
}

func (g *Registry) Lookup(code string) *Room { return g.rooms[code] }

func (g *Registry) Len() int { return len(g.rooms) }

func (g *Registry) code() string {
	for {
		c := g.newCode()
		if _, taken := g.rooms[c]; !taken {
			return c
		}
	}
}

// add registers a new room owned by the given identity.
func (g *Registry) add(r *Room, owner string) {
	r.Code = g.code()
	r.owner = owner
	g.rooms[r.Code] = r
	if owner != "" {
		g.owners[owner] = r.Code
	}
}

// RoomOf returns the room whose rosters contain the token or connection.
func (g *Registry) RoomOf(token, connID string) *Room {
	if token != "" {
		if code, ok := g.byToken[token]; ok {
			return g.rooms[code]
		}
	}
	if code, ok := g.byConn[connID]; ok {
		return g.rooms[code]
	}
	return nil
}

// owned returns the live room created by identity, if any.
func (g *Registry) owned(identity string) *Room {
	code, ok := g.owners[identity]
	if !ok {
		return nil
	}
	return g.rooms[code]
}

func (g *Registry) index(r *Room, p *Player) {
	r.joinedOnce = true
	g.byConn[p.ConnID] = r.Code
	if p.Token != "" {
		g.byToken[p.Token] = r.Code
	}
}

func (g *Registry) unindex(r *Room, p *Player) {
	if g.byConn[p.ConnID] == r.Code {
		delete(g.byConn, p.ConnID)
	}
	if p.Token != "" && g.byToken[p.Token] == r.Code {
		delete(g.byToken, p.Token)
	}
	if r.owner != "" && r.owner == p.identity() {
		g.release(r)
	}
}

// release forgets the creator of r so the identity may create another room.
func (g *Registry) release(r *Room) {
	if r.owner != "" && g.owners[r.owner] == r.Code {
		delete(g.owners, r.owner)
	}
	r.ownerGone = true
}

// reapable rooms are empty and either were used, were given up by their
// creator, or were never joined within ttl.
func (g *Registry) reapable(r *Room, now time.Time, ttl time.Duration) bool {
	if r.size() > 0 {
		return false
	}
	return r.joinedOnce || r.ownerGone || now.Sub(r.CreatedAt) >= ttl
}

// Reap removes empty rooms and returns them; the caller releases their
// timers and simulations.
func (g *Registry) Reap(now time.Time, ttl time.Duration) []*Room {
	var reaped []*Room
	for code, r := range g.rooms {
		if !g.reapable(r, now, ttl) {
			continue
		}
		delete(g.rooms, code)
		if g.owners[r.owner] == code {
			delete(g.owners, r.owner)
		}
		reaped = append(reaped, r)
		zap.L().Debug("room.reap", zap.String("code", code))
	}
	return reaped
}

// ListPublic returns the summaries of non private rooms, oldest first.
func (g *Registry) ListPublic() []RoomSummary {
	rooms := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		if !r.Private {
			rooms = append(rooms, r)
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].CreatedAt.Equal(rooms[j].CreatedAt) {
			return rooms[i].Code < rooms[j].Code
		}
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	out := make([]RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.summary())
	}
	return out
}
