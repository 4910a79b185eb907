package game

import (
	"context"

	"snakeiaserver/internal/engine"

	"go.uber.org/zap"
)

// SessionState is the protocol state of one connection.
type SessionState int

const (
	Unauthenticated SessionState = iota
	Authenticated
	InRoom
)

func (st SessionState) String() string {
	switch st {
	case Authenticated:
		return "AUTHENTICATED"
	case InRoom:
		return "IN_ROOM"
	}
	return "UNAUTHENTICATED"
}

// Session binds one transport connection to an identity and at most one
// room. Its fields are only touched on the game loop.
type Session struct {
	svc    *Service
	connID string

	state    SessionState
	identity Identity
	room     string
	started  bool
	closed   bool
}

func (s *Service) NewSession(connID string) *Session {
	return &Session{svc: s, connID: connID}
}

func (ss *Session) ConnID() string { return ss.connID }

// State reports the protocol state; it goes through the loop.
func (ss *Session) State(ctx context.Context) (SessionState, error) {
	var st SessionState
	err := ss.svc.loop.Do(ctx, func() { st = ss.state })
	return st, err
}

// Authenticate checks token and, on failure, leaves the connection open but
// inert after telling the client why.
func (ss *Session) Authenticate(ctx context.Context, token string) error {
	id := Identity{Token: token}
	var authErr error
	if ss.svc.auth != nil {
		id, authErr = ss.svc.auth.Authenticate(ctx, token)
	}

	err := ss.svc.loop.Do(ctx, func() {
		if ss.closed {
			return
		}
		if authErr != nil {
			code, ok := CodeOf(authErr)
			if !ok {
				code = CodeAuthenticationRequired
			}
			ss.svc.out.Emit(ss.connID, "error", ErrorReply{ErrorCode: code})
			return
		}
		ss.identity = id
		if ss.state == Unauthenticated {
			ss.state = Authenticated
		}
	})
	if err != nil {
		return err
	}
	return authErr
}

// Create validates the settings and registers a room owned by this identity.
// The creator still has to join it.
func (ss *Session) Create(ctx context.Context, req CreateRequest) (string, error) {
	var (
		code string
		res  error
	)
	err := ss.svc.loop.Do(ctx, func() {
		if ss.state == Unauthenticated || ss.closed {
			res = ErrNotAuthenticated
			return
		}

		r, err := ss.svc.createRoom(req, ss.identity.Token, ss.connID)
		if err != nil {
			res = err
			reply := ProcessReply{Success: false, ErrorCode: CodeInvalidSettings}
			if c, ok := CodeOf(err); ok {
				reply.ErrorCode = c
			}
			ss.svc.out.Emit(ss.connID, "process", reply)
			return
		}
		code = r.Code
		ss.svc.out.Emit(ss.connID, "process", ProcessReply{Success: true, Code: &code})
	})
	if err != nil {
		return "", err
	}
	return code, res
}

// Join registers the connection as a player, or as a spectator when the room
// is full or playing.
func (ss *Session) Join(ctx context.Context, code, version string) error {
	var res error
	err := ss.svc.loop.Do(ctx, func() {
		if ss.state == Unauthenticated || ss.closed {
			res = ErrNotAuthenticated
			return
		}
		res = ss.join(code, version)
		reply := JoinReply{Success: res == nil}
		if res != nil {
			reply.ErrorCode, _ = CodeOf(res)
		}
		ss.svc.out.Emit(ss.connID, "join-room", reply)
	})
	if err != nil {
		return err
	}
	return res
}

func (ss *Session) join(code, version string) error {
	svc := ss.svc
	g := svc.registry
	token := ss.identity.Token
	identity := token
	if identity == "" {
		identity = ss.connID
	}

	r := g.Lookup(code)
	switch {
	case r == nil:
		return reject(CodeRoomNotFound)
	case r.member(ss.connID) != nil || r.hasToken(token):
		return reject(CodeRoomAlreadyJoined)
	case g.RoomOf(token, ss.connID) != nil:
		return reject(CodeAlreadyCreatedRoom)
	}
	if owned := g.owned(identity); owned != nil && owned != r {
		return reject(CodeAlreadyCreatedRoom)
	}

	p := &Player{Token: token, ConnID: ss.connID, Username: ss.identity.Username, Version: version}
	if r.full() || r.started {
		r.spectators = append(r.spectators, p)
	} else {
		r.players = append(r.players, p)
	}
	g.index(r, p)
	svc.out.Join(ss.connID, r.group())

	ss.room = r.Code
	ss.state = InRoom
	ss.started = false

	zap.L().Debug("room.join",
		zap.String("code", r.Code),
		zap.String("conn", ss.connID),
		zap.Int("players", len(r.players)),
		zap.Int("spectators", len(r.spectators)),
	)
	svc.reap()
	svc.matchmake(r)
	return nil
}

// currentRoom resolves the session's room; a reaped room yields nil.
func (ss *Session) currentRoom() *Room {
	if ss.state != InRoom || ss.closed {
		return nil
	}
	r := ss.svc.registry.Lookup(ss.room)
	if r == nil || r.member(ss.connID) == nil {
		ss.leaveRoomState()
		return nil
	}
	return r
}

func (ss *Session) leaveRoomState() {
	ss.room = ""
	ss.started = false
	if ss.state == InRoom {
		ss.state = Authenticated
	}
}

// Start marks the member ready the first time it is called after a join;
// later calls only acknowledge.
func (ss *Session) Start(ctx context.Context) error {
	return ss.svc.loop.Do(ctx, func() {
		r := ss.currentRoom()
		if r == nil {
			return
		}
		svc := ss.svc

		if ss.started {
			svc.out.Emit(ss.connID, "start", map[string]any{"paused": false})
			return
		}
		ss.started = true

		if p := r.player(ss.connID); p != nil {
			p.Ready = true
		}

		opts := map[string]any{
			"enablePause":      svc.cfg.EnablePause,
			"enableRetry":      svc.cfg.EnableRetry,
			"progressiveSpeed": svc.cfg.ProgressiveSpeed,
			"offsetFrame":      r.Settings.Speed * int(engine.TimeMultiplier.Milliseconds()),
		}
		svc.out.Emit(ss.connID, "init", opts)
		if r.started && r.last != nil {
			svc.out.Emit(ss.connID, "update", catchUp(r.last))
		}

		svc.matchmake(r)
	})
}

// Key forwards a direction to the member's snake when one is bound.
func (ss *Session) Key(ctx context.Context, direction string) error {
	key, ok := engine.ParseKey(direction)
	if !ok {
		return nil
	}
	return ss.svc.loop.Do(ctx, func() {
		r := ss.currentRoom()
		if r == nil || !r.started {
			return
		}
		if p := r.player(ss.connID); p != nil && p.Slot > 0 {
			r.sim.Send(engine.KeyInput(key, p.Slot))
		}
	})
}

// Reset re-runs matchmaking while the room waits for players. During a round
// only the host may restart it, and only when retry is enabled.
func (ss *Session) Reset(ctx context.Context) error {
	return ss.svc.loop.Do(ctx, func() {
		r := ss.currentRoom()
		if r == nil {
			return
		}
		svc := ss.svc

		if r.started {
			if svc.cfg.EnableRetry && r.host() != nil && r.host().ConnID == ss.connID {
				r.sim.Send(engine.Command{Kind: engine.CmdReset})
			}
			return
		}

		svc.matchmake(r)
		svc.out.Emit(ss.connID, "reset", map[string]any{
			"gameOver":     false,
			"gameFinished": false,
		})
	})
}

// Pause pauses the round for everyone when pausing is enabled; otherwise it
// is acknowledged to the caller only.
func (ss *Session) Pause(ctx context.Context) error {
	return ss.svc.loop.Do(ctx, func() {
		r := ss.currentRoom()
		if r == nil {
			return
		}
		if ss.svc.cfg.EnablePause && r.started && r.player(ss.connID) != nil {
			r.sim.Send(engine.Command{Kind: engine.CmdPause})
			return
		}
		ss.svc.out.Emit(ss.connID, "pause", map[string]any{"paused": true})
	})
}

// ForceStart starts the round right away. Only the host may do it.
func (ss *Session) ForceStart(ctx context.Context) error {
	return ss.svc.loop.Do(ctx, func() {
		r := ss.currentRoom()
		if r == nil || r.started {
			return
		}
		if h := r.host(); h != nil && h.ConnID == ss.connID {
			ss.svc.startGame(r)
		}
	})
}

// Exit, Kill and Error leave the current room; Disconnect also retires the
// session. All four converge on the same roster change.
func (ss *Session) Exit(ctx context.Context) error  { return ss.leave(ctx, "exit", false) }
func (ss *Session) Kill(ctx context.Context) error  { return ss.leave(ctx, "kill", false) }
func (ss *Session) Error(ctx context.Context) error { return ss.leave(ctx, "error", false) }

func (ss *Session) Disconnect(ctx context.Context) error {
	return ss.leave(ctx, "disconnect", true)
}

func (ss *Session) leave(ctx context.Context, reason string, disconnect bool) error {
	return ss.svc.loop.Do(ctx, func() {
		if ss.closed {
			return
		}
		if ss.state == InRoom {
			ss.svc.exitGame(ss, reason)
		}
		if disconnect {
			ss.closed = true
			ss.svc.forgetOwner(ss)
			ss.svc.reap()
		}
	})
}

// exitGame removes the session from its room and lets the room converge.
func (s *Service) exitGame(ss *Session, reason string) {
	defer ss.leaveRoomState()

	r := s.registry.Lookup(ss.room)
	if r == nil {
		return
	}

	if p := r.player(ss.connID); p != nil && p.Slot > 0 && r.started {
		r.sim.Send(engine.SetGameOver(p.Slot))
	}

	s.out.Emit(ss.connID, "kill", map[string]any{"killed": true})
	s.out.Leave(ss.connID, r.group())

	if p := r.remove(ss.connID); p != nil {
		s.registry.unindex(r, p)
	}

	zap.L().Debug("room.exit",
		zap.String("code", r.Code),
		zap.String("conn", ss.connID),
		zap.String("reason", reason),
	)

	s.reap()
	s.matchmake(r)
}

// forgetOwner releases a room created by a connection without a token; such
// an identity cannot come back once its connection is gone.
func (s *Service) forgetOwner(ss *Session) {
	if ss.identity.Token != "" {
		return
	}
	if r := s.registry.owned(ss.connID); r != nil {
		s.registry.release(r)
	}
}
