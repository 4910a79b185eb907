package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"snakeiaserver/internal/game"
	"snakeiaserver/internal/services/rooms"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 12 * time.Second
	pingPeriod     = 3 * time.Second // must be < pongWait
	maxMessageSize = 4096
	handlerTimeout = 1900 * time.Millisecond
	tokenCookie    = "token"
)

type Options struct {
	AllowedOrigins    []string
	MessagesPerSecond float64
	Burst             int
}

type WsServer struct {
	hub      *Hub
	router   *Router
	game     *game.Service
	rooms    rooms.IRoomService
	opts     Options
	upgrader websocket.Upgrader
}

func NewWsServer(h *Hub, svc *game.Service, roomSvc rooms.IRoomService, opts Options) *WsServer {
	srv := &WsServer{
		hub:    h,
		router: NewRouter(),
		game:   svc,
		rooms:  roomSvc,
		opts:   opts,
	}
	srv.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     srv.checkOrigin,
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	var token string
	if s.credentialed(ginCtx.Request) {
		token, _ = ginCtx.Cookie(tokenCookie)
	}
	if token == "" {
		token = ginCtx.Query("token")
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	// ─────────────────── Client connected ────────────────────────
	conn := newClientConn(uuid.NewString(), rawConn)
	s.hub.register(conn)
	cc := &ConnContext{ConnID: conn.id, Session: s.game.NewSession(conn.id)}
	zap.L().Debug("ws.connect", zap.String("conn", conn.id), zap.String("remote", ginCtx.ClientIP()))

	go conn.writePump()
	go s.reader(conn, cc, token)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	Register(s.router, "authenticate", func(ctx context.Context, cc *ConnContext, req AuthenticateRequest) error {
		return cc.Session.Authenticate(ctx, req.Token)
	})
	Register(s.router, "create", func(ctx context.Context, cc *ConnContext, req CreateRequest) error {
		_, err := cc.Session.Create(ctx, req)
		return err
	})
	Register(s.router, "join-room", func(ctx context.Context, cc *ConnContext, req JoinRoomRequest) error {
		return cc.Session.Join(ctx, req.Code, req.Version)
	})
	Register(s.router, "key", func(ctx context.Context, cc *ConnContext, req KeyRequest) error {
		return cc.Session.Key(ctx, req.Direction)
	})
	Register(s.router, "rooms", func(ctx context.Context, cc *ConnContext, _ NoBody) error {
		s.hub.Watch(cc.ConnID)
		reply, err := s.rooms.Reply(ctx)
		if err != nil {
			return err
		}
		s.hub.Emit(cc.ConnID, "rooms", reply)
		return nil
	})

	for event, call := range map[string]func(*game.Session, context.Context) error{
		"start":      (*game.Session).Start,
		"reset":      (*game.Session).Reset,
		"pause":      (*game.Session).Pause,
		"forceStart": (*game.Session).ForceStart,
		"exit":       (*game.Session).Exit,
		"kill":       (*game.Session).Kill,
		"error":      (*game.Session).Error,
		"disconnect": (*game.Session).Disconnect,
	} {
		Register(s.router, event, func(ctx context.Context, cc *ConnContext, _ NoBody) error {
			return call(cc.Session, ctx)
		})
	}
}

func (s *WsServer) reader(conn *clientConn, cc *ConnContext, token string) {
	defer s.release(conn, cc)

	s.handle(conn, Envelope{Event: "authenticate"}, func(ctx context.Context) error {
		return cc.Session.Authenticate(ctx, token)
	})

	raw := conn.rawConn
	raw.SetReadLimit(maxMessageSize)
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})
	limiter := rate.NewLimiter(rate.Limit(s.opts.MessagesPerSecond), s.opts.Burst)

	for {
		var env Envelope
		if err := raw.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Debug("ws.read", zap.String("conn", conn.id), zap.Error(err))
			}
			return // client closed or errored
		}
		if !limiter.Allow() {
			s.hub.Emit(conn.id, "error", ErrorBody{Error: "rate_limited"})
			continue
		}

		s.handle(conn, env, func(ctx context.Context) error {
			return s.router.dispatch(ctx, cc, env)
		})
		if env.Event == "disconnect" {
			return
		}
	}
}

func (s *WsServer) handle(conn *clientConn, env Envelope, call func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	err := call(ctx)
	cancel()
	if err == nil {
		return
	}

	// ---- rejections with a code were already answered by the game ----
	if _, ok := game.CodeOf(err); ok {
		return
	}
	if errors.Is(err, game.ErrNotAuthenticated) {
		s.hub.Emit(conn.id, "error", game.ErrorReply{ErrorCode: game.CodeAuthenticationRequired})
		return
	}
	zap.L().Debug("ws.dispatch", zap.String("conn", conn.id), zap.String("event", env.Event), zap.Error(err))
	s.hub.Emit(conn.id, "error", ErrorBody{Error: err.Error()})
}

// release converges the session exactly as an explicit disconnect would.
func (s *WsServer) release(conn *clientConn, cc *ConnContext) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := cc.Session.Disconnect(ctx); err != nil && !errors.Is(err, game.ErrClosed) {
		zap.L().Warn("ws.disconnect", zap.String("conn", conn.id), zap.Error(err))
	}
	s.hub.unregister(conn.id)
	conn.close()
	zap.L().Debug("ws.close", zap.String("conn", conn.id))
}

func (s *WsServer) checkOrigin(r *http.Request) bool {
	return s.credentialed(r) || slices.Contains(s.opts.AllowedOrigins, "*")
}

// credentialed reports whether the token cookie may identify the caller:
// the handshake is same-origin or comes from an origin listed by name. An
// origin admitted only through "*" has to pass its token in the query.
func (s *WsServer) credentialed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return originListed(s.opts.AllowedOrigins, origin)
}

// OriginAllowed matches origin against entries given either as full origins
// ("https://snake.example") or bare hosts ("localhost:5173"). "*" allows all.
func OriginAllowed(allowed []string, origin string) bool {
	return slices.Contains(allowed, "*") || originListed(allowed, origin)
}

func originListed(allowed []string, origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return slices.ContainsFunc(allowed, func(a string) bool {
		return strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host)
	})
}
