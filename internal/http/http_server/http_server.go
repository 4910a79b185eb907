package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"snakeiaserver/internal/http/authhandler"
	"snakeiaserver/internal/http/roomhandler"
	"snakeiaserver/internal/ws"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
)

type Options struct {
	ListenPort     uint16
	AllowedOrigins []string
	AccessLog      bool
}

type httpServer struct {
	opts  Options
	srv   http.Server
	ln    net.Listener
	ws    gin.HandlerFunc
	rooms *roomhandler.Handler
	auth  *authhandler.Handler
	ctx   context.Context
}

func NewHttpServer(ctx context.Context, opts Options, wsHandle gin.HandlerFunc, rooms *roomhandler.Handler, auth *authhandler.Handler) *httpServer {
	return &httpServer{
		opts:  opts,
		ws:    wsHandle,
		rooms: rooms,
		auth:  auth,
		ctx:   ctx,
	}
}

// Router builds the gin engine; Start serves it.
func (h *httpServer) Router() *gin.Engine {
	routerEngine := gin.New()

	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))
	if h.opts.AccessLog {
		routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	}
	routerEngine.Use(cors.New(corsConfig(h.opts.AllowedOrigins)))

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// websocket endpoint
	routerEngine.GET("/ws", h.ws)

	// REST API
	h.rooms.Register(routerEngine)
	h.auth.Register(routerEngine)

	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.opts.ListenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	zap.L().Info("http.listen", zap.String("addr", listenAddr))

	if err := h.srv.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(h.ctx), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http.dispose", zap.Error(err))
		return err // e.g. active conns didn't finish in time
	}
	return nil
}

// corsConfig allows credentials so the token cookie travels with
// cross-origin listing and authentication calls, unless origins holds "*".
func corsConfig(origins []string) cors.Config {
	return cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return ws.OriginAllowed(origins, origin)
		},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           12 * time.Hour,
	}
}
