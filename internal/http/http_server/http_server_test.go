package http_server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"snakeiaserver/internal/auth"
	"snakeiaserver/internal/game"
	"snakeiaserver/internal/http/authhandler"
	"snakeiaserver/internal/http/roomhandler"
	"snakeiaserver/internal/services/rooms"
	"snakeiaserver/internal/services/rounds"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticRooms struct{}

func (staticRooms) ListRooms(context.Context) ([]game.RoomSummary, error) {
	return []game.RoomSummary{{Code: "a1b2c3d4"}}, nil
}

func (staticRooms) RoomsReply(r []game.RoomSummary) game.RoomsReply {
	return game.RoomsReply{Rooms: r}
}

func router(t *testing.T, origins []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	authSvc := auth.NewService(auth.NewJWTManager("secret", time.Hour), auth.Options{MinUsername: 3, MaxUsername: 15}, nil)
	srv := NewHttpServer(context.Background(),
		Options{ListenPort: 3000, AllowedOrigins: origins},
		func(c *gin.Context) { c.Status(http.StatusTeapot) },
		roomhandler.New(rooms.NewRoomService(staticRooms{}, nil, "inst-a"), rounds.NewRoundService(nil, nil)),
		authhandler.New(authSvc),
	)
	return srv.Router()
}

func get(r http.Handler, target, origin string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Routes(t *testing.T) {
	r := router(t, []string{"*"})

	w := get(r, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	assert.Equal(t, http.StatusTeapot, get(r, "/ws", "").Code)
	assert.Contains(t, get(r, "/rooms", "").Body.String(), "a1b2c3d4")
	assert.JSONEq(t, `[]`, get(r, "/rounds", "").Body.String())
	assert.Equal(t, http.StatusOK, get(r, "/authentication", "").Code)
}

func TestRouter_CORS(t *testing.T) {
	r := router(t, []string{"https://snake.example"})

	w := get(r, "/rooms", "https://snake.example")
	assert.Equal(t, "https://snake.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = get(r, "/rooms", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSWildcardDropsCredentials(t *testing.T) {
	r := router(t, []string{"*"})

	w := get(r, "/rooms", "https://anything.example")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://anything.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_RecoversPanics(t *testing.T) {
	r := router(t, []string{"*"})
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, get(r, "/boom", "").Code)
}
