package roomhandler

import (
	"errors"
	"net/http"

	"snakeiaserver/internal/services/rooms"
	"snakeiaserver/internal/services/rounds"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	rooms  rooms.IRoomService
	rounds rounds.IRoundService
}

func New(roomSvc rooms.IRoomService, roundSvc rounds.IRoundService) *Handler {
	return &Handler{rooms: roomSvc, rounds: roundSvc}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/cluster", h.cluster)
	r.GET("/rounds", h.listRounds)
	r.GET("/rounds/:id", h.round)
}

// @Summary		List public rooms
// @Description	Joinable public rooms of this instance with the server limits. Wrapped in the callback when one is given.
// @Tags			Rooms
// @Produce		json
// @Param			callback	query		string	false	"JSONP callback"
// @Success		200			{object}	game.RoomsReply
// @Failure		503			{object}	ErrorResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	reply, err := h.rooms.Reply(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	if c.Query("callback") != "" {
		c.JSONP(http.StatusOK, reply)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// @Summary		List public rooms of every instance
// @Description	Read from the shared directory; each room names the instance that serves it.
// @Tags			Rooms
// @Produce		json
// @Success		200	{array}		directory.Entry
// @Failure		503	{object}	ErrorResponse
// @Router			/rooms/cluster [get]
func (h *Handler) cluster(c *gin.Context) {
	entries, err := h.rooms.Cluster(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// @Summary		List finished rounds
// @Description	Most recent rounds first.
// @Tags			Rounds
// @Param			limit	query		int	false	"Max results (0‑100)"	minimum(0)	maximum(100)	default(10)
// @Param			offset	query		int	false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		rounds.RoundDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/rounds [get]
func (h *Handler) listRounds(c *gin.Context) {
	var q ListRoundsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := h.rounds.ListRounds(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Get round details
// @Description	Returns one round with its players.
// @Tags			Rounds
// @Param			id	path		string	true	"Round ID"
// @Success		200	{object}	rounds.RoundDTO
// @Failure		404	{object}	ErrorResponse
// @Failure		500	{object}	ErrorResponse
// @Router			/rounds/{id} [get]
func (h *Handler) round(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: rounds.ErrRoundNotFound.Error()})
		return
	}
	dto, err := h.rounds.GetRound(c.Request.Context(), id)
	switch {
	case errors.Is(err, rounds.ErrRoundNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, dto)
	}
}
