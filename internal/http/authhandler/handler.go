package authhandler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"snakeiaserver/internal/auth"
	"snakeiaserver/internal/game"

	"github.com/gin-gonic/gin"
)

// TokenCookie carries the identity token to the websocket handshake.
const TokenCookie = "token"

type Issuer interface {
	Enabled() bool
	TokenMaxAge() time.Duration
	Issue(ctx context.Context, username string) (string, error)
	Username(token string) (string, error)
}

var _ Issuer = (*auth.Service)(nil)

type Handler struct {
	svc Issuer
}

func New(svc Issuer) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/authentication", h.status)
	r.POST("/authentication", h.issue)
}

// @Summary		Authentication status
// @Description	Reports whether the request carries a valid identity token.
// @Tags			Authentication
// @Success		200	{object}	StatusResponse
// @Router			/authentication [get]
func (h *Handler) status(c *gin.Context) {
	res := StatusResponse{Enabled: h.svc.Enabled()}
	if !res.Enabled {
		res.Authenticated = true
		c.JSON(http.StatusOK, res)
		return
	}
	if token := requestToken(c); token != "" {
		if name, err := h.svc.Username(token); err == nil {
			res.Authenticated = true
			res.Username = name
		}
	}
	c.JSON(http.StatusOK, res)
}

// @Summary		Issue an identity token
// @Description	Signs a token for the username and stores it in an http-only cookie.
// @Tags			Authentication
// @Param			body	body		IssueTokenBody	true	"Username payload"
// @Success		201		{object}	TokenResponse
// @Failure		400		{object}	ErrorResponse
// @Failure		403		{object}	ErrorResponse
// @Failure		409		{object}	ErrorResponse
// @Router			/authentication [post]
func (h *Handler) issue(ginCtx *gin.Context) {
	if !h.svc.Enabled() {
		ginCtx.JSON(http.StatusConflict, ErrorResponse{Error: "authentication is disabled"})
		return
	}

	var body IssueTokenBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	token, err := h.svc.Issue(ginCtx.Request.Context(), body.Username)
	if err != nil {
		if code, ok := game.CodeOf(err); ok && code == game.CodeBanned {
			ginCtx.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), ErrorCode: string(code)})
			return
		}
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrInvalidUsername) {
			status = http.StatusBadRequest
		}
		ginCtx.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	maxAge := h.svc.TokenMaxAge()
	ginCtx.SetSameSite(http.SameSiteLaxMode)
	ginCtx.SetCookie(TokenCookie, token, int(maxAge/time.Second), "/", "", ginCtx.Request.TLS != nil, true)
	ginCtx.JSON(http.StatusCreated, TokenResponse{
		Token:     token,
		Username:  strings.TrimSpace(body.Username),
		ExpiresIn: int64(maxAge / time.Second),
	})
}

func requestToken(c *gin.Context) string {
	if token, err := c.Cookie(TokenCookie); err == nil && token != "" {
		return token
	}
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return c.Query("token")
}
