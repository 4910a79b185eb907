package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"snakeiaserver/internal/game"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const bansKey = "bans:usernames"

var ErrInvalidUsername = errors.New("invalid username")

// BanList answers whether a username may play.
type BanList interface {
	Banned(ctx context.Context, username string) (bool, error)
}

// RedisBans is the ban list shared by every instance.
type RedisBans struct {
	rdc redis.Cmdable
}

func NewRedisBans(rdc redis.Cmdable) *RedisBans { return &RedisBans{rdc: rdc} }

func (b *RedisBans) Banned(ctx context.Context, username string) (bool, error) {
	return b.rdc.SIsMember(ctx, bansKey, strings.ToLower(username)).Result()
}

type Options struct {
	Enabled     bool
	MinUsername int
	MaxUsername int
	Banned      []string
}

// Service authenticates connections and issues identity tokens.
type Service struct {
	jwt      *JWTManager
	opts     Options
	banned   map[string]struct{}
	bans     BanList
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds the authenticator; bans may be nil when no shared ban
// list is configured.
func NewService(jwt *JWTManager, opts Options, bans BanList) *Service {
	s := &Service{
		jwt:      jwt,
		opts:     opts,
		banned:   make(map[string]struct{}, len(opts.Banned)),
		bans:     bans,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, u := range opts.Banned {
		if u = strings.TrimSpace(u); u != "" {
			s.banned[strings.ToLower(u)] = struct{}{}
		}
	}
	return s
}

func (s *Service) Enabled() bool { return s.opts.Enabled }

func (s *Service) TokenMaxAge() time.Duration { return s.jwt.MaxAge() }

// Authenticate implements game.Authenticator. With authentication disabled
// every connection is accepted with an empty identity.
func (s *Service) Authenticate(ctx context.Context, token string) (game.Identity, error) {
	if !s.opts.Enabled {
		return game.Identity{}, nil
	}
	if token == "" {
		return game.Identity{}, &game.CodedError{Code: game.CodeAuthenticationRequired}
	}

	username, err := s.jwt.Verify(token)
	if err != nil {
		return game.Identity{}, &game.CodedError{Code: game.CodeAuthenticationRequired, Err: err}
	}
	if err := s.checkBan(ctx, username); err != nil {
		return game.Identity{}, err
	}
	return game.Identity{Token: token, Username: username}, nil
}

// Issue validates username and signs a token for it.
func (s *Service) Issue(ctx context.Context, username string) (string, error) {
	username = strings.TrimSpace(username)
	rule := fmt.Sprintf("required,min=%d,max=%d", s.opts.MinUsername, s.opts.MaxUsername)
	if err := s.validate.Var(username, rule); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidUsername, err)
	}
	if err := s.checkBan(ctx, username); err != nil {
		return "", err
	}
	return s.jwt.Generate(username, s.now())
}

// Username returns the owner of a valid token.
func (s *Service) Username(token string) (string, error) {
	return s.jwt.Verify(token)
}

func (s *Service) checkBan(ctx context.Context, username string) error {
	if _, ok := s.banned[strings.ToLower(username)]; ok {
		return &game.CodedError{Code: game.CodeBanned}
	}
	if s.bans == nil {
		return nil
	}

	banned, err := s.bans.Banned(ctx, username)
	if err != nil {
		// the shared list is advisory; the local one was already checked
		zap.L().Warn("auth.ban_lookup", zap.String("username", username), zap.Error(err))
		return nil
	}
	if banned {
		return &game.CodedError{Code: game.CodeBanned}
	}
	return nil
}
