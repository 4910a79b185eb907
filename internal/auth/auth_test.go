package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"snakeiaserver/internal/game"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	token, err := m.Generate("alice", time.Now())
	require.NoError(t, err)

	username, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)
}

func TestJWTManager_Rejections(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)

	expired, err := m.Generate("alice", time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = m.Verify(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	foreign, err := NewJWTManager("other", time.Hour).Generate("alice", time.Now())
	require.NoError(t, err)
	_, err = m.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims{Username: "alice"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidSigningAlg)

	_, err = m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrCorruptedToken)
}

func newService(t *testing.T, opts Options, bans BanList) (*Service, *JWTManager) {
	t.Helper()
	m := NewJWTManager("secret", time.Hour)
	return NewService(m, opts, bans), m
}

func codeOf(err error) game.ErrorCode {
	c, _ := game.CodeOf(err)
	return c
}

func TestService_AuthenticateDisabled(t *testing.T) {
	s, _ := newService(t, Options{Enabled: false}, nil)

	id, err := s.Authenticate(context.Background(), "")

	require.NoError(t, err)
	assert.Equal(t, game.Identity{}, id)
}

func TestService_Authenticate(t *testing.T) {
	s, m := newService(t, Options{Enabled: true, MinUsername: 3, MaxUsername: 15, Banned: []string{" Mallory "}}, nil)
	ctx := context.Background()

	_, err := s.Authenticate(ctx, "")
	assert.Equal(t, game.CodeAuthenticationRequired, codeOf(err))

	_, err = s.Authenticate(ctx, "garbage")
	assert.Equal(t, game.CodeAuthenticationRequired, codeOf(err))
	assert.ErrorIs(t, err, ErrCorruptedToken)

	token, err := m.Generate("alice", time.Now())
	require.NoError(t, err)
	id, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, game.Identity{Token: token, Username: "alice"}, id)

	banned, err := m.Generate("mallory", time.Now())
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, banned)
	assert.Equal(t, game.CodeBanned, codeOf(err))
}

func TestService_SharedBanList(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	s, m := newService(t, Options{Enabled: true, MinUsername: 3, MaxUsername: 15}, NewRedisBans(rdc))
	ctx := context.Background()

	mock.ExpectSIsMember(bansKey, "eve").SetVal(true)
	token, err := m.Generate("Eve", time.Now())
	require.NoError(t, err)
	_, err = s.Authenticate(ctx, token)
	assert.Equal(t, game.CodeBanned, codeOf(err))

	mock.ExpectSIsMember(bansKey, "bob").SetErr(errors.New("connection refused"))
	token, err = m.Generate("bob", time.Now())
	require.NoError(t, err)
	id, err := s.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "bob", id.Username)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Issue(t *testing.T) {
	s, _ := newService(t, Options{Enabled: true, MinUsername: 3, MaxUsername: 8, Banned: []string{"mallory"}}, nil)
	ctx := context.Background()

	token, err := s.Issue(ctx, "  carol ")
	require.NoError(t, err)
	username, err := s.Username(token)
	require.NoError(t, err)
	assert.Equal(t, "carol", username)

	_, err = s.Issue(ctx, "al")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, err = s.Issue(ctx, "much-too-long")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	_, err = s.Issue(ctx, "MALLORY")
	assert.Equal(t, game.CodeBanned, codeOf(err))
}
