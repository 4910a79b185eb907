package redis_functions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roomsLibrary(t *testing.T) string {
	t.Helper()
	code, err := fs.ReadFile("rooms.lua")
	require.NoError(t, err)
	return string(code)
}

func TestRoomsLibraryDeclaresSync(t *testing.T) {
	code := roomsLibrary(t)

	assert.True(t, strings.HasPrefix(code, "#!lua name=rooms"))
	assert.Contains(t, code, "redis.register_function('rooms_sync'")
}

func TestLoadAll(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	mock.ExpectFunctionLoadReplace(roomsLibrary(t)).SetVal("rooms")

	require.NoError(t, LoadAll(context.Background(), rdc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadAll_Failure(t *testing.T) {
	rdc, mock := redismock.NewClientMock()
	mock.ExpectFunctionLoadReplace(roomsLibrary(t)).SetErr(errors.New("ERR unknown command 'FUNCTION'"))

	err := LoadAll(context.Background(), rdc)

	assert.ErrorContains(t, err, "load lua rooms.lua")
}
