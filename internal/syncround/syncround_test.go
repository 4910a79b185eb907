package syncround

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"snakeiaserver/internal/game"
	"snakeiaserver/internal/services/rounds"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var readArgs = func(lastID string) *redis.XReadArgs {
	return &redis.XReadArgs{
		Streams: []string{rounds.Stream, lastID},
		Count:   batchSize,
		Block:   blockFor,
	}
}

func message(t *testing.T, streamID, roundID string) redis.XMessage {
	t.Helper()
	at := time.Date(2025, 7, 27, 16, 5, 5, 0, time.UTC)
	b, err := json.Marshal(rounds.Entry{ID: roundID, RoundResult: game.RoundResult{
		Code: "a1b2c3d4", StartedAt: at, EndedAt: at.Add(time.Minute), Ticks: 12,
		Players: []game.RoundPlayer{{Slot: 1, Name: "alice", Kind: "HUMAN", Score: 2}},
	}})
	require.NoError(t, err)
	return redis.XMessage{ID: streamID, Values: map[string]interface{}{"id": roundID, "round": string(b)}}
}

func TestPump_PersistsBatchAndAdvances(t *testing.T) {
	rdc, rmock := redismock.NewClientMock()
	db, dmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rmock.ExpectXRead(readArgs("0-0")).SetVal([]redis.XStream{{
		Stream: rounds.Stream,
		Messages: []redis.XMessage{
			message(t, "1-0", "r1"),
			{ID: "2-0", Values: map[string]interface{}{"round": "{broken"}},
		},
	}})
	dmock.ExpectBegin()
	dmock.ExpectExec(regexp.QuoteMeta("INSERT INTO rounds")).
		WithArgs("r1", "a1b2c3d4", sqlmock.AnyArg(), sqlmock.AnyArg(), 12, 0, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dmock.ExpectExec(regexp.QuoteMeta("INSERT INTO round_players")).
		WithArgs("r1", 1, "alice", "HUMAN", 2, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	dmock.ExpectCommit()
	rmock.ExpectSet(cursorKey, "2-0", 0).SetVal("OK")

	tl := &tailer{rdc: rdc, db: db, lastID: "0-0"}
	require.NoError(t, tl.pump(context.Background()))

	assert.Equal(t, "2-0", tl.lastID)
	assert.NoError(t, rmock.ExpectationsWereMet())
	assert.NoError(t, dmock.ExpectationsWereMet())
}

func TestPump_KeepsCursorWhenPersistFails(t *testing.T) {
	rdc, rmock := redismock.NewClientMock()
	db, dmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rmock.ExpectXRead(readArgs("5-0")).SetVal([]redis.XStream{{
		Stream:   rounds.Stream,
		Messages: []redis.XMessage{message(t, "6-0", "r6")},
	}})
	dmock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	tl := &tailer{rdc: rdc, db: db, lastID: "5-0"}
	err = tl.pump(context.Background())

	assert.ErrorContains(t, err, "persist")
	assert.Equal(t, "5-0", tl.lastID)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestPump_CursorWriteFailureStillAdvances(t *testing.T) {
	rdc, rmock := redismock.NewClientMock()
	rmock.ExpectXRead(readArgs("7-0")).SetVal([]redis.XStream{{
		Stream:   rounds.Stream,
		Messages: []redis.XMessage{{ID: "8-0", Values: map[string]interface{}{"round": "{broken"}}},
	}})
	rmock.ExpectSet(cursorKey, "8-0", 0).SetErr(errors.New("READONLY"))

	tl := &tailer{rdc: rdc, lastID: "7-0"}

	require.NoError(t, tl.pump(context.Background()))
	assert.Equal(t, "8-0", tl.lastID)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestLoadCursor(t *testing.T) {
	rdc, rmock := redismock.NewClientMock()
	rmock.ExpectGet(cursorKey).SetVal("41-3")
	rmock.ExpectGet(cursorKey).RedisNil()
	rmock.ExpectGet(cursorKey).SetErr(errors.New("LOADING"))

	assert.Equal(t, "41-3", loadCursor(context.Background(), rdc))
	assert.Equal(t, "0-0", loadCursor(context.Background(), rdc))
	assert.Equal(t, "0-0", loadCursor(context.Background(), rdc))
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestDecode(t *testing.T) {
	e, err := decode(message(t, "1-0", "r1"))
	require.NoError(t, err)
	assert.Equal(t, "r1", e.ID)
	assert.Equal(t, "alice", e.Players[0].Name)

	_, err = decode(redis.XMessage{Values: map[string]interface{}{}})
	assert.Error(t, err)

	_, err = decode(redis.XMessage{Values: map[string]interface{}{"round": `{"code":"x"}`}})
	assert.ErrorContains(t, err, "missing round id")
}
