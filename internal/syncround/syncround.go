package syncround

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"snakeiaserver/internal/services/rounds"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batchSize = 100
	blockFor  = 2000 * time.Millisecond
	retryWait = time.Second

	// cursorKey holds the last stream ID already persisted.
	cursorKey = rounds.Stream + ":cursor"
)

// Run tails the rounds stream and persists every recorded round, resuming
// after the last ID a previous run committed.
func Run(ctx context.Context, rdc redis.Cmdable, db *sql.DB) {
	go func() {
		t := &tailer{rdc: rdc, db: db, lastID: loadCursor(ctx, rdc)}
		for ctx.Err() == nil {
			if err := t.pump(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				zap.L().Warn("syncround.pump", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(retryWait):
				}
			}
		}
	}()
}

func loadCursor(ctx context.Context, rdc redis.Cmdable) string {
	id, err := rdc.Get(ctx, cursorKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "0-0"
	case err != nil:
		zap.L().Warn("syncround.cursor", zap.Error(err))
		return "0-0"
	}
	return id
}

type tailer struct {
	rdc    redis.Cmdable
	db     *sql.DB
	lastID string
}

// pump reads one batch and persists it. The cursor only moves once the batch
// is committed, so a failed insert is retried on the next call.
func (t *tailer) pump(ctx context.Context) error {
	res, err := t.rdc.XRead(ctx, &redis.XReadArgs{
		Streams: []string{rounds.Stream, t.lastID},
		Count:   batchSize,
		Block:   blockFor,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("xread: %w", err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil
	}

	msgs := res[0].Messages
	entries := make([]rounds.Entry, 0, len(msgs))
	for _, m := range msgs {
		e, err := decode(m)
		if err != nil {
			zap.L().Error("syncround.decode", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) > 0 {
		if err := rounds.Persist(ctx, t.db, entries); err != nil {
			return fmt.Errorf("persist: %w", err)
		}
	}
	t.lastID = msgs[len(msgs)-1].ID
	// a lost cursor only costs a replay; inserts are idempotent
	if err := t.rdc.Set(ctx, cursorKey, t.lastID, 0).Err(); err != nil {
		zap.L().Warn("syncround.cursor", zap.String("id", t.lastID), zap.Error(err))
	}
	return nil
}

func decode(m redis.XMessage) (rounds.Entry, error) {
	var e rounds.Entry
	raw, ok := m.Values["round"].(string)
	if !ok {
		return e, errors.New("missing round field")
	}
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return e, err
	}
	if e.ID == "" {
		return e, errors.New("missing round id")
	}
	return e, nil
}
