package roomsync

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"snakeiaserver/internal/game"

	"go.uber.org/zap"
)

const pushTimeout = 1500 * time.Millisecond

// Source lists the public rooms of this instance.
type Source interface {
	ListRooms(ctx context.Context) ([]game.RoomSummary, error)
}

// Directory is where the listing is mirrored.
type Directory interface {
	Sync(ctx context.Context, rooms []game.RoomSummary) error
	Touch(ctx context.Context) error
	Remove(ctx context.Context) error
}

// Run mirrors the local listing into the directory every interval and
// withdraws it once ctx is done.
func Run(ctx context.Context, src Source, dir Directory, interval time.Duration) {
	tk := time.NewTicker(interval)
	go func() {
		defer tk.Stop()
		m := &mirror{src: src, dir: dir}
		m.syncOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				m.withdraw()
				return
			case <-tk.C:
				m.syncOnce(ctx)
			}
		}
	}()
}

type mirror struct {
	src  Source
	dir  Directory
	last []byte
}

// syncOnce pushes the listing when it changed and only refreshes the TTL
// otherwise.
func (m *mirror) syncOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	rooms, err := m.src.ListRooms(ctx)
	if err != nil {
		zap.L().Debug("roomsync.list", zap.Error(err))
		return
	}
	digest, err := json.Marshal(rooms)
	if err != nil {
		zap.L().Error("roomsync.encode", zap.Error(err))
		return
	}

	if m.last != nil && bytes.Equal(digest, m.last) {
		if err := m.dir.Touch(ctx); err != nil {
			zap.L().Warn("roomsync.touch", zap.Error(err))
		}
		return
	}
	if err := m.dir.Sync(ctx, rooms); err != nil {
		zap.L().Warn("roomsync.sync", zap.Error(err))
		return
	}
	m.last = digest
}

func (m *mirror) withdraw() {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := m.dir.Remove(ctx); err != nil {
		zap.L().Warn("roomsync.remove", zap.Error(err))
	}
}
