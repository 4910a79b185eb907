package directory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"snakeiaserver/internal/game"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	KeyPrefix = "rooms:inst:"
	// Channel carries the key of every instance listing that changed.
	Channel = "rooms:changed"

	syncFunction = "rooms_sync"
	scanCount    = 100
)

// Entry is a public room as seen across instances.
type Entry struct {
	Instance string `json:"instance"`
	game.RoomSummary
}

// Directory mirrors this instance's public rooms into Redis and reads the
// listings of every instance back.
type Directory struct {
	rdc      redis.Cmdable
	instance string
	ttl      time.Duration
}

func New(rdc redis.Cmdable, instance string, ttl time.Duration) *Directory {
	return &Directory{rdc: rdc, instance: instance, ttl: ttl}
}

func (d *Directory) Instance() string { return d.instance }

// Key is the hash holding this instance's listing.
func (d *Directory) Key() string { return KeyPrefix + d.instance }

// ttlSeconds rounds up so that a sub-second TTL never becomes EXPIRE 0.
func (d *Directory) ttlSeconds() int64 {
	return max(1, int64((d.ttl+time.Second-1)/time.Second))
}

// Sync replaces this instance's listing and announces it on Channel.
func (d *Directory) Sync(ctx context.Context, rooms []game.RoomSummary) error {
	args := make([]any, 0, 2+2*len(rooms))
	args = append(args, d.ttlSeconds(), Channel)
	for _, r := range rooms {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode room %s: %w", r.Code, err)
		}
		args = append(args, r.Code, string(b))
	}
	return d.rdc.FCall(ctx, syncFunction, []string{d.Key()}, args...).Err()
}

// Touch keeps an unchanged listing alive.
func (d *Directory) Touch(ctx context.Context) error {
	return d.rdc.Expire(ctx, d.Key(), d.ttl).Err()
}

// Remove withdraws this instance's listing.
func (d *Directory) Remove(ctx context.Context) error {
	pipe := d.rdc.Pipeline()
	pipe.Del(ctx, d.Key())
	pipe.Publish(ctx, Channel, d.Key())
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the public rooms of every live instance, ordered by
// instance then code.
func (d *Directory) List(ctx context.Context) ([]Entry, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := d.rdc.Scan(ctx, cursor, KeyPrefix+"*", scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan listings: %w", err)
		}
		keys = append(keys, batch...)
		if cursor = next; cursor == 0 {
			break
		}
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}

	// fetch every listing in one pipelined round-trip
	pipe := d.rdc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}

	out := make([]Entry, 0, len(keys))
	for i, cmd := range cmds {
		instance := strings.TrimPrefix(keys[i], KeyPrefix)
		for code, raw := range cmd.Val() {
			var s game.RoomSummary
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				zap.L().Warn("directory.decode", zap.String("instance", instance), zap.String("code", code), zap.Error(err))
				continue
			}
			out = append(out, Entry{Instance: instance, RoomSummary: s})
		}
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(cmp.Compare(a.Instance, b.Instance), cmp.Compare(a.Code, b.Code))
	})
	return out, nil
}
