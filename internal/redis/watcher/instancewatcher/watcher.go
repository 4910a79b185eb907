package instancewatcher

import (
	"context"
	"strings"

	"snakeiaserver/internal/redis/directory"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const expiredPattern = "__keyevent@*__:expired"

// Run listens to key-expiry events and reports instances whose room listing
// lapsed without a withdrawal, which is what a crashed peer looks like.
// Run blocks until ctx is done.
func Run(ctx context.Context, rdb *redis.Client, notify func(instance string)) {
	if err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		zap.L().Warn("instancewatcher.config", zap.Error(err))
	}
	ps := rdb.PSubscribe(ctx, expiredPattern)
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			if inst, ok := instanceOf(m.Payload); ok {
				zap.L().Debug("instancewatcher.expired", zap.String("key", m.Payload))
				notify(inst)
			}
		}
	}
}

func instanceOf(key string) (string, bool) {
	if !strings.HasPrefix(key, directory.KeyPrefix) {
		return "", false
	}
	inst := strings.TrimPrefix(key, directory.KeyPrefix)
	return inst, inst != ""
}
