package ws

import (
	"context"

	"snakeiaserver/internal/redis/directory"

	"github.com/redis/go-redis/v9"
)

// SubscribeRoomChanges pushes the listing to watchers whenever this
// instance announces a change of its rooms under key. Announcements of
// other instances do not affect what a client here can join.
func SubscribeRoomChanges(ctx context.Context, rdb *redis.Client, key string, srv *WsServer) {
	pubsub := rdb.Subscribe(ctx, directory.Channel)
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			if ownChange(m, key) {
				srv.PushRooms(ctx)
			}
		}
	}
}

func ownChange(m *redis.Message, key string) bool {
	return m.Payload == key
}
