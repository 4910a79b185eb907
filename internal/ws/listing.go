package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// PushRooms sends the current listing to every listing watcher.
func (s *WsServer) PushRooms(ctx context.Context) {
	if !s.hub.Watching() {
		return
	}
	reply, err := s.rooms.Reply(ctx)
	if err != nil {
		zap.L().Warn("ws.push_rooms", zap.Error(err))
		return
	}
	s.hub.EmitWatchers("rooms", reply)
}

// WatchLocalRooms is the single-instance counterpart of SubscribeRoomChanges:
// it polls the listing and pushes it to watchers when it changed.
func WatchLocalRooms(ctx context.Context, srv *WsServer, every time.Duration) {
	tk := time.NewTicker(every)
	defer tk.Stop()

	var last []byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
		}
		if !srv.hub.Watching() {
			last = nil
			continue
		}
		reply, err := srv.rooms.Reply(ctx)
		if err != nil {
			continue
		}
		digest, _ := json.Marshal(reply.Rooms)
		if bytes.Equal(digest, last) {
			continue
		}
		last = digest
		srv.hub.EmitWatchers("rooms", reply)
	}
}
