package rooms

import (
	"context"

	"snakeiaserver/internal/game"
	"snakeiaserver/internal/redis/directory"

	"go.uber.org/zap"
)

// Local is the listing of this instance.
type Local interface {
	ListRooms(ctx context.Context) ([]game.RoomSummary, error)
	RoomsReply(rooms []game.RoomSummary) game.RoomsReply
}

// Shared is the cross-instance directory.
type Shared interface {
	List(ctx context.Context) ([]directory.Entry, error)
}

type IRoomService interface {
	List(ctx context.Context) ([]game.RoomSummary, error)
	Reply(ctx context.Context) (game.RoomsReply, error)
	Cluster(ctx context.Context) ([]directory.Entry, error)
}

type roomService struct {
	local    Local
	shared   Shared
	instance string
}

// NewRoomService serves the joinable listing from local. A join is only ever
// resolved against the local registry, so rooms of other instances are kept
// out of it and only reported by Cluster. shared may be nil.
func NewRoomService(local Local, shared Shared, instance string) IRoomService {
	return &roomService{local: local, shared: shared, instance: instance}
}

// List returns the public rooms a client of this instance can join.
func (svc *roomService) List(ctx context.Context) ([]game.RoomSummary, error) {
	return svc.local.ListRooms(ctx)
}

func (svc *roomService) Reply(ctx context.Context) (game.RoomsReply, error) {
	list, err := svc.List(ctx)
	if err != nil {
		return game.RoomsReply{}, err
	}
	return svc.local.RoomsReply(list), nil
}

// Cluster returns the public rooms of every live instance, each tagged with
// its owner. A failing directory degrades to this instance's rooms.
func (svc *roomService) Cluster(ctx context.Context) ([]directory.Entry, error) {
	if svc.shared != nil {
		entries, err := svc.shared.List(ctx)
		if err == nil {
			return entries, nil
		}
		zap.L().Warn("rooms.directory", zap.Error(err))
	}
	list, err := svc.local.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]directory.Entry, 0, len(list))
	for _, r := range list {
		out = append(out, directory.Entry{Instance: svc.instance, RoomSummary: r})
	}
	return out, nil
}
