package game

import "time"

// Config holds the game tunables. It is filled from the process configuration.
type Config struct {
	MaxRooms         int
	MaxPlayers       int
	MinGridSize      int
	MaxGridSize      int
	MinSpeed         int
	MaxSpeed         int
	PlayerWaitTime   time.Duration
	MaxGameDuration  time.Duration // 0 disables the round time limit
	AISlotsPerRoom   int
	EmptyRoomTTL     time.Duration
	EnablePause      bool
	EnableRetry      bool
	ProgressiveSpeed bool
	ServerVersion    string
}

func DefaultConfig() Config {
	return Config{
		MaxRooms:       20,
		MaxPlayers:     20,
		MinGridSize:    5,
		MaxGridSize:    100,
		MinSpeed:       1,
		MaxSpeed:       100,
		PlayerWaitTime: 45 * time.Second,
		AISlotsPerRoom: 2,
		EmptyRoomTTL:   time.Minute,
		ServerVersion:  "1.0.0",
	}
}
