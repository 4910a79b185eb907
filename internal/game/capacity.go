package game

import (
	"math"

	"snakeiaserver/internal/engine"
)

// cellsPerPlayer is the density used to size a room from its free cells.
const cellsPerPlayer = 5

// MaxPlayers is the room capacity for the given grid, clamped to [2, limit].
func MaxPlayers(s Settings, limit int) int {
	fraction := 0.0
	if s.GenerateWalls {
		fraction = engine.WallFraction(s.BorderWalls)
	}
	return capacityFor(s.Width, s.Height, s.BorderWalls, fraction, limit)
}

func capacityFor(width, height int, borderWalls bool, wallFraction float64, limit int) int {
	cells := float64(width * height)
	if borderWalls {
		cells -= float64((width+height)*2 - 4)
	}
	cells -= float64(width*height) * wallFraction

	n := int(math.Round(cells / cellsPerPlayer))
	return min(limit, max(n, 2))
}

// aiSlotsFor reserves AI snakes while leaving room for two humans.
func aiSlotsFor(s Settings, capacity, perRoom int) int {
	if !s.EnableAI {
		return 0
	}
	return max(0, min(perRoom, capacity-2))
}
