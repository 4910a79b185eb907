package engine

import (
	"errors"
	"math/rand/v2"
)

var ErrNoFreeCell = errors.New("no free cell left on the grid")

// Grid holds walls and fruit. Snake bodies live in the snakes' queues.
type Grid struct {
	Width         int       `json:"width" msgpack:"width"`
	Height        int       `json:"height" msgpack:"height"`
	BorderWalls   bool      `json:"borderWalls" msgpack:"borderWalls"`
	GenerateWalls bool      `json:"generateWalls" msgpack:"generateWalls"`
	Seed          uint64    `json:"seed" msgpack:"seed"`
	Tiles         [][]Tile  `json:"grid" msgpack:"tiles"`
	Fruit         *Position `json:"fruitPos,omitempty" msgpack:"fruit"`

	rng *rand.Rand
}

func NewGrid(width, height int, borderWalls, generateWalls bool, seed uint64) *Grid {
	return &Grid{
		Width:         width,
		Height:        height,
		BorderWalls:   borderWalls,
		GenerateWalls: generateWalls,
		Seed:          seed,
	}
}

// RNG is rebuilt from Seed when missing, which is the case after decoding.
func (g *Grid) RNG() *rand.Rand {
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(g.Seed, g.Seed^0x9e3779b97f4a7c15))
	}
	return g.rng
}

// WallFraction is the share of cells reserved for generated interior walls.
func WallFraction(borderWalls bool) float64 {
	if borderWalls {
		return 0.1
	}
	return 0.1675
}

// Init lays out border and generated walls. Calling it again rebuilds the grid.
func (g *Grid) Init() {
	g.rng = nil
	g.Fruit = nil
	g.Tiles = make([][]Tile, g.Height)
	for y := range g.Tiles {
		g.Tiles[y] = make([]Tile, g.Width)
	}

	if g.BorderWalls {
		for x := 0; x < g.Width; x++ {
			g.Tiles[0][x] = TileWall
			g.Tiles[g.Height-1][x] = TileWall
		}
		for y := 0; y < g.Height; y++ {
			g.Tiles[y][0] = TileWall
			g.Tiles[y][g.Width-1] = TileWall
		}
	}

	if g.GenerateWalls {
		g.generateWalls()
	}
}

// generateWalls drops short wall segments until about half the reserved
// fraction is covered, leaving the rest as breathing room around them.
func (g *Grid) generateWalls() {
	rng := g.RNG()
	target := int(float64(g.Width*g.Height) * WallFraction(g.BorderWalls) / 2)
	placed := 0

	for attempts := 0; placed < target && attempts < target*20; attempts++ {
		x, y := rng.IntN(g.Width), rng.IntN(g.Height)
		horizontal := rng.IntN(2) == 0
		length := 2 + rng.IntN(3)

		for i := 0; i < length && placed < target; i++ {
			cx, cy := x, y
			if horizontal {
				cx += i
			} else {
				cy += i
			}
			if !g.Inside(cx, cy) || g.Tiles[cy][cx] != TileEmpty {
				break
			}
			g.Tiles[cy][cx] = TileWall
			placed++
		}
	}
}

func (g *Grid) Inside(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

func (g *Grid) Get(x, y int) Tile {
	if !g.Inside(x, y) {
		return TileWall
	}
	return g.Tiles[y][x]
}

func (g *Grid) Set(x, y int, t Tile) {
	if g.Inside(x, y) {
		g.Tiles[y][x] = t
	}
}

// Next returns the neighbouring cell in direction d. Grids without border
// walls wrap around.
func (g *Grid) Next(p Position, d Direction) Position {
	n := Position{X: p.X, Y: p.Y, Direction: d}
	switch d {
	case DirectionUp:
		n.Y--
	case DirectionBottom:
		n.Y++
	case DirectionLeft:
		n.X--
	case DirectionRight:
		n.X++
	}
	if !g.BorderWalls {
		n.X = (n.X + g.Width) % g.Width
		n.Y = (n.Y + g.Height) % g.Height
	}
	return n
}

// RandomFree picks a random empty cell not rejected by occupied.
func (g *Grid) RandomFree(occupied func(x, y int) bool) (Position, error) {
	rng := g.RNG()
	free := make([]Position, 0, g.Width*g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			if g.Tiles[y][x] == TileEmpty && (occupied == nil || !occupied(x, y)) {
				free = append(free, Position{X: x, Y: y})
			}
		}
	}
	if len(free) == 0 {
		return Position{}, ErrNoFreeCell
	}
	return free[rng.IntN(len(free))], nil
}

// PlaceFruit moves the fruit to a random free cell.
func (g *Grid) PlaceFruit(occupied func(x, y int) bool) error {
	if g.Fruit != nil {
		g.Set(g.Fruit.X, g.Fruit.Y, TileEmpty)
		g.Fruit = nil
	}
	p, err := g.RandomFree(occupied)
	if err != nil {
		return err
	}
	g.Set(p.X, p.Y, TileFruit)
	g.Fruit = &p
	return nil
}

// Rehydrate relinks every snake of a decoded snapshot to a single grid. The
// snapshot's own grid wins; fallback is used when the snapshot carries none.
func Rehydrate(snap *Snapshot, fallback *Grid) {
	grid := snap.Grid
	if grid == nil {
		grid = fallback
		snap.Grid = fallback
	}
	for i := range snap.Snakes {
		snap.Snakes[i].Grid = grid
	}
}
