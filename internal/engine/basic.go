package engine

import (
	"context"
	"fmt"
	"time"
)

const (
	countdownStart   = 3
	initialLength    = 3
	deadBodyLifetime = 5
	placeAttempts    = 200
)

type cell struct{ x, y int }

// Basic is a compact reference engine: one fruit, wrap-around or walled grid,
// greedy AI. It exists so the server runs without an external simulation.
type Basic struct {
	opts Options
	emit func(Event)

	grid    *Grid
	snakes  []Snake
	pending bool // snakes placed by Init and not yet played

	speed           int
	running         bool
	paused          bool
	starting        bool
	countBeforePlay int
	ticks           int
	scoreMax        int
	numFruit        int
	gameOver        bool
	gameFinished    bool
	exited          bool
	killed          bool
	isReseted       bool
	mazeWin         bool
	aiStuck         bool
}

var _ Engine = (*Basic)(nil)

func NewBasic(opts Options, emit func(Event)) Engine {
	if emit == nil {
		emit = func(Event) {}
	}
	if opts.Speed <= 0 {
		opts.Speed = 8
	}
	if opts.AILevel == "" {
		opts.AILevel = AILevelDefault
	}
	return &Basic{opts: opts, emit: emit, speed: opts.Speed, countBeforePlay: -1}
}

func (b *Basic) Init(ctx context.Context, grid *Grid, snakes []Snake) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if grid == nil {
		return fmt.Errorf("init: missing grid")
	}
	if grid.Tiles == nil {
		grid.Init()
	}

	b.grid = grid
	b.snakes = make([]Snake, len(snakes))
	copy(b.snakes, snakes)
	for i := range b.snakes {
		s := &b.snakes[i]
		if s.Player == "" {
			s.Player = PlayerHuman
		}
		if s.Player == PlayerAI {
			if !s.AILevel.Valid() {
				s.AILevel = b.opts.AILevel
			}
			s.AILevelText = string(s.AILevel)
		}
		if s.Name == "" {
			s.Name = fmt.Sprintf("Player %d", i+1)
		}
		if s.Color == 0 {
			s.Color = (i*47)%360 + 1
		}
	}

	if err := b.place(); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	b.clearRound()
	b.countBeforePlay = countdownStart
	b.pending = true
	return nil
}

// place spreads every snake on the grid and drops the fruit.
func (b *Basic) place() error {
	occ := map[cell]bool{}
	rng := b.grid.RNG()

	for i := range b.snakes {
		s := &b.snakes[i]
		s.Queue = nil
		s.Grid = b.grid

		placed := false
		for attempt := 0; attempt < placeAttempts && !placed; attempt++ {
			head, err := b.grid.RandomFree(func(x, y int) bool { return occ[cell{x, y}] })
			if err != nil {
				return err
			}
			dir := Direction(rng.IntN(4))
			body := []Position{{X: head.X, Y: head.Y, Direction: dir}}
			ok := true
			for len(body) < initialLength {
				next := b.grid.Next(body[len(body)-1], dir.Opposite())
				if !b.grid.Inside(next.X, next.Y) || b.grid.Get(next.X, next.Y) != TileEmpty || occ[cell{next.X, next.Y}] {
					ok = false
					break
				}
				next.Direction = dir
				body = append(body, next)
			}
			if !ok {
				continue
			}
			for _, p := range body {
				occ[cell{p.X, p.Y}] = true
			}
			s.Queue = body
			s.Direction = dir
			placed = true
		}
		if !placed {
			return ErrNoFreeCell
		}
	}

	return b.grid.PlaceFruit(func(x, y int) bool { return occ[cell{x, y}] })
}

func (b *Basic) clearRound() {
	b.running = false
	b.paused = false
	b.starting = false
	b.ticks = 0
	b.scoreMax = 0
	b.numFruit = 0
	b.gameOver = false
	b.gameFinished = false
	b.mazeWin = false
	b.exited = false
	b.aiStuck = false
	b.speed = b.opts.Speed
	for i := range b.snakes {
		s := &b.snakes[i]
		s.Score = 0
		s.GameOver = false
		s.TicksDead = 0
		s.TicksWithoutAction = 0
		s.LastKey = ""
		s.LastHead = nil
		s.LastTail = nil
		s.AIStuck = false
	}
}

func (b *Basic) Start() {
	if b.killed || b.exited || b.grid == nil {
		return
	}
	if b.running && b.paused {
		b.paused = false
		b.send(EventContinue)
		return
	}
	if b.running || b.gameOver {
		return
	}
	b.pending = false
	b.running = true
	b.starting = true
	b.countBeforePlay = countdownStart
	b.send(EventStart)
}

func (b *Basic) Pause() {
	if !b.running || b.paused {
		return
	}
	b.paused = true
	b.send(EventPause)
}

func (b *Basic) Reset() {
	if b.killed || b.grid == nil {
		return
	}
	if !b.pending {
		b.grid.Init()
		if err := b.place(); err != nil {
			b.snakes = b.snakes[:0]
		}
	}
	b.pending = false
	b.clearRound()
	b.isReseted = true
	b.send(EventReset)
	b.isReseted = false
	b.Start()
}

func (b *Basic) Stop(finish bool) {
	if !b.running {
		return
	}
	b.running = false
	b.paused = false
	b.starting = false
	b.gameOver = true
	b.gameFinished = finish
	b.send(EventStop)
}

func (b *Basic) Kill() {
	if b.killed {
		return
	}
	b.killed = true
	b.running = false
	b.send(EventKill)
}

func (b *Basic) Exit() {
	if b.exited {
		return
	}
	b.exited = true
	b.running = false
	b.send(EventExit)
}

func (b *Basic) ForceStart() {
	if b.running && b.countBeforePlay >= 0 {
		b.countBeforePlay = -1
		b.starting = false
	}
}

func (b *Basic) Key(key Key, slot int) {
	if s := b.slot(slot); s != nil && s.Human() && !s.GameOver {
		s.LastKey = key
	}
}

func (b *Basic) SetGameOver(slot int) {
	if s := b.slot(slot); s != nil {
		s.GameOver = true
		b.checkOver()
	}
}

func (b *Basic) Update(field string, value int64) {
	switch field {
	case "speed":
		if value > 0 {
			b.speed = int(value)
		}
	case "enablePause":
		b.opts.EnablePause = value != 0
	case "enableRetry":
		b.opts.EnableRetry = value != 0
	case "progressiveSpeed":
		b.opts.ProgressiveSpeed = value != 0
	}
}

func (b *Basic) Running() bool { return b.running && !b.paused }

func (b *Basic) Interval() time.Duration {
	if b.countBeforePlay >= 0 {
		return time.Second
	}
	return time.Duration(b.speed) * TimeMultiplier
}

func (b *Basic) Tick() {
	if !b.running || b.paused {
		return
	}
	if b.countBeforePlay >= 0 {
		b.send(EventUpdateCounter)
		b.countBeforePlay--
		b.starting = b.countBeforePlay >= 0
		return
	}

	b.step()
	b.ticks++
	b.send(EventUpdate)
	b.checkOver()
}

func (b *Basic) checkOver() {
	if !b.running {
		return
	}
	for _, s := range b.snakes {
		if !s.GameOver {
			return
		}
	}
	b.Stop(false)
}

func (b *Basic) slot(slot int) *Snake {
	if slot < 1 || slot > len(b.snakes) {
		return nil
	}
	return &b.snakes[slot-1]
}

func (b *Basic) occupied() map[cell]bool {
	occ := map[cell]bool{}
	for _, s := range b.snakes {
		for _, p := range s.Queue {
			occ[cell{p.X, p.Y}] = true
		}
	}
	return occ
}

func (b *Basic) blocked(occ map[cell]bool, p Position) bool {
	return !b.grid.Inside(p.X, p.Y) || b.grid.Get(p.X, p.Y) == TileWall || occ[cell{p.X, p.Y}]
}

func (b *Basic) step() {
	occ := b.occupied()
	b.aiStuck = false

	for i := range b.snakes {
		s := &b.snakes[i]
		if s.GameOver {
			s.TicksDead++
			if s.TicksDead == deadBodyLifetime {
				for _, p := range s.Queue {
					delete(occ, cell{p.X, p.Y})
				}
				s.Queue = nil
			}
			continue
		}
		head, ok := s.Head()
		if !ok {
			s.GameOver = true
			continue
		}

		if s.Human() {
			if d := s.LastKey.Direction(); d != DirectionAny && d != s.Direction.Opposite() {
				s.Direction = d
				s.TicksWithoutAction = 0
			} else {
				s.TicksWithoutAction++
			}
			s.LastKey = ""
		} else {
			s.Direction = b.aiDirection(s, head, occ)
			if s.AIStuck {
				b.aiStuck = true
			}
		}

		next := b.grid.Next(head, s.Direction)
		if b.blocked(occ, next) {
			s.GameOver = true
			continue
		}

		lastHead := head
		s.LastHead = &lastHead
		s.Queue = append([]Position{next}, s.Queue...)
		occ[cell{next.X, next.Y}] = true

		if b.grid.Get(next.X, next.Y) == TileFruit {
			s.Score++
			if s.Score > s.ScoreMax {
				s.ScoreMax = s.Score
			}
			if s.Score > b.scoreMax {
				b.scoreMax = s.Score
			}
			b.numFruit++
			if b.opts.ProgressiveSpeed && b.speed > 1 {
				b.speed--
			}
			if err := b.grid.PlaceFruit(func(x, y int) bool { return occ[cell{x, y}] }); err != nil {
				b.send(EventScoreIncreased)
				b.finishMazeWin()
				return
			}
			b.send(EventScoreIncreased)
			continue
		}

		tail := s.Queue[len(s.Queue)-1]
		s.LastTail = &tail
		s.Queue = s.Queue[:len(s.Queue)-1]
		delete(occ, cell{tail.X, tail.Y})
	}
}

// finishMazeWin ends the round when no free cell is left for a fruit.
func (b *Basic) finishMazeWin() {
	b.running = false
	b.mazeWin = true
	b.gameOver = true
	b.gameFinished = true
	b.send(EventStop)
}

func (b *Basic) aiDirection(s *Snake, head Position, occ map[cell]bool) Direction {
	rng := b.grid.RNG()
	candidates := make([]Direction, 0, 3)
	for d := DirectionUp; d <= DirectionLeft; d++ {
		if d == s.Direction.Opposite() {
			continue
		}
		if !b.blocked(occ, b.grid.Next(head, d)) {
			candidates = append(candidates, d)
		}
	}
	s.AIStuck = len(candidates) == 0
	if s.AIStuck {
		return s.Direction
	}

	random := s.AILevel == AILevelRandom || (s.AILevel == AILevelLow && rng.IntN(10) < 3)
	if random || b.grid.Fruit == nil {
		return candidates[rng.IntN(len(candidates))]
	}

	best, bestDist := candidates[0], -1
	for _, d := range candidates {
		n := b.grid.Next(head, d)
		dist := abs(n.X-b.grid.Fruit.X) + abs(n.Y-b.grid.Fruit.Y)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best
}

func (b *Basic) send(kind EventKind) {
	snap := b.Snapshot()
	if kind == EventReset {
		snap.OffsetFrame = b.speed * int(TimeMultiplier/time.Millisecond)
	}
	b.emit(Event{Kind: kind, Snapshot: snap})
}

func (b *Basic) Snapshot() Snapshot {
	snakes := make([]Snake, len(b.snakes))
	for i, s := range b.snakes {
		c := s
		c.Grid = nil
		c.Queue = append([]Position(nil), s.Queue...)
		if s.LastHead != nil {
			h := *s.LastHead
			c.LastHead = &h
		}
		if s.LastTail != nil {
			t := *s.LastTail
			c.LastTail = &t
		}
		snakes[i] = c
	}

	var grid *Grid
	if b.grid != nil {
		g := *b.grid
		g.rng = nil
		g.Tiles = make([][]Tile, len(b.grid.Tiles))
		for y, row := range b.grid.Tiles {
			g.Tiles[y] = append([]Tile(nil), row...)
		}
		if b.grid.Fruit != nil {
			f := *b.grid.Fruit
			g.Fruit = &f
		}
		grid = &g
	}

	return Snapshot{
		Paused:           b.paused,
		IsReseted:        b.isReseted,
		Exited:           b.exited,
		Killed:           b.killed,
		Snakes:           snakes,
		Grid:             grid,
		NumFruit:         b.numFruit,
		Ticks:            b.ticks,
		ScoreMax:         b.scoreMax,
		GameOver:         b.gameOver,
		GameFinished:     b.gameFinished,
		GameMazeWin:      b.mazeWin,
		Starting:         b.starting,
		CountBeforePlay:  b.countBeforePlay,
		Speed:            b.speed,
		InitialSpeed:     b.opts.Speed,
		EnablePause:      b.opts.EnablePause,
		EnableRetry:      b.opts.EnableRetry,
		ProgressiveSpeed: b.opts.ProgressiveSpeed,
		AIStuck:          b.aiStuck,
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
