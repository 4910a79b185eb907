package engine

import "time"

// TimeMultiplier converts a speed setting into a tick interval.
const TimeMultiplier = 15 * time.Millisecond

// Version is reported to clients alongside the server version.
const Version = "3.0.0"

type Direction int

const (
	DirectionUp Direction = iota
	DirectionRight
	DirectionBottom
	DirectionLeft
	DirectionAny Direction = -1
)

func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionBottom
	case DirectionBottom:
		return DirectionUp
	case DirectionLeft:
		return DirectionRight
	case DirectionRight:
		return DirectionLeft
	}
	return DirectionAny
}

// Key is a raw directional input as sent by clients.
type Key string

const (
	KeyUp    Key = "ArrowUp"
	KeyRight Key = "ArrowRight"
	KeyDown  Key = "ArrowDown"
	KeyLeft  Key = "ArrowLeft"
)

// ParseKey accepts the arrow key names and the short forms used by older clients.
func ParseKey(s string) (Key, bool) {
	switch s {
	case "ArrowUp", "UP", "up", "38":
		return KeyUp, true
	case "ArrowRight", "RIGHT", "right", "39":
		return KeyRight, true
	case "ArrowDown", "DOWN", "down", "BOTTOM", "40":
		return KeyDown, true
	case "ArrowLeft", "LEFT", "left", "37":
		return KeyLeft, true
	}
	return "", false
}

func (k Key) Direction() Direction {
	switch k {
	case KeyUp:
		return DirectionUp
	case KeyRight:
		return DirectionRight
	case KeyDown:
		return DirectionBottom
	case KeyLeft:
		return DirectionLeft
	}
	return DirectionAny
}

type PlayerType string

const (
	PlayerHuman         PlayerType = "HUMAN"
	PlayerAI            PlayerType = "AI"
	PlayerHybridHumanAI PlayerType = "HYBRID_HUMAN_AI"
)

type AILevel string

const (
	AILevelRandom  AILevel = "RANDOM"
	AILevelLow     AILevel = "LOW"
	AILevelDefault AILevel = "DEFAULT"
	AILevelHigh    AILevel = "HIGH"
	AILevelUltra   AILevel = "ULTRA"
)

// AILevels lists the accepted AI levels, in increasing strength.
var AILevels = []AILevel{AILevelRandom, AILevelLow, AILevelDefault, AILevelHigh, AILevelUltra}

func (l AILevel) Valid() bool {
	for _, v := range AILevels {
		if v == l {
			return true
		}
	}
	return false
}

type Tile int

const (
	TileEmpty Tile = iota
	TileWall
	TileFruit
)

type Position struct {
	X         int       `json:"x" msgpack:"x"`
	Y         int       `json:"y" msgpack:"y"`
	Direction Direction `json:"direction" msgpack:"d"`
}

// Options are the construction parameters of a simulation.
type Options struct {
	Speed            int     `json:"speed" msgpack:"speed"`
	EnablePause      bool    `json:"enablePause" msgpack:"enablePause"`
	EnableRetry      bool    `json:"enableRetry" msgpack:"enableRetry"`
	ProgressiveSpeed bool    `json:"progressiveSpeed" msgpack:"progressiveSpeed"`
	AILevel          AILevel `json:"aiLevel" msgpack:"aiLevel"`
}

// Snake is the plain data form of a snake. Grid is a back-reference that never
// crosses a serialization boundary; see Rehydrate.
type Snake struct {
	Color              int        `json:"color" msgpack:"color"`
	Direction          Direction  `json:"direction" msgpack:"direction"`
	Name               string     `json:"name" msgpack:"name"`
	Player             PlayerType `json:"player" msgpack:"player"`
	AILevel            AILevel    `json:"aiLevel,omitempty" msgpack:"aiLevel"`
	AILevelText        string     `json:"aiLevelText,omitempty" msgpack:"aiLevelText"`
	AIStuck            bool       `json:"aiStuck" msgpack:"aiStuck"`
	Score              int        `json:"score" msgpack:"score"`
	ScoreMax           int        `json:"scoreMax" msgpack:"scoreMax"`
	TicksDead          int        `json:"ticksDead" msgpack:"ticksDead"`
	TicksWithoutAction int        `json:"ticksWithoutAction" msgpack:"ticksWithoutAction"`
	LastHead           *Position  `json:"lastHead,omitempty" msgpack:"lastHead"`
	LastTail           *Position  `json:"lastTail,omitempty" msgpack:"lastTail"`
	LastKey            Key        `json:"lastKey,omitempty" msgpack:"lastKey"`
	Queue              []Position `json:"queue" msgpack:"queue"`
	GameOver           bool       `json:"gameOver" msgpack:"gameOver"`

	Grid *Grid `json:"-" msgpack:"-"`
}

func (s *Snake) Head() (Position, bool) {
	if len(s.Queue) == 0 {
		return Position{}, false
	}
	return s.Queue[0], true
}

func (s *Snake) Human() bool {
	return s.Player == PlayerHuman || s.Player == PlayerHybridHumanAI
}

// Snapshot is a back-reference free copy of the engine state.
type Snapshot struct {
	Paused           bool    `json:"paused" msgpack:"paused"`
	IsReseted        bool    `json:"isReseted" msgpack:"isReseted"`
	Exited           bool    `json:"exited" msgpack:"exited"`
	Killed           bool    `json:"killed" msgpack:"killed"`
	Snakes           []Snake `json:"snakes" msgpack:"snakes"`
	Grid             *Grid   `json:"grid" msgpack:"grid"`
	NumFruit         int     `json:"numFruit" msgpack:"numFruit"`
	Ticks            int     `json:"ticks" msgpack:"ticks"`
	ScoreMax         int     `json:"scoreMax" msgpack:"scoreMax"`
	GameOver         bool    `json:"gameOver" msgpack:"gameOver"`
	GameFinished     bool    `json:"gameFinished" msgpack:"gameFinished"`
	GameMazeWin      bool    `json:"gameMazeWin" msgpack:"gameMazeWin"`
	Starting         bool    `json:"starting" msgpack:"starting"`
	CountBeforePlay  int     `json:"countBeforePlay" msgpack:"countBeforePlay"`
	Speed            int     `json:"speed" msgpack:"speed"`
	InitialSpeed     int     `json:"initialSpeed" msgpack:"initialSpeed"`
	OffsetFrame      int     `json:"offsetFrame" msgpack:"offsetFrame"`
	EnablePause      bool    `json:"enablePause" msgpack:"enablePause"`
	EnableRetry      bool    `json:"enableRetry" msgpack:"enableRetry"`
	ProgressiveSpeed bool    `json:"progressiveSpeed" msgpack:"progressiveSpeed"`
	AIStuck          bool    `json:"aiStuck" msgpack:"aiStuck"`
	EngineLoading    bool    `json:"engineLoading" msgpack:"engineLoading"`
	ErrorOccurred    bool    `json:"errorOccurred" msgpack:"errorOccurred"`
}

type EventKind string

const (
	EventInit           EventKind = "init"
	EventReset          EventKind = "reset"
	EventStart          EventKind = "start"
	EventPause          EventKind = "pause"
	EventContinue       EventKind = "continue"
	EventStop           EventKind = "stop"
	EventExit           EventKind = "exit"
	EventKill           EventKind = "kill"
	EventScoreIncreased EventKind = "scoreIncreased"
	EventUpdate         EventKind = "update"
	EventUpdateCounter  EventKind = "updateCounter"
)

// Event is a single lifecycle notification emitted by an engine.
type Event struct {
	Kind     EventKind `msgpack:"kind"`
	Snapshot Snapshot  `msgpack:"snapshot"`
}

type CommandKind string

const (
	CmdReset       CommandKind = "reset"
	CmdStart       CommandKind = "start"
	CmdStop        CommandKind = "stop"
	CmdFinish      CommandKind = "finish"
	CmdPause       CommandKind = "pause"
	CmdKill        CommandKind = "kill"
	CmdTick        CommandKind = "tick"
	CmdExit        CommandKind = "exit"
	CmdForceStart  CommandKind = "forceStart"
	CmdKey         CommandKind = "key"
	CmdSetGameOver CommandKind = "setGameOver"
	CmdUpdate      CommandKind = "update"
)

// Command is a fire-and-forget instruction for an engine. Slot is 1-based.
type Command struct {
	Kind  CommandKind `msgpack:"kind"`
	Key   Key         `msgpack:"key,omitempty"`
	Slot  int         `msgpack:"slot,omitempty"`
	Field string      `msgpack:"field,omitempty"`
	Value int64       `msgpack:"value,omitempty"`
}

// Stop builds a stop command; finish marks the round as completed rather than aborted.
func Stop(finish bool) Command {
	if finish {
		return Command{Kind: CmdFinish}
	}
	return Command{Kind: CmdStop}
}

func KeyInput(key Key, slot int) Command {
	return Command{Kind: CmdKey, Key: key, Slot: slot}
}

func SetGameOver(slot int) Command {
	return Command{Kind: CmdSetGameOver, Slot: slot}
}
