package game

import "snakeiaserver/internal/engine"

// ProcessReply answers a create message.
type ProcessReply struct {
	Success   bool      `json:"success"`
	Code      *string   `json:"code"`
	ErrorCode ErrorCode `json:"errorCode,omitempty"`
}

// JoinReply answers a join-room message.
type JoinReply struct {
	Success   bool      `json:"success"`
	ErrorCode ErrorCode `json:"errorCode,omitempty"`
}

type ErrorReply struct {
	ErrorCode ErrorCode `json:"errorCode"`
}

// InitMessage is the matchmaking state broadcast to a room.
type InitMessage struct {
	SearchingPlayers     bool  `json:"searchingPlayers"`
	TimeStart            int64 `json:"timeStart"`
	PlayerNumber         int   `json:"playerNumber"`
	MaxPlayers           int   `json:"maxPlayers"`
	AIPlayers            int   `json:"aiPlayers"`
	SpectatorMode        bool  `json:"spectatorMode"`
	ErrorOccurred        bool  `json:"errorOccurred"`
	OnlineMaster         bool  `json:"onlineMaster"`
	OnlineMode           bool  `json:"onlineMode"`
	EnableRetryPauseMenu bool  `json:"enableRetryPauseMenu"`
}

// eventPayload shapes a lifecycle snapshot into the fields clients expect
// for that event.
func eventPayload(kind engine.EventKind, snap *engine.Snapshot) map[string]any {
	p := map[string]any{"errorOccurred": snap.ErrorOccurred}
	dialogs := func() {
		p["confirmReset"] = false
		p["confirmExit"] = false
		p["getInfos"] = false
		p["getInfosGame"] = false
	}
	board := func() {
		p["snakes"] = snapshotSnakes(snap)
		p["grid"] = snap.Grid
	}
	progress := func() {
		board()
		p["isReseted"] = snap.IsReseted
		p["exited"] = snap.Exited
		p["numFruit"] = snap.NumFruit
		p["ticks"] = snap.Ticks
		p["scoreMax"] = snap.ScoreMax
		p["gameOver"] = snap.GameOver
		p["gameFinished"] = snap.GameFinished
		p["gameMazeWin"] = snap.GameMazeWin
		p["starting"] = snap.Starting
		p["initialSpeed"] = snap.InitialSpeed
		p["speed"] = snap.Speed
		p["countBeforePlay"] = snap.CountBeforePlay
	}

	switch kind {
	case engine.EventReset:
		progress()
		dialogs()
		p["paused"] = snap.Paused
		p["offsetFrame"] = snap.OffsetFrame
	case engine.EventStart:
		board()
		dialogs()
		p["starting"] = snap.Starting
		p["countBeforePlay"] = snap.CountBeforePlay
		p["paused"] = snap.Paused
		p["isReseted"] = snap.IsReseted
		p["searchingPlayers"] = false
	case engine.EventPause:
		dialogs()
		p["paused"] = snap.Paused
	case engine.EventContinue:
		dialogs()
	case engine.EventStop:
		dialogs()
		p["paused"] = snap.Paused
		p["scoreMax"] = snap.ScoreMax
		p["gameOver"] = snap.GameOver
		p["gameFinished"] = snap.GameFinished
	case engine.EventExit:
		dialogs()
		p["paused"] = snap.Paused
		p["gameOver"] = snap.GameOver
		p["gameFinished"] = snap.GameFinished
		p["exited"] = snap.Exited
	case engine.EventKill:
		board()
		dialogs()
		p["paused"] = snap.Paused
		p["gameOver"] = snap.GameOver
		p["gameFinished"] = snap.GameFinished
		p["killed"] = snap.Killed
	case engine.EventScoreIncreased:
		board()
		p["scoreMax"] = snap.ScoreMax
		p["gameFinished"] = snap.GameFinished
	case engine.EventUpdate:
		progress()
		p["offsetFrame"] = 0
		p["aiStuck"] = snap.AIStuck
	case engine.EventUpdateCounter:
		progress()
		p["paused"] = snap.Paused
		p["searchingPlayers"] = false
	default:
		board()
	}
	return p
}

// snapshotSnakes never nil, so clients always receive an array.
func snapshotSnakes(snap *engine.Snapshot) []engine.Snake {
	if snap.Snakes == nil {
		return []engine.Snake{}
	}
	return snap.Snakes
}

// catchUp is the state sent to a member joining a round in progress.
func catchUp(snap *engine.Snapshot) map[string]any {
	p := eventPayload(engine.EventUpdate, snap)
	p["paused"] = snap.Paused
	p["searchingPlayers"] = false
	return p
}
