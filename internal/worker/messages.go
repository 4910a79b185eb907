package worker

import (
	"snakeiaserver/internal/engine"

	"github.com/vmihailenco/msgpack/v5"
)

// message types crossing the worker boundary
const (
	msgInit    = "init"
	msgCommand = "cmd"
	msgAck     = "ack"
	msgEvent   = "event"
)

// message is the only thing exchanged with a worker. It is always encoded, so
// the two sides never share memory; grid back-references are dropped by the
// codec and restored with engine.Rehydrate.
type message struct {
	Type          string          `msgpack:"type"`
	Grid          *engine.Grid    `msgpack:"grid,omitempty"`
	Snakes        []engine.Snake  `msgpack:"snakes,omitempty"`
	Command       *engine.Command `msgpack:"cmd,omitempty"`
	Event         *engine.Event   `msgpack:"event,omitempty"`
	ErrorOccurred bool            `msgpack:"errorOccurred,omitempty"`
}

func encode(m message) ([]byte, error) {
	return msgpack.Marshal(&m)
}

func decode(raw []byte) (message, error) {
	var m message
	err := msgpack.Unmarshal(raw, &m)
	return m, err
}
