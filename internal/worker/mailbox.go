package worker

import "sync"

// mailbox is an unbounded FIFO of encoded messages. Pushing never blocks, so
// the bridge can flush its queue while the worker is busy emitting events.
type mailbox struct {
	mu     sync.Mutex
	items  [][]byte
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{signal: make(chan struct{}, 1)}
}

func (m *mailbox) push(raw []byte) {
	m.mu.Lock()
	m.items = append(m.items, raw)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *mailbox) drain() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}
