package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Bus is the application event bus: an unbounded FIFO queue of tea.Msg
// values. Send never blocks, so producers (the engine, the status-line
// worker, the commit-animation ticker) can post from any goroutine without
// coordination. The controller is the single consumer.
type Bus struct {
	mu     sync.Mutex
	queue  []tea.Msg
	notify chan struct{}
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{notify: make(chan struct{}, 1)}
}

// Send enqueues a message. Messages sent after Close are dropped.
func (b *Bus) Send(msg tea.Msg) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Recv blocks until a message is available, returning nil once the bus is
// closed and drained.
func (b *Bus) Recv() tea.Msg {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return msg
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return nil
		}
		<-b.notify
	}
}

// Await is a tea.Cmd delivering the next bus message to the update loop.
// The controller re-arms it after every delivery, preserving FIFO order.
func (b *Bus) Await() tea.Cmd {
	return func() tea.Msg { return b.Recv() }
}

// Close wakes any blocked Recv. Pending messages may still be drained.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	select {
	case b.notify <- struct{}{}:
	default:
	}
}
