package mapview

import (
	"sync"

	"github.com/dj-oyu/hawkeye-camera-trap/board/internal/logger"
)

// Broadcaster fans pre-serialized ops out to stream subscribers. A client
// whose buffer is full misses ops and is told to resync.
type Broadcaster struct {
	mu      sync.Mutex
	clients map[int]*subscriber
	nextID  int
	buffer  int
	log     logger.Module

	// OnClientsChanged, when set, is called with the subscriber count.
	OnClientsChanged func(n int)
}

type subscriber struct {
	ch      chan *SerializedOp
	dropped bool
}

// NewBroadcaster creates a broadcaster with per-client buffers of size buffer.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{
		clients: make(map[int]*subscriber),
		buffer:  buffer,
		log:     logger.For("OpBroadcaster"),
	}
}

// Subscribe adds a new client and returns a channel for receiving ops.
func (b *Broadcaster) Subscribe() (int, <-chan *SerializedOp) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan *SerializedOp, b.buffer)}
	b.clients[id] = sub
	n := len(b.clients)
	b.mu.Unlock()

	b.log.Debug("Client #%d subscribed (total clients: %d)", id, n)
	b.notify(n)
	return id, sub.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	sub, ok := b.clients[id]
	if ok {
		close(sub.ch)
		delete(b.clients, id)
	}
	n := len(b.clients)
	b.mu.Unlock()

	if ok {
		b.log.Debug("Client #%d unsubscribed (remaining clients: %d)", id, n)
		b.notify(n)
	}
}

// Clients returns the number of subscribers.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Dropped reports and clears whether client id missed an op.
func (b *Broadcaster) Dropped(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.clients[id]
	if !ok {
		return false
	}
	d := sub.dropped
	sub.dropped = false
	return d
}

func (b *Broadcaster) broadcast(op *SerializedOp) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.clients {
		select {
		case sub.ch <- op:
		default:
			if !sub.dropped {
				b.log.Warn("Client #%d too slow, dropping op %d", id, op.Seq)
			}
			sub.dropped = true
		}
	}
}

func (b *Broadcaster) notify(n int) {
	if b.OnClientsChanged != nil {
		b.OnClientsChanged(n)
	}
}
