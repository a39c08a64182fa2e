// Package broadcast fans captured frames out to live viewers. The producer
// never waits for a consumer: every subscriber gets a one-deep latest-wins
// mailbox, and a viewer that cannot keep up simply misses frames.
package broadcast

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Subscriber receives frames from the hub. Frames() yields at most the most
// recent frame per tick; Close is idempotent.
type Subscriber struct {
	frames chan []byte
	once   sync.Once
}

func (s *Subscriber) Frames() <-chan []byte {
	return s.frames
}

func (s *Subscriber) close() {
	s.once.Do(func() {
		close(s.frames)
	})
}

type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	log         *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		log:         log,
	}
}

func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{frames: make(chan []byte, 1)}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	count := len(h.subscribers)
	h.mu.Unlock()

	h.log.Debugf("viewer subscribed, total: %d", count)
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub]; ok {
		delete(h.subscribers, sub)
		sub.close()
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	h.log.Debugf("viewer unsubscribed, total: %d", count)
}

// Broadcast offers frame to every subscriber without ever blocking. A full
// mailbox is drained first so the subscriber always sees the newest frame.
func (h *Hub) Broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.frames <- frame:
		default:
			select {
			case <-sub.frames:
			default:
			}
			select {
			case sub.frames <- frame:
			default:
			}
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
