package events

import (
	"sync"

	"github.com/google/uuid"
	"github.com/lukaszchomatek/aji-vision-demo/internal/backend"
	"github.com/lukaszchomatek/aji-vision-demo/internal/logger"
	"github.com/lukaszchomatek/aji-vision-demo/internal/model"
)

// Snapshot is the latest value of every uncorrelated worker notification.
type Snapshot struct {
	Status      string
	Progress    float64
	BackendHint string
	BackendUsed backend.Backend
}

// Hub fans worker notifications out to subscribers and remembers the last of each kind.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan model.Message
	snapshot    Snapshot
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]chan model.Message),
		snapshot:    Snapshot{Status: "Waiting for an image…"},
	}
}

// Publish never blocks, a subscriber that is not keeping up misses messages.
func (h *Hub) Publish(msg model.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch payload := msg.Payload.(type) {
	case model.StatusPayload:
		h.snapshot.Status = payload.Message
		if payload.Progress != nil {
			h.snapshot.Progress = *payload.Progress
		}
	case model.BackendPayload:
		h.snapshot.BackendHint = payload.Message
	case model.ReadyPayload:
		h.snapshot.BackendUsed = payload.Backend
	}
	for id, c := range h.subscribers {
		select {
		case c <- msg:
		default:
			logger.Debugf("subscriber %s is slow, dropping %s message", id, msg.Type)
		}
	}
}

// Subscribe returns a channel of notifications and a func that must be called to release it.
func (h *Hub) Subscribe() (id string, messages <-chan model.Message, cancel func()) {
	id = uuid.New().String()
	c := make(chan model.Message, 32)
	h.mu.Lock()
	h.subscribers[id] = c
	h.mu.Unlock()
	var once sync.Once
	cancel = func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
			close(c)
		})
	}
	return id, c, cancel
}

func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}
