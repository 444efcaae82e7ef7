// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package queue

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ManuGH/clipforge/internal/metrics"
)

// UpdateType names the mutation an Update announces.
type UpdateType string

const (
	UpdateAdd    UpdateType = "add"
	UpdateChange UpdateType = "update"
	UpdateRemove UpdateType = "remove"
	UpdatePause  UpdateType = "pause"
	UpdateResume UpdateType = "resume"
	UpdateClear  UpdateType = "clear"
)

// Update is one broadcast event. Job is a snapshot and safe to retain;
// it is nil for queue-wide events.
type Update struct {
	Type  UpdateType `json:"type"`
	JobID string     `json:"jobId,omitempty"`
	Job   *Job       `json:"job,omitempty"`
}

// subscriberBuffer is the per-subscriber queue depth. Overflow drops the
// oldest update, never blocks the publisher.
const subscriberBuffer = 64

// Hub fans updates out to subscribers. Each subscriber owns an
// independent bounded channel.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]chan Update
	closed bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Update)}
}

// Subscribe registers a new observer and returns its handle and channel.
// The channel is closed on Unsubscribe or hub Close.
func (h *Hub) Subscribe() (string, <-chan Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Update, subscriberBuffer)
	if h.closed {
		close(ch)
		return id, ch
	}
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes an observer and closes its channel. Unknown
// handles are a no-op.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish delivers the update to every subscriber without blocking.
// A full subscriber loses its oldest buffered update.
func (h *Hub) Publish(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		// Full: drop the oldest and retry once. A concurrent reader may
		// have raced us, so the second send is still non-blocking.
		select {
		case <-ch:
			metrics.UpdatesDroppedTotal.Inc()
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close closes every subscriber channel and rejects new subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
