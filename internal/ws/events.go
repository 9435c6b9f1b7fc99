package ws

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event is the structured message sent to WebSocket clients.
type Event struct {
	Type      string          `json:"type"`
	ID        uint64          `json:"id"`
	UserID    string          `json:"-"`
	ProjectID string          `json:"project_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Time      time.Time       `json:"time"`
}

// SubscribeMsg is sent by the client to request event replay and, optionally,
// to narrow delivery to a single project.
type SubscribeMsg struct {
	Type        string `json:"type"`
	LastEventID uint64 `json:"last_event_id"`
	ProjectID   string `json:"project_id,omitempty"`
}

// ResetMsg tells the client to do a full refresh (requested events too old).
type ResetMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// EventSequence tracks monotonic event IDs per user.
type EventSequence struct {
	mu       sync.Mutex
	counters map[string]*atomic.Uint64
}

// NewEventSequence creates a new EventSequence.
func NewEventSequence() *EventSequence {
	return &EventSequence{
		counters: make(map[string]*atomic.Uint64),
	}
}

// Next returns the next sequence number for a user.
func (es *EventSequence) Next(userID string) uint64 {
	es.mu.Lock()
	counter, ok := es.counters[userID]
	if !ok {
		counter = &atomic.Uint64{}
		es.counters[userID] = counter
	}
	es.mu.Unlock()

	return counter.Add(1)
}

// projectOf extracts the project_id field of a notification payload.
func projectOf(data json.RawMessage) string {
	var p struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}

	return p.ProjectID
}
