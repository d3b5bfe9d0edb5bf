// Package notify is the typed notification channel between the poll cycle
// and its consumers (websocket hub, Redis publisher). Publishing never
// blocks: a slow subscriber drops events rather than stalling the cycle.
package notify

import (
	"sync"
	"time"

	"dispatch-monitor/sentinel/internal/domain"
	"dispatch-monitor/sentinel/internal/metrics"
)

type EventType string

const (
	AlertRaised       EventType = "alert_raised"
	AlertResolved     EventType = "alert_resolved"
	AlertAcknowledged EventType = "alert_acknowledged"
	AlertDismissed    EventType = "alert_dismissed"
)

type Event struct {
	Type  EventType    `json:"type"`
	Alert domain.Alert `json:"alert"`
	At    time.Time    `json:"at"`
}

type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a buffered event channel and a cancel func. The channel
// is closed on cancel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			metrics.NotifyDrops.Add(1)
		}
	}
}
