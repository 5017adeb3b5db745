package channels

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	ChannelEmergency  = "emergency"
	ChannelEscalation = "escalation"
	ChannelFollowup   = "followup"
)

// DefaultCapacity is how many recent events each channel retains.
const DefaultCapacity = 100

// Entry is one retained event. Payload is the serialized event exactly as it
// was broadcast.
type Entry struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	ReportID    int64           `json:"report_id"`
	Payload     json.RawMessage `json:"payload"`
	PublishedAt time.Time       `json:"published_at"`
}

type ring struct {
	entries []Entry
}

// Buffer is a fixed set of named in-memory channels, each holding the most
// recent events for introspection. Channels are declared at construction;
// publishing to an unknown name is an error, never an implicit create.
type Buffer struct {
	mu       sync.RWMutex
	capacity int
	channels map[string]*ring
}

func NewBuffer(capacity int, names ...string) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if len(names) == 0 {
		names = []string{ChannelEmergency, ChannelEscalation, ChannelFollowup}
	}

	chans := make(map[string]*ring, len(names))
	for _, name := range names {
		chans[name] = &ring{}
	}

	return &Buffer{
		capacity: capacity,
		channels: chans,
	}
}

// Publish appends an event to the named channel, evicting the oldest entry
// once the channel is at capacity.
func (b *Buffer) Publish(channel, eventType string, reportID int64, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, ok := b.channels[channel]
	if !ok {
		return fmt.Errorf("unknown channel: %s", channel)
	}

	entry := Entry{
		ID:          uuid.NewString(),
		Type:        eventType,
		ReportID:    reportID,
		Payload:     payload,
		PublishedAt: time.Now().UTC(),
	}

	if len(r.entries) >= b.capacity {
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, entry)

	slog.Info("event published", "channel", channel, "type", eventType, "report_id", reportID)
	return nil
}

// Read returns a point-in-time copy of the channel's retained events in
// publish order. The snapshot is never mutated by later publishes.
func (b *Buffer) Read(channel string) ([]Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.channels[channel]
	if !ok {
		return nil, fmt.Errorf("unknown channel: %s", channel)
	}

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out, nil
}

// Names returns the declared channel names.
func (b *Buffer) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.channels))
	for name := range b.channels {
		names = append(names, name)
	}
	return names
}
