package hermes

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// SubjectRoadmapSaved is published after a roadmap is persisted.
	SubjectRoadmapSaved = "studyplan.roadmap.saved"
	// SubjectItemUpdated is published after an item's completion changes.
	SubjectItemUpdated = "studyplan.roadmap.item.updated"
	// SubjectAll matches every event this service emits.
	SubjectAll = "studyplan.>"
)

// RoadmapSaved describes a newly stored roadmap. Partial is set when the
// roadmap row exists but its items could not be written.
type RoadmapSaved struct {
	RoadmapID      string    `json:"roadmap_id"`
	ConversationID string    `json:"conversation_id"`
	SessionID      string    `json:"session_id"`
	Title          string    `json:"title"`
	ItemCount      int       `json:"item_count"`
	Partial        bool      `json:"partial,omitempty"`
	SavedAt        time.Time `json:"saved_at"`
}

// ItemUpdated describes a completion toggle on one roadmap item row.
type ItemUpdated struct {
	ItemID    string    `json:"item_id"`
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sink accepts encoded events. *Client is the production sink.
type Sink interface {
	Publish(subject string, payload []byte) error
}

// Emitter encodes roadmap events and hands them to a sink on their subject.
type Emitter struct {
	sink Sink
}

func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

func (e *Emitter) PublishRoadmapSaved(ev RoadmapSaved) error {
	return e.emit(SubjectRoadmapSaved, ev)
}

func (e *Emitter) PublishItemUpdated(ev ItemUpdated) error {
	return e.emit(SubjectItemUpdated, ev)
}

func (e *Emitter) emit(subject string, ev any) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return e.sink.Publish(subject, payload)
}

// Nop discards every event. It stands in when NATS is not configured.
type Nop struct{}

func (Nop) PublishRoadmapSaved(RoadmapSaved) error { return nil }
func (Nop) PublishItemUpdated(ItemUpdated) error   { return nil }
