package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the schema version stamped on every envelope.
const EnvelopeVersion = 1

// Aggregate identifies the entity an event is about. Its ID is used as the
// message key so events of one entity stay ordered within a partition.
type Aggregate struct {
	Type string
	ID   string
}

// Envelope is the JSON document written as the value of every message.
type Envelope struct {
	ID            string            `json:"event_id"`
	Type          string            `json:"event_type"`
	AggregateID   string            `json:"aggregate_id"`
	AggregateType string            `json:"aggregate_type"`
	Version       int               `json:"version"`
	OccurredAt    time.Time         `json:"timestamp"`
	Source        string            `json:"source"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Data          json.RawMessage   `json:"data"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// NewEnvelope encodes data as the payload of a new event.
func NewEnvelope(eventType, source string, agg Aggregate, data any) (*Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	return &Envelope{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateID:   agg.ID,
		AggregateType: agg.Type,
		Version:       EnvelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Source:        source,
		Data:          payload,
	}, nil
}

// SetMeta records a metadata entry, allocating the map on first use.
func (e *Envelope) SetMeta(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string, 1)
	}
	e.Metadata[key] = value
}

// Decode unmarshals the payload into target.
func (e *Envelope) Decode(target any) error {
	return json.Unmarshal(e.Data, target)
}
