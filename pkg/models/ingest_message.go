package models

import (
	"time"
)

// Ingest envelope type discriminators
const (
	MessageTypeInteraction = "interaction.logged"
	MessageTypeSignal      = "signal.logged"
)

// InteractionMessage is the envelope host apps publish to log an
// interaction through the bus instead of the HTTP API. An empty status
// means completed. EventID is optional; supplying one makes redelivery
// idempotent.
type InteractionMessage struct {
	Type            string              `json:"type"`
	TenantID        string              `json:"tenant_id"`
	EventID         string              `json:"event_id,omitempty"`
	RelationshipIDs []string            `json:"relationship_ids"`
	Category        InteractionCategory `json:"category"`
	Status          EventStatus         `json:"status,omitempty"`
	OccurredAt      *time.Time          `json:"occurred_at,omitempty"`
	Duration        *DurationBucket     `json:"duration,omitempty"`
	Vibe            *string             `json:"vibe,omitempty"`
}

// SignalMessage is the envelope host apps publish to log an activity signal
type SignalMessage struct {
	Type       string     `json:"type"`
	TenantID   string     `json:"tenant_id"`
	Kind       SignalKind `json:"kind"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}
