package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
)

// InteractionCategory is the kind of interaction that was logged
type InteractionCategory string

const (
	CategoryTextCall         InteractionCategory = "text_call"         // Text thread or phone/video call
	CategorySharedMeal       InteractionCategory = "shared_meal"       // Meal or coffee together
	CategoryHangout          InteractionCategory = "hangout"           // Unstructured time together
	CategoryDeepConversation InteractionCategory = "deep_conversation" // One-on-one with real depth
	CategoryCelebration      InteractionCategory = "celebration"       // Birthday, milestone, party
	CategoryActivity         InteractionCategory = "activity"          // Shared activity or outing
)

func (c InteractionCategory) IsValid() bool {
	switch c {
	case CategoryTextCall, CategorySharedMeal, CategoryHangout, CategoryDeepConversation, CategoryCelebration, CategoryActivity:
		return true
	}
	return false
}

// EventStatus is the lifecycle state of an interaction event. Transitions
// only move forward: planned -> pending_confirm -> completed, or any
// non-terminal state -> cancelled.
type EventStatus string

const (
	EventStatusPlanned        EventStatus = "planned"
	EventStatusPendingConfirm EventStatus = "pending_confirm"
	EventStatusCompleted      EventStatus = "completed"
	EventStatusCancelled      EventStatus = "cancelled"
)

func (s EventStatus) IsValid() bool {
	switch s {
	case EventStatusPlanned, EventStatusPendingConfirm, EventStatusCompleted, EventStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCompleted || s == EventStatusCancelled
}

// CanTransitionTo reports whether the forward-only status machine allows
// moving from s to next.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventStatusPlanned:
		return next == EventStatusPendingConfirm || next == EventStatusCompleted || next == EventStatusCancelled
	case EventStatusPendingConfirm:
		return next == EventStatusCompleted || next == EventStatusCancelled
	}
	return false
}

// DurationBucket is the coarse length of an interaction
type DurationBucket string

const (
	DurationQuick    DurationBucket = "quick"    // Under ~15 minutes
	DurationStandard DurationBucket = "standard" // Typical length
	DurationExtended DurationBucket = "extended" // A long stretch together
)

func (d DurationBucket) IsValid() bool {
	switch d {
	case DurationQuick, DurationStandard, DurationExtended:
		return true
	}
	return false
}

// InteractionEvent is an immutable logged fact. One event may reference
// several relationships for group activities. After completion the row is
// frozen except for reflection attachment; scores, streaks and seasons are
// recomputable from the ordered set of these rows.
type InteractionEvent struct {
	ID              string                   `json:"id" db:"id"`
	TenantID        string                   `json:"tenant_id" db:"tenant_id"`
	RelationshipIDs database.JSONB[[]string] `json:"relationship_ids" db:"relationship_ids"`
	Category        InteractionCategory      `json:"category" db:"category"`
	Status          EventStatus              `json:"status" db:"status"`
	OccurredAt      time.Time                `json:"occurred_at" db:"occurred_at"`
	Duration        *DurationBucket          `json:"duration,omitempty" db:"duration"`
	Vibe            *string                  `json:"vibe,omitempty" db:"vibe"`
	Reflection      *string                  `json:"reflection,omitempty" db:"reflection"`
	CreatedAt       time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at" db:"updated_at"`
}

// References reports whether the event involves the given relationship
func (e *InteractionEvent) References(relationshipID string) bool {
	for _, id := range e.RelationshipIDs.GetValue() {
		if id == relationshipID {
			return true
		}
	}
	return false
}

// DedupeIDs drops repeated relationship references, keeping first-seen order
func DedupeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// CreateEventRequest is the request to log or plan an interaction
type CreateEventRequest struct {
	RelationshipIDs []string            `json:"relationship_ids" validate:"required,min=1"`
	Category        InteractionCategory `json:"category" validate:"required"`
	Status          EventStatus         `json:"status,omitempty"`
	OccurredAt      *time.Time          `json:"occurred_at,omitempty"`
	Duration        *DurationBucket     `json:"duration,omitempty"`
	Vibe            *string             `json:"vibe,omitempty"`
}

// AmendEventRequest replaces the mutable facts of a past event. Amending
// forces a full score recomputation for every referenced relationship.
type AmendEventRequest struct {
	RelationshipIDs []string            `json:"relationship_ids" validate:"required,min=1"`
	Category        InteractionCategory `json:"category" validate:"required"`
	OccurredAt      time.Time           `json:"occurred_at" validate:"required"`
	Duration        *DurationBucket     `json:"duration,omitempty"`
	Vibe            *string             `json:"vibe,omitempty"`
}

// UpdateEventStatusRequest moves an event forward through its status machine
type UpdateEventStatusRequest struct {
	Status EventStatus `json:"status" validate:"required"`
}

// AttachReflectionRequest attaches free-text reflection to a completed event
type AttachReflectionRequest struct {
	Reflection string `json:"reflection" validate:"required"`
}
