package models

import (
	"time"
)

// SignalKind is the kind of non-interaction activity signal
type SignalKind string

const (
	SignalCapacityCheckin SignalKind = "capacity_checkin" // Battery/capacity self-report
	SignalJournal         SignalKind = "journal"          // Free-form journal entry
)

func (k SignalKind) IsValid() bool {
	return k == SignalCapacityCheckin || k == SignalJournal
}

// ActivitySignal is a timestamped non-interaction signal. Signals count
// toward streak continuity but never toward relationship score.
type ActivitySignal struct {
	ID         string     `json:"id" db:"id"`
	TenantID   string     `json:"tenant_id" db:"tenant_id"`
	Kind       SignalKind `json:"kind" db:"kind"`
	OccurredAt time.Time  `json:"occurred_at" db:"occurred_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// CreateSignalRequest is the request to log an activity signal
type CreateSignalRequest struct {
	Kind       SignalKind `json:"kind" validate:"required"`
	OccurredAt *time.Time `json:"occurred_at,omitempty"`
}
