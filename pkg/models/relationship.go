package models

import (
	"time"
)

// Tier is the ordinal closeness class of a relationship. Tighter tiers
// expect more frequent contact, decay faster, and weigh heavier in the
// network-health aggregate.
type Tier string

const (
	TierInner     Tier = "inner"     // Closest circle, weekly-or-better contact
	TierClose     Tier = "close"     // Close friends, contact within a couple weeks
	TierCommunity Tier = "community" // Wider circle, monthly-ish contact
)

// Tightness returns the ordinal rank of the tier, higher meaning closer.
func (t Tier) Tightness() int {
	switch t {
	case TierInner:
		return 3
	case TierClose:
		return 2
	case TierCommunity:
		return 1
	}
	return 0
}

func (t Tier) IsValid() bool {
	return t.Tightness() > 0
}

// Archetype is a fixed personality tag on a relationship, used only to
// weight category affinities when scoring interactions.
type Archetype string

const (
	ArchetypeAnchor     Archetype = "anchor"     // Steady presence, values consistency
	ArchetypeAdventurer Archetype = "adventurer" // Energized by shared activities
	ArchetypeNurturer   Archetype = "nurturer"   // Values care and check-ins
	ArchetypeConnector  Archetype = "connector"  // Thrives in group settings
	ArchetypeSage       Archetype = "sage"       // Values depth over frequency
)

func (a Archetype) IsValid() bool {
	switch a {
	case ArchetypeAnchor, ArchetypeAdventurer, ArchetypeNurturer, ArchetypeConnector, ArchetypeSage:
		return true
	}
	return false
}

// Relationship is a person the user tracks. Created on first interaction or
// explicit add; the engine never deletes one.
type Relationship struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	Tier      Tier      `json:"tier" db:"tier"`
	Archetype Archetype `json:"archetype" db:"archetype"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreateRelationshipRequest is the request to add a relationship
type CreateRelationshipRequest struct {
	Name      string    `json:"name" validate:"required"`
	Tier      Tier      `json:"tier" validate:"required"`
	Archetype Archetype `json:"archetype" validate:"required"`
}

// UpdateRelationshipRequest is the request to update a relationship.
// Changing tier or archetype changes scoring parameters, so the caller's
// cached score is recomputed from history afterward.
type UpdateRelationshipRequest struct {
	Name      *string    `json:"name,omitempty"`
	Tier      *Tier      `json:"tier,omitempty"`
	Archetype *Archetype `json:"archetype,omitempty"`
}
