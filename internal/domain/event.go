package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrStorageUnavailable = errors.New("change event storage unavailable")
	ErrInvalidEvent       = errors.New("invalid change event")
	ErrUnknownEntityType  = errors.New("unknown entity type")
)

// Kind classifies what a change event records. Internal kinds exist in the
// table for bookkeeping but are excluded from the history feed at read time.
type Kind int16

const (
	KindFieldChange Kind = iota
	KindCreated
	KindDeleted
	KindRestored
	KindRelationAdded
	KindRelationRemoved
	KindInternal
)

// Visible reports whether an event of this kind surfaces in the feed.
func (k Kind) Visible() bool {
	return k != KindInternal
}

// ChangeEvent is one recorded mutation against a trackable entity.
// Events are append-only: once written they are never updated or deleted,
// corrections happen by recording compensating events.
type ChangeEvent struct {
	ID          int64     `json:"id"`
	EntityType  string    `json:"itemtype"`
	EntityID    int64     `json:"items_id"`
	Timestamp   time.Time `json:"date_mod"`
	ActorUserID *int64    `json:"user_id,omitempty"`
	Kind        Kind      `json:"kind"`
	FieldKey    string    `json:"field,omitempty"`
	OldValue    string    `json:"old_value,omitempty"`
	NewValue    string    `json:"new_value,omitempty"`
	Summary     string    `json:"summary,omitempty"`
}

// Validate checks the invariants a stored event must satisfy. The entity
// target may never be empty; type registration is checked by the recorder.
func (e *ChangeEvent) Validate() error {
	if e.EntityType == "" {
		return fmt.Errorf("%w: entity type is required", ErrInvalidEvent)
	}
	if e.EntityID <= 0 {
		return fmt.Errorf("%w: entity id must be positive", ErrInvalidEvent)
	}
	return nil
}

// ChangeText renders the unescaped change description. Relation and
// lifecycle events carry a prebuilt summary, field changes are formatted
// from the stored value pair.
func (e *ChangeEvent) ChangeText() string {
	if e.Summary != "" {
		return e.Summary
	}
	switch {
	case e.OldValue == "" && e.NewValue == "":
		return ""
	case e.OldValue == "":
		return fmt.Sprintf("Add %s", e.NewValue)
	case e.NewValue == "":
		return fmt.Sprintf("Delete %s", e.OldValue)
	default:
		return fmt.Sprintf("Change %s to %s", e.OldValue, e.NewValue)
	}
}
