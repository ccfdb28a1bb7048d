// Package events describes membership domain events and the publisher port
// used to fan them out to downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	// TypeMemberRegistered is emitted once a PENDING membership record is durable.
	TypeMemberRegistered Type = "member.registered"
)

// Event is transport-agnostic. Key orders events for the same member.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// MemberRegistered is the payload of TypeMemberRegistered.
type MemberRegistered struct {
	MemberID       string `json:"memberId"`
	Email          string `json:"email"`
	MembershipType string `json:"membershipType"`
	Status         string `json:"status"`
}

// NewMemberRegistered builds a registration event keyed by member id.
func NewMemberRegistered(p MemberRegistered, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       TypeMemberRegistered,
		Key:        p.MemberID,
		OccurredAt: at.UTC(),
		Payload:    p,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Nop discards every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
