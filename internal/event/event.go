package event

import "time"

type Type string

const (
	TypeAnnonceCreated   Type = "annonce.created"
	TypeAnnonceUpdated   Type = "annonce.updated"
	TypeAnnonceDeleted   Type = "annonce.deleted"
	TypeAnnonceValidated Type = "annonce.validated"
	TypeAnnonceRejected  Type = "annonce.rejected"
)

type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	AnnonceID     string    `json:"annonce_id,omitempty"`
	ActorID       string    `json:"actor_id,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	ActorRole     string    `json:"actor_role,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}
