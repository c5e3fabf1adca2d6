package model

import "time"

const (
	StatusPending   = "pending"
	StatusValidated = "validated"
	StatusRejected  = "rejected"
)

// DefaultImageKey is the sentinel stored for annonces created without an
// image. It never refers to a real object in the bucket.
const DefaultImageKey = "default.png"

type Annonce struct {
	ID              string    `json:"id"`
	Titre           string    `json:"titre"`
	Description     string    `json:"description"`
	Image           string    `json:"-"`
	ImageURL        string    `json:"image"`
	UserID          string    `json:"user_id"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasStoredImage reports whether the annonce owns a real object in the
// bucket, as opposed to the shared default sentinel.
func (a Annonce) HasStoredImage() bool {
	return a.Image != "" && a.Image != DefaultImageKey
}

type AuditEntry struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	ActorID       string    `json:"actor_id,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	ActorRole     string    `json:"actor_role,omitempty"`
	AnnonceID     string    `json:"annonce_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
