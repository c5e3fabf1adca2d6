package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"annonces-api/internal/event"
	"annonces-api/internal/model"
	"annonces-api/internal/validate"
)

// ModerationService drives the admin review state machine:
// pending -> validated | rejected. There is no path back to pending;
// re-review requires deletion and resubmission.
type ModerationService struct {
	repo     AnnonceStore
	annonces *AnnonceService
	bus      event.Bus
}

func NewModerationService(repo AnnonceStore, annonces *AnnonceService, bus event.Bus) *ModerationService {
	return &ModerationService{repo: repo, annonces: annonces, bus: bus}
}

// ListAll returns every annonce for the review queue, optionally filtered
// by status.
func (s *ModerationService) ListAll(ctx context.Context, status string) ([]model.Annonce, error) {
	status = strings.TrimSpace(status)
	if status != "" && status != model.StatusPending && status != model.StatusValidated && status != model.StatusRejected {
		return nil, validate.InvalidField("status", "must be one of: pending, validated, rejected")
	}

	annonces, err := s.repo.ListAll(ctx, status)
	if err != nil {
		return nil, err
	}

	for i := range annonces {
		annonces[i] = s.annonces.ResolveImage(annonces[i])
	}
	return annonces, nil
}

// Validate publishes the annonce and clears any prior rejection reason.
// Re-validating an already validated annonce re-affirms the status.
func (s *ModerationService) Validate(ctx context.Context, actor *model.AuthClaims, id string) (model.Annonce, error) {
	annonce, err := s.repo.SetStatus(ctx, id, model.StatusValidated, nil)
	if err != nil {
		return model.Annonce{}, err
	}

	s.publish(event.TypeAnnonceValidated, actor, annonce.ID, "")
	return s.annonces.ResolveImage(annonce), nil
}

// Reject marks the annonce rejected with a mandatory reason shown to the
// owner.
func (s *ModerationService) Reject(ctx context.Context, actor *model.AuthClaims, id string, reason string) (model.Annonce, error) {
	req := model.RejectAnnonceRequest{Reason: strings.TrimSpace(reason)}
	if err := validate.Struct(req); err != nil {
		return model.Annonce{}, err
	}

	annonce, err := s.repo.SetStatus(ctx, id, model.StatusRejected, &req.Reason)
	if err != nil {
		return model.Annonce{}, err
	}

	s.publish(event.TypeAnnonceRejected, actor, annonce.ID, req.Reason)
	return s.annonces.ResolveImage(annonce), nil
}

func (s *ModerationService) publish(typ event.Type, actor *model.AuthClaims, annonceID string, detail string) {
	if s.bus == nil {
		return
	}

	s.bus.Publish(event.Event{
		ID:            uuid.NewString(),
		Type:          typ,
		AnnonceID:     annonceID,
		ActorID:       actor.UserID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Detail:        detail,
		OccurredAt:    time.Now().UTC(),
	})
}
