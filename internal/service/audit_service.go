package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"annonces-api/internal/event"
	"annonces-api/internal/model"
)

type AuditStore interface {
	Insert(ctx context.Context, e model.AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

// AuditService records domain events into the audit trail. It subscribes
// to the in-process bus so request handling never waits on audit writes.
type AuditService struct {
	repo AuditStore
	bus  event.Bus
}

func NewAuditService(repo AuditStore, bus event.Bus) *AuditService {
	return &AuditService{repo: repo, bus: bus}
}

// Run consumes bus events until ctx is cancelled. Intended to run in its
// own goroutine from app startup.
func (s *AuditService) Run(ctx context.Context) {
	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.record(ctx, e)
		}
	}
}

func (s *AuditService) record(ctx context.Context, e event.Event) {
	entry := model.AuditEntry{
		ID:            uuid.NewString(),
		Action:        string(e.Type),
		ActorID:       e.ActorID,
		ActorUsername: e.ActorUsername,
		ActorRole:     e.ActorRole,
		AnnonceID:     e.AnnonceID,
		Detail:        e.Detail,
		OccurredAt:    e.OccurredAt,
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		slog.Error("failed to record audit entry", "action", entry.Action, "error", err)
	}
}

func (s *AuditService) List(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	return s.repo.ListRecent(ctx, limit)
}
