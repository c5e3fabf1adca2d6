package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	// Image formats accepted for annonce uploads.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"annonces-api/internal/event"
	"annonces-api/internal/model"
	"annonces-api/internal/storage"
	"annonces-api/internal/validate"
	"annonces-api/pkg/apierror"
)

type AnnonceStore interface {
	Insert(ctx context.Context, a model.Annonce) error
	FindByID(ctx context.Context, id string) (model.Annonce, error)
	ListValidated(ctx context.Context) ([]model.Annonce, error)
	ListByOwner(ctx context.Context, userID string) ([]model.Annonce, error)
	ListAll(ctx context.Context, status string) ([]model.Annonce, error)
	UpdateContent(ctx context.Context, id string, userID string, titre string, description string) (model.Annonce, error)
	Delete(ctx context.Context, id string, userID string, role string) error
	SetStatus(ctx context.Context, id string, status string, reason *string) (model.Annonce, error)
}

// ImageUpload is an optional image attached to annonce creation. Data is
// already size-capped by the handler.
type ImageUpload struct {
	Data        []byte
	ContentType string
}

type AnnonceService struct {
	repo            AnnonceStore
	store           storage.ObjectStore
	bus             event.Bus
	defaultImageURL string
}

func NewAnnonceService(repo AnnonceStore, store storage.ObjectStore, bus event.Bus, defaultImageURL string) *AnnonceService {
	return &AnnonceService{
		repo:            repo,
		store:           store,
		bus:             bus,
		defaultImageURL: defaultImageURL,
	}
}

// ListPublic returns validated annonces, newest first, no auth required.
func (s *AnnonceService) ListPublic(ctx context.Context) ([]model.Annonce, error) {
	annonces, err := s.repo.ListValidated(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolveImages(annonces), nil
}

// ListOwn returns the caller's annonces regardless of status.
func (s *AnnonceService) ListOwn(ctx context.Context, userID string) ([]model.Annonce, error) {
	annonces, err := s.repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolveImages(annonces), nil
}

// Create validates input, stores the optional image, then inserts the row.
// New annonces start pending until an admin validates them. The image is
// uploaded first so a stored key always references a live object; an insert
// failure triggers a best-effort removal of the freshly uploaded object.
func (s *AnnonceService) Create(ctx context.Context, actor *model.AuthClaims, req model.CreateAnnonceRequest, upload *ImageUpload) (model.Annonce, error) {
	req.Titre = strings.TrimSpace(req.Titre)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		return model.Annonce{}, err
	}

	id := uuid.NewString()
	imageKey := model.DefaultImageKey

	if upload != nil {
		key, err := s.uploadImage(ctx, id, upload)
		if err != nil {
			return model.Annonce{}, err
		}
		imageKey = key
	}

	now := time.Now().UTC()
	annonce := model.Annonce{
		ID:          id,
		Titre:       req.Titre,
		Description: req.Description,
		Image:       imageKey,
		UserID:      actor.UserID,
		Status:      model.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, annonce); err != nil {
		if annonce.HasStoredImage() {
			if removeErr := s.store.Remove(ctx, annonce.Image); removeErr != nil {
				slog.Error("orphaned image after failed insert", "key", annonce.Image, "error", removeErr)
			}
		}
		return model.Annonce{}, err
	}

	s.publish(event.TypeAnnonceCreated, actor, annonce.ID, annonce.Titre)
	return s.resolveImage(annonce), nil
}

// Update rewrites titre/description for the owner. Ownership is enforced
// inside a single conditional UPDATE; admins do not edit content, only
// moderate it, so a non-owner admin still gets 403 here.
func (s *AnnonceService) Update(ctx context.Context, actor *model.AuthClaims, id string, req model.UpdateAnnonceRequest) (model.Annonce, error) {
	req.Titre = strings.TrimSpace(req.Titre)
	req.Description = strings.TrimSpace(req.Description)
	if err := validate.Struct(req); err != nil {
		return model.Annonce{}, err
	}

	annonce, err := s.repo.UpdateContent(ctx, id, actor.UserID, req.Titre, req.Description)
	if err != nil {
		return model.Annonce{}, err
	}

	s.publish(event.TypeAnnonceUpdated, actor, annonce.ID, annonce.Titre)
	return s.resolveImage(annonce), nil
}

// Delete removes the annonce as owner or admin. The stored image is removed
// from the bucket before the row so a failed storage call aborts the delete
// instead of orphaning the blob.
func (s *AnnonceService) Delete(ctx context.Context, actor *model.AuthClaims, id string) error {
	annonce, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if annonce.UserID != actor.UserID && actor.Role != model.RoleAdmin {
		return model.ErrForbidden
	}

	if annonce.HasStoredImage() {
		if err := s.store.Remove(ctx, annonce.Image); err != nil {
			return apierror.New("DEPENDENCY_ERROR", "failed to remove stored image", "", http.StatusInternalServerError)
		}
	}

	if err := s.repo.Delete(ctx, id, actor.UserID, actor.Role); err != nil {
		return err
	}

	s.publish(event.TypeAnnonceDeleted, actor, id, annonce.Titre)
	return nil
}

func (s *AnnonceService) uploadImage(ctx context.Context, annonceID string, upload *ImageUpload) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(upload.Data))
	if err != nil {
		return "", apierror.Validation(map[string]string{
			"image": "must be a valid jpeg, png, gif or webp image",
		})
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", apierror.Validation(map[string]string{"image": "has invalid dimensions"})
	}

	key := fmt.Sprintf("%s.%s", annonceID, format)
	contentType := upload.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(upload.Data)
	}

	if err := s.store.Upload(ctx, key, contentType, bytes.NewReader(upload.Data)); err != nil {
		return "", apierror.New("DEPENDENCY_ERROR", "failed to store image", "", http.StatusInternalServerError)
	}

	return key, nil
}

func (s *AnnonceService) resolveImages(annonces []model.Annonce) []model.Annonce {
	for i := range annonces {
		annonces[i] = s.resolveImage(annonces[i])
	}
	return annonces
}

func (s *AnnonceService) resolveImage(a model.Annonce) model.Annonce {
	if !a.HasStoredImage() {
		if s.defaultImageURL != "" {
			a.ImageURL = s.defaultImageURL
		} else {
			a.ImageURL = s.store.PublicURL(model.DefaultImageKey)
		}
		return a
	}

	a.ImageURL = s.store.PublicURL(a.Image)
	return a
}

func (s *AnnonceService) publish(typ event.Type, actor *model.AuthClaims, annonceID string, detail string) {
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

// ResolveImage exposes image resolution for the moderation listing, which
// reuses this service's bucket mapping.
func (s *AnnonceService) ResolveImage(a model.Annonce) model.Annonce {
	return s.resolveImage(a)
}
