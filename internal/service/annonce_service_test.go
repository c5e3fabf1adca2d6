package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"annonces-api/internal/model"
	"annonces-api/internal/storage"
	"annonces-api/pkg/apierror"
)

type fakeAnnonceStore struct {
	annonces  map[string]model.Annonce
	insertErr error
}

func newFakeAnnonceStore(seed ...model.Annonce) *fakeAnnonceStore {
	f := &fakeAnnonceStore{annonces: map[string]model.Annonce{}}
	for _, a := range seed {
		f.annonces[a.ID] = a
	}
	return f
}

func (f *fakeAnnonceStore) Insert(_ context.Context, a model.Annonce) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.annonces[a.ID] = a
	return nil
}

func (f *fakeAnnonceStore) FindByID(_ context.Context, id string) (model.Annonce, error) {
	a, ok := f.annonces[id]
	if !ok {
		return model.Annonce{}, model.ErrAnnonceNotFound
	}
	return a, nil
}

func (f *fakeAnnonceStore) ListValidated(_ context.Context) ([]model.Annonce, error) {
	var out []model.Annonce
	for _, a := range f.annonces {
		if a.Status == model.StatusValidated {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnnonceStore) ListByOwner(_ context.Context, userID string) ([]model.Annonce, error) {
	var out []model.Annonce
	for _, a := range f.annonces {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnnonceStore) ListAll(_ context.Context, status string) ([]model.Annonce, error) {
	var out []model.Annonce
	for _, a := range f.annonces {
		if status == "" || a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAnnonceStore) UpdateContent(_ context.Context, id string, userID string, titre string, description string) (model.Annonce, error) {
	a, ok := f.annonces[id]
	if !ok {
		return model.Annonce{}, model.ErrAnnonceNotFound
	}
	if a.UserID != userID {
		return model.Annonce{}, model.ErrForbidden
	}
	a.Titre = titre
	a.Description = description
	a.UpdatedAt = time.Now().UTC()
	f.annonces[id] = a
	return a, nil
}

func (f *fakeAnnonceStore) Delete(_ context.Context, id string, userID string, role string) error {
	a, ok := f.annonces[id]
	if !ok {
		return model.ErrAnnonceNotFound
	}
	if a.UserID != userID && role != model.RoleAdmin {
		return model.ErrForbidden
	}
	delete(f.annonces, id)
	return nil
}

func (f *fakeAnnonceStore) SetStatus(_ context.Context, id string, status string, reason *string) (model.Annonce, error) {
	a, ok := f.annonces[id]
	if !ok {
		return model.Annonce{}, model.ErrAnnonceNotFound
	}
	a.Status = status
	if reason != nil {
		a.RejectionReason = *reason
	} else {
		a.RejectionReason = ""
	}
	a.UpdatedAt = time.Now().UTC()
	f.annonces[id] = a
	return a, nil
}

func userClaims(id string) *model.AuthClaims {
	return &model.AuthClaims{UserID: id, Username: "user-" + id, Role: model.RoleUser}
}

func adminClaims() *model.AuthClaims {
	return &model.AuthClaims{UserID: "admin-id", Username: "admin", Role: model.RoleAdmin}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAnnonceService_CreateValidation(t *testing.T) {
	svc := NewAnnonceService(newFakeAnnonceStore(), &storage.MockStore{}, nil, "https://cdn.example.com/default.png")

	_, err := svc.Create(context.Background(), userClaims("u1"), model.CreateAnnonceRequest{
		Titre:       "ab",
		Description: "short",
	}, nil)
	require.Error(t, err)

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Contains(t, apiErr.Fields, "titre")
	assert.Contains(t, apiErr.Fields, "description")
}

func TestAnnonceService_CreateStartsPending(t *testing.T) {
	repo := newFakeAnnonceStore()
	svc := NewAnnonceService(repo, &storage.MockStore{}, nil, "https://cdn.example.com/default.png")

	created, err := svc.Create(context.Background(), userClaims("u1"), model.CreateAnnonceRequest{
		Titre:       "  Vélo de course  ",
		Description: "Très bon état, peu servi.",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, "Vélo de course", created.Titre)
	assert.Equal(t, "u1", created.UserID)
	assert.Equal(t, "https://cdn.example.com/default.png", created.ImageURL)

	stored, err := repo.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultImageKey, stored.Image)
}

func TestAnnonceService_CreateWithImage(t *testing.T) {
	repo := newFakeAnnonceStore()
	store := &storage.MockStore{}
	store.On("Upload", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, ".png")
	}), "image/png", mock.Anything).Return(nil)
	store.On("PublicURL", mock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, ".png")
	})).Return("https://cdn.example.com/uploaded.png")

	svc := NewAnnonceService(repo, store, nil, "https://cdn.example.com/default.png")

	created, err := svc.Create(context.Background(), userClaims("u1"), model.CreateAnnonceRequest{
		Titre:       "Vélo de course",
		Description: "Très bon état, peu servi.",
	}, &ImageUpload{Data: pngBytes(t), ContentType: "image/png"})
	require.NoError(t, err)

	assert.Equal(t, created.ID+".png", created.Image)
	assert.Equal(t, "https://cdn.example.com/uploaded.png", created.ImageURL)
	store.AssertExpectations(t)
}

func TestAnnonceService_CreateRejectsNonImageUpload(t *testing.T) {
	store := &storage.MockStore{}
	svc := NewAnnonceService(newFakeAnnonceStore(), store, nil, "https://cdn.example.com/default.png")

	_, err := svc.Create(context.Background(), userClaims("u1"), model.CreateAnnonceRequest{
		Titre:       "Vélo de course",
		Description: "Très bon état, peu servi.",
	}, &ImageUpload{Data: []byte("definitely not an image"), ContentType: "text/plain"})
	require.Error(t, err)

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Contains(t, apiErr.Fields, "image")
	store.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnnonceService_CreateCompensatesFailedInsert(t *testing.T) {
	repo := newFakeAnnonceStore()
	repo.insertErr = errors.New("connection reset")

	store := &storage.MockStore{}
	store.On("Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("Remove", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, ".png")
	})).Return(nil)

	svc := NewAnnonceService(repo, store, nil, "https://cdn.example.com/default.png")

	_, err := svc.Create(context.Background(), userClaims("u1"), model.CreateAnnonceRequest{
		Titre:       "Vélo de course",
		Description: "Très bon état, peu servi.",
	}, &ImageUpload{Data: pngBytes(t), ContentType: "image/png"})
	require.Error(t, err)
	store.AssertExpectations(t)
}

func TestAnnonceService_UpdateByNonOwner(t *testing.T) {
	repo := newFakeAnnonceStore(model.Annonce{
		ID: "a1", Titre: "Vélo", Description: "Bon état", Image: model.DefaultImageKey,
		UserID: "u1", Status: model.StatusValidated,
	})
	svc := NewAnnonceService(repo, &storage.MockStore{}, nil, "https://cdn.example.com/default.png")

	_, err := svc.Update(context.Background(), userClaims("u2"), "a1", model.UpdateAnnonceRequest{
		Titre:       "Vélo volé",
		Description: "Presque neuf, aucune question.",
	})
	assert.ErrorIs(t, err, model.ErrForbidden)

	// Admins moderate, they do not edit content.
	_, err = svc.Update(context.Background(), adminClaims(), "a1", model.UpdateAnnonceRequest{
		Titre:       "Vélo modéré",
		Description: "Presque neuf, aucune question.",
	})
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestAnnonceService_DeleteRemovesImageFirst(t *testing.T) {
	repo := newFakeAnnonceStore(model.Annonce{
		ID: "a1", Titre: "Vélo", Description: "Bon état", Image: "a1.png",
		UserID: "u1", Status: model.StatusValidated,
	})
	store := &storage.MockStore{}
	store.On("Remove", mock.Anything, "a1.png").Return(nil)

	svc := NewAnnonceService(repo, store, nil, "https://cdn.example.com/default.png")

	require.NoError(t, svc.Delete(context.Background(), userClaims("u1"), "a1"))
	store.AssertExpectations(t)

	_, err := repo.FindByID(context.Background(), "a1")
	assert.ErrorIs(t, err, model.ErrAnnonceNotFound)
}

func TestAnnonceService_DeleteAbortsOnStorageFailure(t *testing.T) {
	repo := newFakeAnnonceStore(model.Annonce{
		ID: "a1", Titre: "Vélo", Description: "Bon état", Image: "a1.png",
		UserID: "u1", Status: model.StatusValidated,
	})
	store := &storage.MockStore{}
	store.On("Remove", mock.Anything, "a1.png").Return(errors.New("bucket unavailable"))

	svc := NewAnnonceService(repo, store, nil, "https://cdn.example.com/default.png")

	err := svc.Delete(context.Background(), userClaims("u1"), "a1")
	require.Error(t, err)

	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "DEPENDENCY_ERROR", apiErr.Code)

	// The row must survive an aborted delete.
	_, err = repo.FindByID(context.Background(), "a1")
	assert.NoError(t, err)
}

func TestAnnonceService_DeleteByNonOwner(t *testing.T) {
	repo := newFakeAnnonceStore(model.Annonce{
		ID: "a1", Titre: "Vélo", Description: "Bon état", Image: model.DefaultImageKey,
		UserID: "u1", Status: model.StatusValidated,
	})
	svc := NewAnnonceService(repo, &storage.MockStore{}, nil, "https://cdn.example.com/default.png")

	err := svc.Delete(context.Background(), userClaims("u2"), "a1")
	assert.ErrorIs(t, err, model.ErrForbidden)
}

func TestAnnonceService_DeleteByAdmin(t *testing.T) {
	repo := newFakeAnnonceStore(model.Annonce{
		ID: "a1", Titre: "Vélo", Description: "Bon état", Image: model.DefaultImageKey,
		UserID: "u1", Status: model.StatusPending,
	})
	svc := NewAnnonceService(repo, &storage.MockStore{}, nil, "https://cdn.example.com/default.png")

	require.NoError(t, svc.Delete(context.Background(), adminClaims(), "a1"))

	_, err := repo.FindByID(context.Background(), "a1")
	assert.ErrorIs(t, err, model.ErrAnnonceNotFound)
}

func TestAnnonceService_ListPublicOnlyValidated(t *testing.T) {
	repo := newFakeAnnonceStore(
		model.Annonce{ID: "a1", UserID: "u1", Status: model.StatusValidated, Image: model.DefaultImageKey},
		model.Annonce{ID: "a2", UserID: "u1", Status: model.StatusPending, Image: model.DefaultImageKey},
		model.Annonce{ID: "a3", UserID: "u2", Status: model.StatusRejected, Image: model.DefaultImageKey},
	)
	svc := NewAnnonceService(repo, &storage.MockStore{}, nil, "https://cdn.example.com/default.png")

	annonces, err := svc.ListPublic(context.Background())
	require.NoError(t, err)
	require.Len(t, annonces, 1)
	assert.Equal(t, "a1", annonces[0].ID)
	assert.Equal(t, "https://cdn.example.com/default.png", annonces[0].ImageURL)
}

func TestAnnonceService_ListOwnIncludesAllStatuses(t *testing.T) {
	repo := newFakeAnnonceStore(
		model.Annonce{ID: "a1", UserID: "u1", Status: model.StatusValidated, Image: model.DefaultImageKey},
		model.Annonce{ID: "a2", UserID: "u1", Status: model.StatusPending, Image: model.DefaultImageKey},
		model.Annonce{ID: "a3", UserID: "u2", Status: model.StatusValidated, Image: model.DefaultImageKey},
	)
	svc := NewAnnonceService(repo, &storage.MockStore{}, nil, "https://cdn.example.com/default.png")

	annonces, err := svc.ListOwn(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, annonces, 2)
}
