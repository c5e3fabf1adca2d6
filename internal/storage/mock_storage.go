package storage

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Upload(ctx context.Context, key string, contentType string, body io.Reader) error {
	args := m.Called(ctx, key, contentType, body)
	return args.Error(0)
}

func (m *MockStore) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}
