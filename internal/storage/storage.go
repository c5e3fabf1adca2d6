// Package storage talks to the external object-storage service holding
// annonce images. The service exposes a Supabase-style REST surface:
// objects live under /storage/v1/object/{bucket}/{key} and public reads
// under /storage/v1/object/public/{bucket}/{key}.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type ObjectStore interface {
	Upload(ctx context.Context, key string, contentType string, body io.Reader) error
	Remove(ctx context.Context, key string) error
	PublicURL(key string) string
}

type Client struct {
	baseURL string
	apiKey  string
	bucket  string
	http    *http.Client
}

func New(baseURL string, apiKey string, bucket string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("storage base URL is required")
	}

	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse storage base URL: %w", err)
	}

	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		bucket:  bucket,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) Upload(ctx context.Context, key string, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(key), body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload object %q: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload object %q: unexpected status %d", key, resp.StatusCode)
	}

	return nil
}

func (c *Client) Remove(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("build remove request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	defer resp.Body.Close()

	// A missing object is already in the desired state.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remove object %q: unexpected status %d", key, resp.StatusCode)
	}

	return nil
}

func (c *Client) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, url.PathEscape(key))
}

func (c *Client) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, url.PathEscape(key))
}
