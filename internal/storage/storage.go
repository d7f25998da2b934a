package storage

import (
	"context"
	"fmt"
	"io"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// AvatarStore keeps user avatars in object storage, one object per user.
type AvatarStore struct {
	backend ObjectStorage
}

// NewAvatarStore constructs an AvatarStore over the provided backend.
func NewAvatarStore(backend ObjectStorage) *AvatarStore {
	return &AvatarStore{backend: backend}
}

// Key returns the storage key for a user's avatar.
func (s *AvatarStore) Key(userID int) string {
	return fmt.Sprintf("avatars/%d", userID)
}

// EnsureBucket ensures the configured bucket exists.
func (s *AvatarStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put stores the user's avatar, replacing any previous one.
func (s *AvatarStore) Put(ctx context.Context, userID int, r io.Reader, size int64, contentType string) (string, error) {
	key := s.Key(userID)
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Get opens a reader for the user's avatar.
func (s *AvatarStore) Get(ctx context.Context, userID int) (io.ReadCloser, error) {
	return s.backend.Get(ctx, s.Key(userID))
}

// Delete removes the user's avatar.
func (s *AvatarStore) Delete(ctx context.Context, userID int) error {
	return s.backend.Delete(ctx, s.Key(userID))
}

// Bucket returns the configured bucket name.
func (s *AvatarStore) Bucket() string {
	return s.backend.Bucket()
}
