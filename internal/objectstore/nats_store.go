// Package objectstore keeps generated presentation artifacts in a NATS JetStream object store, where
// downstream services such as the TTS worker pick them up by key.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const artifactDescription = "presentation artifact"

// ErrArtifactNotFound indicates that no artifact is stored under the key.
var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore implements core.ArtifactStore on a JetStream object store bucket.
type ArtifactStore struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket, or binds to it when it already exists.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*ArtifactStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Generated outlines and speech scripts (%s).", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &ArtifactStore{bucket: bucketName, store: store}, nil
}

// Get returns the artifact stored under key.
func (a *ArtifactStore) Get(_ context.Context, key string) ([]byte, error) {
	obj, err := a.store.Get(key)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: '%s' in bucket '%s'", ErrArtifactNotFound, key, a.bucket)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get artifact '%s' from bucket '%s': %w", key, a.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read artifact '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close artifact '%s': %w", key, closeErr)
	}

	return data, nil
}

// Put stores data under key, replacing any previous artifact with that key.
func (a *ArtifactStore) Put(_ context.Context, key string, data []byte) error {
	_, err := a.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: artifactDescription,
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to put artifact '%s' to bucket '%s': %w", key, a.bucket, err)
	}

	return nil
}

// Delete removes the artifact stored under key.
func (a *ArtifactStore) Delete(_ context.Context, key string) error {
	err := a.store.Delete(key)
	if errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("%w: '%s' in bucket '%s'", ErrArtifactNotFound, key, a.bucket)
	}

	if err != nil {
		return fmt.Errorf("failed to delete artifact '%s' from bucket '%s': %w", key, a.bucket, err)
	}

	return nil
}
