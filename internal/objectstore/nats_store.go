// Package objectstore implements core.ObjectStore on top of NATS JetStream
// object storage. Text inputs and synthesized audio for async jobs live in
// separate buckets managed through this package.
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

// Store is a single-bucket NATS object store.
type Store struct {
	bucket string
	store  nats.ObjectStore
}

// New creates the bucket when it does not exist yet, otherwise binds to it.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*Store, error) {
	store, createErr := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("kokoro-serve %s bucket", bucketName),
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if createErr != nil {
		if !errors.Is(createErr, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, createErr)
		}

		var bindErr error

		store, bindErr = jetstreamContext.ObjectStore(bucketName)
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind to object store bucket '%s': %w", bucketName, bindErr)
		}
	}

	return &Store{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves an object by key. The context bounds the transfer,
// so a canceled job does not keep pulling bytes.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	obj, getErr := s.store.Get(key, nats.Context(ctx))
	if getErr != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, s.bucket, getErr)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload stores data under key, bounded by the context.
func (s *Store) Upload(ctx context.Context, key string, data []byte) error {
	_, putErr := s.store.Put(&nats.ObjectMeta{Name: key}, bytes.NewReader(data), nats.Context(ctx))
	if putErr != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, s.bucket, putErr)
	}

	return nil
}
