package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
}

func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("gcs store: bucket not set")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs store: create client: %w", err)
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket), prefix: prefix}, nil
}

func (s *GCSStore) Driver() string { return "gcs" }

func (s *GCSStore) object(key string) (*storage.ObjectHandle, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	return s.bucket.Object(joinPrefix(s.prefix, key)), nil
}

func (s *GCSStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	obj, err := s.object(key)
	if err != nil {
		return err
	}
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("gcs store: write %s: %w", key, err)
	}
	return w.Close()
}

func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.object(key)
	if err != nil {
		return nil, err
	}
	rc, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotExist
	}
	return rc, err
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	obj, err := s.object(key)
	if err != nil {
		return err
	}
	err = obj.Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotExist
	}
	return err
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
