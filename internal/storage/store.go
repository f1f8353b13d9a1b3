// Package storage keeps uploaded study files outside the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/huangang/studyhub/internal/config"
	"github.com/huangang/studyhub/internal/metrics"
)

var (
	ErrNotExist   = errors.New("storage: object does not exist")
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Store reads and writes opaque objects addressed by slash-separated keys.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Driver() string
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case "", "local":
		s, err = NewLocalStore(cfg.BaseDir)
	case "gcs":
		s, err = NewGCSStore(ctx, cfg.Bucket, cfg.Prefix, cfg.CredentialsFile)
	case "s3":
		s, err = NewS3Store(ctx, cfg.Bucket, cfg.Prefix, cfg.Region)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(s, metrics.Default()), nil
}

// validKey rejects keys that could escape the store root.
func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

func joinPrefix(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

type instrumented struct {
	Store
	m *metrics.Metrics
}

// Instrument counts every operation of s in studyhub_storage_operations_total.
func Instrument(s Store, m *metrics.Metrics) Store {
	if m == nil {
		return s
	}
	return &instrumented{Store: s, m: m}
}

func (i *instrumented) observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotExist):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	i.m.StorageOps.WithLabelValues(i.Driver(), op, result).Inc()
}

func (i *instrumented) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	err := i.Store.Put(ctx, key, r, size, contentType)
	i.observe("put", err)
	return err
}

func (i *instrumented) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := i.Store.Open(ctx, key)
	i.observe("open", err)
	return rc, err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	err := i.Store.Delete(ctx, key)
	i.observe("delete", err)
	return err
}

// Close releases the wrapped store's client, if it holds one.
func (i *instrumented) Close() error {
	if c, ok := i.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
