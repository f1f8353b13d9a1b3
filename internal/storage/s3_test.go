package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

func TestIsS3NotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, true},
		{"head not found", &smithy.GenericAPIError{Code: "NotFound"}, true},
		{"typed no such key", &s3types.NoSuchKey{}, true},
		{"wrapped", fmt.Errorf("get object: %w", &smithy.GenericAPIError{Code: "NoSuchKey"}), true},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, false},
		{"plain error", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isS3NotFound(tt.err); got != tt.want {
				t.Errorf("isS3NotFound() = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestS3Store_Key(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
		err    error
	}{
		{"", "study-1/a.pdf", "study-1/a.pdf", nil},
		{"uploads/", "study-1/a.pdf", "uploads/study-1/a.pdf", nil},
		{"/uploads", "study-1/a.pdf", "uploads/study-1/a.pdf", nil},
		{"uploads", "../a.pdf", "", ErrInvalidKey},
		{"uploads", "", "", ErrInvalidKey},
	}
	for _, tt := range tests {
		s := &S3Store{bucket: "b", prefix: tt.prefix}
		got, err := s.key(tt.key)
		if !errors.Is(err, tt.err) {
			t.Errorf("key(%q) error = %v, expected %v", tt.key, err, tt.err)
			continue
		}
		if err == nil && *got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, expected %q", tt.key, tt.prefix, *got, tt.want)
		}
	}
}

func TestS3Store_RejectsInvalidKeyBeforeRequest(t *testing.T) {
	// client is nil, so reaching the SDK would panic
	s := &S3Store{bucket: "b"}
	ctx := context.Background()
	if _, err := s.Open(ctx, "a/../../b"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Open() error = %v, expected ErrInvalidKey", err)
	}
	if err := s.Delete(ctx, "/abs"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Delete() error = %v, expected ErrInvalidKey", err)
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), "", "", "us-east-1"); err == nil {
		t.Error("NewS3Store() with empty bucket returned no error")
	}
}
