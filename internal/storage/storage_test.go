package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/skinguardian/client/config"
)

func TestParseReference(t *testing.T) {
	cases := []struct {
		raw    string
		scheme string
		bucket string
		key    string
		direct bool
	}{
		{"https://cdn.example.com/img/1.jpg", "https", "", "", true},
		{"http://localhost:9000/x.png", "http", "", "", true},
		{"s3://skinguardian-images/abc", "s3", "skinguardian-images", "abc", false},
		{"minio://lesions/2024/05/img.jpg", "minio", "lesions", "2024/05/img.jpg", false},
		{"gs://bucket/path/to/obj", "gs", "bucket", "path/to/obj", false},
		{"S3://Bucket/key", "s3", "Bucket", "key", false},
	}
	for _, tc := range cases {
		ref, err := ParseReference(tc.raw)
		if err != nil {
			t.Fatalf("%s: %v", tc.raw, err)
		}
		if ref.Scheme != tc.scheme || ref.Bucket != tc.bucket || ref.Key != tc.key || ref.Direct() != tc.direct {
			t.Fatalf("%s: unexpected reference %+v", tc.raw, ref)
		}
	}
}

func TestParseReferenceRejects(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://host/file", "s3://bucket-only", "gs:///key"} {
		if _, err := ParseReference(raw); !errors.Is(err, ErrUnsupportedReference) {
			t.Fatalf("%q: expected ErrUnsupportedReference, got %v", raw, err)
		}
	}
}

type memoryReader map[string]string

func (m memoryReader) Open(_ context.Context, bucket, key string) (Object, error) {
	data, ok := m[bucket+"/"+key]
	if !ok {
		return Object{}, errors.New("no such object")
	}
	return Object{
		Body:        io.NopCloser(strings.NewReader(data)),
		ContentType: "image/jpeg",
		Size:        int64(len(data)),
	}, nil
}

func TestResolverOpen(t *testing.T) {
	resolver := NewResolver()
	resolver.Register("S3", memoryReader{"images/abc": "jpeg-bytes"})

	ref, _ := ParseReference("s3://images/abc")
	if !resolver.Supports(ref) {
		t.Fatalf("s3 should be supported")
	}
	obj, err := resolver.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer obj.Body.Close()
	data, _ := io.ReadAll(obj.Body)
	if string(data) != "jpeg-bytes" || obj.ContentType != "image/jpeg" {
		t.Fatalf("unexpected object %q %q", data, obj.ContentType)
	}

	gs, _ := ParseReference("gs://images/abc")
	if _, err := resolver.Open(context.Background(), gs); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}

	direct, _ := ParseReference("https://example.com/a.jpg")
	if _, err := resolver.Open(context.Background(), direct); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("direct references are not streamed, got %v", err)
	}
}

func TestResolverFromConfig(t *testing.T) {
	resolver, err := NewResolverFromConfig(context.Background(), config.StorageConfig{})
	if err != nil {
		t.Fatalf("empty config: %v", err)
	}
	ref, _ := ParseReference("s3://b/k")
	if resolver.Supports(ref) {
		t.Fatalf("no backend expected without configuration")
	}

	resolver, err = NewResolverFromConfig(context.Background(), config.StorageConfig{
		Minio: config.MinioConfig{Endpoint: "localhost:9000", AccessKey: "minio", SecretKey: "minio123", Bucket: "images"},
	})
	if err != nil {
		t.Fatalf("minio config: %v", err)
	}
	minioRef, _ := ParseReference("minio://images/k")
	if !resolver.Supports(ref) || !resolver.Supports(minioRef) {
		t.Fatalf("minio should serve s3 and minio references")
	}

	_, err = NewResolverFromConfig(context.Background(), config.StorageConfig{
		Minio: config.MinioConfig{Endpoint: "localhost:9000"},
	})
	if err == nil {
		t.Fatalf("expected missing keys error")
	}
}

type closingReader struct {
	closed int
}

func (c *closingReader) Open(context.Context, string, string) (Object, error) {
	return Object{}, errors.New("not used")
}

func (c *closingReader) Close() error {
	c.closed++
	return nil
}

func TestResolverCloseReleasesBackendsOnce(t *testing.T) {
	shared := &closingReader{}
	other := &closingReader{}
	resolver := NewResolver()
	resolver.Register("s3", shared)
	resolver.Register("minio", shared)
	resolver.Register("gs", other)

	if err := resolver.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if shared.closed != 1 || other.closed != 1 {
		t.Fatalf("expected each backend closed once, got shared=%d other=%d", shared.closed, other.closed)
	}
}
