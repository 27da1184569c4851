package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/skinguardian/client/config"
)

var (
	// ErrUnsupportedReference is returned for references the resolver
	// cannot parse.
	ErrUnsupportedReference = errors.New("unsupported image reference")

	// ErrNoBackend is returned when no backend is configured for a
	// reference's scheme.
	ErrNoBackend = errors.New("no storage backend for scheme")
)

// Reference is a parsed image reference from a diagnosis record.
type Reference struct {
	// Scheme is "http", "https", "s3", "minio" or "gs".
	Scheme string
	Bucket string
	Key    string

	// URL is the original reference.
	URL string
}

// Direct reports whether the reference is a browser-fetchable URL.
func (r Reference) Direct() bool {
	return r.Scheme == "http" || r.Scheme == "https"
}

// ParseReference splits an image reference such as s3://bucket/key.
func ParseReference(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrUnsupportedReference, raw)
	}

	ref := Reference{Scheme: strings.ToLower(u.Scheme), URL: raw}
	switch ref.Scheme {
	case "http", "https":
		return ref, nil
	case "s3", "minio", "gs":
		ref.Bucket = u.Host
		ref.Key = strings.TrimPrefix(u.Path, "/")
		if ref.Bucket == "" || ref.Key == "" {
			return Reference{}, fmt.Errorf("%w: %q needs a bucket and a key", ErrUnsupportedReference, raw)
		}
		return ref, nil
	default:
		return Reference{}, fmt.Errorf("%w: scheme %q", ErrUnsupportedReference, u.Scheme)
	}
}

// Object is an open stored image.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
}

// ObjectReader opens objects in one storage backend.
type ObjectReader interface {
	Open(ctx context.Context, bucket, key string) (Object, error)
}

// Resolver opens image references through the backend registered for
// their scheme.
type Resolver struct {
	mu       sync.RWMutex
	backends map[string]ObjectReader
}

// NewResolver returns a resolver with no backends. Only http(s)
// references resolve until backends are registered.
func NewResolver() *Resolver {
	return &Resolver{backends: make(map[string]ObjectReader)}
}

// Register serves scheme with reader.
func (r *Resolver) Register(scheme string, reader ObjectReader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[strings.ToLower(scheme)] = reader
}

// Supports reports whether ref can be streamed by a registered backend.
func (r *Resolver) Supports(ref Reference) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[ref.Scheme]
	return ok
}

// Close releases every registered backend that holds resources. A backend
// registered under several schemes is closed once.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[io.Closer]bool)
	var errs []error
	for _, reader := range r.backends {
		closer, ok := reader.(io.Closer)
		if !ok || seen[closer] {
			continue
		}
		seen[closer] = true
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open streams the object behind ref.
func (r *Resolver) Open(ctx context.Context, ref Reference) (Object, error) {
	if ref.Direct() {
		return Object{}, fmt.Errorf("%w: %s is served directly", ErrNoBackend, ref.Scheme)
	}
	r.mu.RLock()
	reader, ok := r.backends[ref.Scheme]
	r.mu.RUnlock()
	if !ok {
		return Object{}, fmt.Errorf("%w %q", ErrNoBackend, ref.Scheme)
	}
	return reader.Open(ctx, ref.Bucket, ref.Key)
}

// NewResolverFromConfig registers MinIO for s3:// and minio:// references
// when an endpoint is configured, and GCS for gs:// references when any
// GCS setting is present.
func NewResolverFromConfig(ctx context.Context, cfg config.StorageConfig) (*Resolver, error) {
	resolver := NewResolver()

	if strings.TrimSpace(cfg.Minio.Endpoint) != "" {
		minioClient, err := NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("minio: %w", err)
		}
		resolver.Register("s3", minioClient)
		resolver.Register("minio", minioClient)
	}

	if cfg.GCS.Bucket != "" || cfg.GCS.ProjectID != "" || cfg.GCS.CredentialsFile != "" {
		gcsClient, err := NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		resolver.Register("gs", gcsClient)
	}

	return resolver, nil
}
