package storage

import (
	"context"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/skinguardian/client/config"
	"google.golang.org/api/option"
)

// GCSClient reads images from Google Cloud Storage.
type GCSClient struct {
	client *storage.Client
	bucket string
}

// NewGCSClient constructs a GCS client from config. Without a credentials
// file the application default credentials are used.
func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &GCSClient{client: client, bucket: cfg.Bucket}, nil
}

// Open opens an object for reading.
func (g *GCSClient) Open(ctx context.Context, bucket, key string) (Object, error) {
	if bucket == "" {
		bucket = g.bucket
	}
	reader, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return Object{}, err
	}
	return Object{
		Body:        reader,
		ContentType: reader.Attrs.ContentType,
		Size:        reader.Attrs.Size,
	}, nil
}

// Close releases the underlying client.
func (g *GCSClient) Close() error {
	return g.client.Close()
}
