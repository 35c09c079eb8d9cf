package blob

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/mitchellh/go-homedir"
	"google.golang.org/api/option"
)

// GCSOptions configures the GCS client. An empty CredentialsFile uses
// application default credentials.
type GCSOptions struct {
	CredentialsFile string
}

type GCSStore struct {
	client *storage.Client
}

func NewGCSStore(ctx context.Context, opts GCSOptions) (*GCSStore, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		path, err := homedir.Expand(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to expand credentials path: %w", err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(path))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

func (s *GCSStore) Put(ctx context.Context, bucket, key string, body io.Reader) error {
	w := s.client.Bucket(bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write gs://%s/%s: %w", bucket, key, err)
	}
	// the object is only committed on Close
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to commit gs://%s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
