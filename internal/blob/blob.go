// Package blob provides the object storage collaborators the pipeline writes
// to. A destination is addressed by URI: s3://bucket/prefix,
// gs://bucket/prefix or file:///local/dir.
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store writes objects into a bucket.
type Store interface {
	Put(ctx context.Context, bucket, key string, body io.Reader) error
	Close() error
}

const (
	SchemeS3   = "s3"
	SchemeGCS  = "gs"
	SchemeFile = "file"
)

// Location is a parsed destination URI.
type Location struct {
	Scheme string
	Bucket string // for file locations this is the local directory
	Prefix string
}

// ParseLocation parses a destination URI.
func ParseLocation(uri string) (Location, error) {
	uri = strings.TrimSpace(uri)
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("invalid storage URI %q: %w", uri, err)
	}

	switch u.Scheme {
	case SchemeS3, SchemeGCS:
		if u.Host == "" {
			return Location{}, fmt.Errorf("storage URI %q has no bucket", uri)
		}
		return Location{
			Scheme: u.Scheme,
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		}, nil
	case SchemeFile:
		if u.Path == "" {
			return Location{}, fmt.Errorf("storage URI %q has no directory", uri)
		}
		return Location{Scheme: SchemeFile, Bucket: filepath.FromSlash(u.Path)}, nil
	default:
		return Location{}, fmt.Errorf("unsupported storage scheme %q in %q", u.Scheme, uri)
	}
}

// Key returns the object key for name under the location prefix.
func (l Location) Key(name string) string {
	if l.Prefix == "" {
		return name
	}
	return path.Join(l.Prefix, name)
}

func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return "file://" + filepath.ToSlash(l.Bucket)
	}
	if l.Prefix == "" {
		return l.Scheme + "://" + l.Bucket
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
}

// Options carries backend credentials and endpoints.
type Options struct {
	S3  S3Options
	GCS GCSOptions
}

// Open returns the store serving the location's scheme.
func Open(ctx context.Context, loc Location, opts Options) (Store, error) {
	switch loc.Scheme {
	case SchemeS3:
		return NewS3Store(ctx, opts.S3)
	case SchemeGCS:
		return NewGCSStore(ctx, opts.GCS)
	case SchemeFile:
		return NewFSStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage scheme %q", loc.Scheme)
	}
}

// PutFile streams a local file into the location under its base name and
// returns the key written. The local file is left in place.
func PutFile(ctx context.Context, store Store, localPath string, loc Location) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	key := loc.Key(filepath.Base(localPath))
	if err := store.Put(ctx, loc.Bucket, key, f); err != nil {
		return "", err
	}
	return key, nil
}
