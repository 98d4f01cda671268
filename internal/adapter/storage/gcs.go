// Package storage implements the object store and the answer-file fetcher.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/fairyhunter13/mainalyze/internal/domain"
)

// GCSStore keeps uploaded answer sheets in one Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

var _ domain.ObjectStore = (*GCSStore)(nil)

// NewGCSStore opens a storage client. When emulatorHost is set the client
// talks to that endpoint without credentials; publicBase defaults to the
// bucket's storage.googleapis.com URL (or the emulator's).
func NewGCSStore(ctx context.Context, bucket, publicBase, emulatorHost string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("op=storage.new: %w: bucket is required", domain.ErrInvalidArgument)
	}
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	if emulatorHost != "" {
		host := strings.TrimRight(emulatorHost, "/")
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		opts = append(opts, option.WithEndpoint(host+"/storage/v1/"), option.WithoutAuthentication())
		if publicBase == "" {
			publicBase = host + "/" + bucket
		}
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("op=storage.new: %w", err)
	}
	return newGCSStore(client, bucket, publicBase), nil
}

func newGCSStore(client *storage.Client, bucket, publicBase string) *GCSStore {
	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}
}

// Put writes r under key with contentType and returns its public URL.
func (s *GCSStore) Put(ctx context.Context, key, contentType string, r io.Reader) (domain.StoredObject, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return domain.StoredObject{}, fmt.Errorf("op=storage.put %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return domain.StoredObject{}, fmt.Errorf("op=storage.put %s: %w", key, err)
	}
	return domain.StoredObject{Key: key, URL: s.PublicURL(key), ContentType: contentType, Size: n}, nil
}

// PublicURL returns the URL under which key is served.
func (s *GCSStore) PublicURL(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.publicBase + "/" + strings.Join(parts, "/")
}

// KeyFromURL reports the object key when ref points into this bucket.
func (s *GCSStore) KeyFromURL(ref string) (string, bool) {
	prefix := s.publicBase + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	rest := strings.TrimPrefix(ref, prefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// Open streams an object and reports its stored content type.
func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", fmt.Errorf("op=storage.open %s: %w", key, domain.ErrNotFound)
		}
		return nil, "", fmt.Errorf("op=storage.open %s: %w", key, err)
	}
	return r, r.Attrs.ContentType, nil
}

// Ping checks that the bucket is reachable.
func (s *GCSStore) Ping(ctx context.Context) error {
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	return err
}

// Close releases the underlying client.
func (s *GCSStore) Close() error { return s.client.Close() }
