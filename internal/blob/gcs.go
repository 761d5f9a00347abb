// Package blob wraps Google Cloud Storage for plan document uploads,
// signed download links, and streamed downloads.
package blob

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Bucket is the storage dependency of document delivery and the download
// endpoint.
type Bucket interface {
	// Upload writes an object with the given content type.
	Upload(ctx context.Context, name string, content []byte, contentType string) error

	// SignedURL returns a time-limited GET URL for an object.
	SignedURL(name string, expiry time.Duration) (string, error)

	// Download reads an object's content.
	Download(ctx context.Context, name string) ([]byte, error)
}

// GCSBucket implements Bucket on a Google Cloud Storage bucket.
type GCSBucket struct {
	client *storage.Client
	bkt    *storage.BucketHandle
	name   string
}

// NewGCSBucket creates a client for the named bucket. Credentials come from
// the options or the application default chain.
func NewGCSBucket(ctx context.Context, bucketName string, opts ...option.ClientOption) (*GCSBucket, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name not set")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		slog.Error("Failed to create GCS client", "error", err)
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	slog.Debug("GCSBucket initialized", "bucket", bucketName)
	return &GCSBucket{client: client, bkt: client.Bucket(bucketName), name: bucketName}, nil
}

// Upload writes the object, replacing any previous content.
func (b *GCSBucket) Upload(ctx context.Context, name string, content []byte, contentType string) error {
	w := b.bkt.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(content); err != nil {
		w.Close()
		slog.Error("GCSBucket.Upload write failed", "error", err, "object", name)
		return fmt.Errorf("failed to write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		slog.Error("GCSBucket.Upload close failed", "error", err, "object", name)
		return fmt.Errorf("failed to finalize object %s: %w", name, err)
	}
	slog.Debug("GCSBucket.Upload succeeded", "object", name, "bytes", len(content))
	return nil
}

// SignedURL returns a V4-signed GET URL valid for the given duration.
func (b *GCSBucket) SignedURL(name string, expiry time.Duration) (string, error) {
	url, err := b.bkt.SignedURL(name, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		slog.Error("GCSBucket.SignedURL failed", "error", err, "object", name)
		return "", fmt.Errorf("failed to sign URL for %s: %w", name, err)
	}
	return url, nil
}

// Download reads the full object content.
func (b *GCSBucket) Download(ctx context.Context, name string) ([]byte, error) {
	r, err := b.bkt.Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", name, err)
	}
	defer r.Close()
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", name, err)
	}
	return content, nil
}

// Verify uploads, signs, and deletes a probe object to confirm the bucket
// is reachable and signable.
func (b *GCSBucket) Verify(ctx context.Context) (string, error) {
	const probe = "healthcheck/probe.txt"
	if err := b.Upload(ctx, probe, []byte("bucket access probe"), "text/plain"); err != nil {
		return "", err
	}
	url, err := b.SignedURL(probe, 5*time.Minute)
	if err != nil {
		return "", err
	}
	if err := b.bkt.Object(probe).Delete(ctx); err != nil {
		slog.Warn("GCSBucket.Verify: probe cleanup failed", "error", err)
	}
	return url, nil
}
