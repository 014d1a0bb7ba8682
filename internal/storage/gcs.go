package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSUploader struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

// NewGCSUploader uses the service account key at credentialsFile, or the
// application default credentials when it is empty. publicBase overrides the
// default https://storage.googleapis.com/<bucket> URL prefix.
func NewGCSUploader(ctx context.Context, bucket, credentialsFile, publicBase string) (*GCSUploader, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key not found at %s: %w", credentialsFile, err)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return &GCSUploader{client: client, bucket: bucket, publicBase: PublicBase(bucket, publicBase)}, nil
}

// PublicBase is the URL prefix objects of bucket are served from.
func PublicBase(bucket, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	return "https://storage.googleapis.com/" + bucket
}

func (u *GCSUploader) Upload(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	} else {
		w.ContentType = "application/octet-stream"
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copying to gs://%s/%s: %w", u.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing gs://%s/%s: %w", u.bucket, key, err)
	}
	return u.publicBase + "/" + key, nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
