package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobStore persists binary data under a stable public URL.
type BlobStore interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// Client uploads blobs to an S3-compatible object store.
type Client struct {
	mc        *minio.Client
	bucket    string
	publicURL string
}

// NewClient creates a blob client for the given endpoint and bucket.
// publicURL is the base under which uploaded objects are publicly served.
func NewClient(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*Client, error) {
	mc, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}
	return &Client{
		mc:        mc,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload stores data and returns its permanent public URL.
func (c *Client) Upload(ctx context.Context, filename string, data []byte, contentType string) (string, error) {
	_, err := c.mc.PutObject(ctx, c.bucket, filename, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	return c.publicURL + "/" + filename, nil
}

// ObjectName builds the article image filename convention:
// article-{articleId}-{unixMillis}.{ext}.
func ObjectName(articleID uint, contentType string, now time.Time) string {
	ext := "bin"
	switch contentType {
	case "image/png":
		ext = "png"
	case "image/jpeg":
		ext = "jpg"
	case "image/webp":
		ext = "webp"
	}
	return fmt.Sprintf("article-%d-%d.%s", articleID, now.UnixMilli(), ext)
}
