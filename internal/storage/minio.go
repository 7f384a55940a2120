// Package storage fetches uploaded PDFs from object storage.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/veriscan/veriscan/internal/errdefs"
)

// Client wraps a MinIO connection. Buckets are chosen per call; PDF
// uploads land in buckets the caller names in the request.
type Client struct {
	client *minio.Client
}

// Config holds the connection settings.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// NewClient connects to object storage.
func NewClient(cfg Config) (*Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: connect: %w", err)
	}
	return &Client{client: client}, nil
}

// ObjectExists reports whether the object is present.
func (c *Client) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, errdefs.New(errdefs.KindUnavailable, "storage.stat", err)
	}
	return true, nil
}

// DownloadObject fetches the full object body.
func (c *Client) DownloadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errdefs.New(errdefs.KindUnavailable, "storage.download", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, errdefs.Newf(errdefs.KindNotFound, "storage.download",
				"object %s/%s not found", bucket, key)
		}
		return nil, errdefs.New(errdefs.KindUnavailable, "storage.download", err)
	}
	return data, nil
}

// Ping verifies the endpoint is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.ListBuckets(ctx)
	if err != nil {
		return errdefs.New(errdefs.KindUnavailable, "storage.ping", err)
	}
	return nil
}
