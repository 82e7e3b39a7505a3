// Package publish uploads finished model artifacts to an S3-compatible
// object store. The returned public URL is what gets bound to the run's
// ARK, so published objects must never be rewritten or removed.
package publish

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/openheritage/arkmesh/pkg/config"
)

// Publisher wraps the object-store client used for archived run artifacts.
type Publisher struct {
	client *minio.Client
	cfg    config.PublishConfig
}

// New constructs a Publisher from config.
func New(cfg config.PublishConfig) (*Publisher, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse publish endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init publish client: %w", err)
	}

	return &Publisher{client: client, cfg: cfg}, nil
}

// EnsureBucket creates the artifact bucket when missing.
func (p *Publisher) EnsureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", p.cfg.Bucket, err)
	}
	if !exists {
		if err := p.client.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", p.cfg.Bucket, err)
		}
	}
	return nil
}

// PublishModel uploads a run artifact and returns its permanent public URL.
func (p *Publisher) PublishModel(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "model/gltf-binary"
	}
	if _, err := p.client.PutObject(ctx, p.cfg.Bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("publish model %s: %w", objectName, err)
	}
	return fmt.Sprintf("%s/%s/%s",
		strings.TrimRight(p.cfg.PublicBaseURL, "/"), p.cfg.Bucket, objectName), nil
}
