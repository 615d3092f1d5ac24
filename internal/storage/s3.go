package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/rpattn/wastelog/internal/domain"
)

// S3Config addresses an S3-compatible endpoint.
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// S3 fetches objects with the minio SDK.
type S3 struct {
	client *minio.Client
}

var _ ObjectFetcher = (*S3)(nil)

// NewS3 builds a client for cfg. The endpoint may be a bare host or a URL;
// an https scheme forces TLS.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	var creds *credentials.Credentials
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &S3{client: client}, nil
}

func (s *S3) Fetch(ctx context.Context, location domain.FileLocation) ([]byte, error) {
	if location.Bucket == "" || location.Key == "" {
		return nil, fmt.Errorf("%w: bucket and key are required", ErrObjectNotFound)
	}

	object, err := s.client.GetObject(ctx, location.Bucket, location.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(location, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, classify(location, err)
	}
	return data, nil
}

func classify(location domain.FileLocation, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, location.Bucket, location.Key)
	}
	return fmt.Errorf("failed to fetch %s/%s: %w", location.Bucket, location.Key, err)
}
