package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage uploads export artifacts to object storage and hands out
// short-lived download links.
type Storage struct {
	client *minio.Client
	bucket string
}

// NewStorage connects to the object store and ensures the bucket exists.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Storage{client: client, bucket: bucket}, nil
}

// Upload stores an export artifact under the tenant's prefix and returns
// a presigned URL valid for one hour.
func (s *Storage) Upload(ctx context.Context, tenantID string, result *Result) (string, error) {
	objectName := fmt.Sprintf("%s/%s", tenantID, result.Filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(result.Data), int64(len(result.Data)),
		minio.PutObjectOptions{ContentType: result.MimeType})
	if err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}

	params := make(url.Values)
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	link, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, time.Hour, params)
	if err != nil {
		return "", fmt.Errorf("presign export url: %w", err)
	}
	return link.String(), nil
}
