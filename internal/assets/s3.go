package assets

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

// S3Store implements Store backed by an S3-compatible service.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	baseURL  string
}

// NewS3Store configures a client and uploader targeting the provided object store.
func NewS3Store(ctx context.Context, cfg config.ObjectStore) (*S3Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 assets: bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 8 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	base := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Store{client: client, uploader: uploader, bucket: cfg.Bucket, baseURL: base}, nil
}

// Upload streams the file at localPath to the bucket under a fresh key.
func (s *S3Store) Upload(ctx context.Context, localPath string) (asset models.Asset, err error) {
	defer func() { metrics.AssetOperations.WithLabelValues("upload", metrics.Outcome(err)).Inc() }()

	f, err := os.Open(localPath)
	if err != nil {
		return models.Asset{}, fmt.Errorf("s3 assets: open %s: %w", localPath, err)
	}
	defer f.Close()

	key := objectKey(localPath)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
		ACL:    s3types.ObjectCannedACLPublicRead,
	}
	if ct := mime.TypeByExtension(filepath.Ext(localPath)); ct != "" {
		input.ContentType = aws.String(ct)
	}
	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return models.Asset{}, fmt.Errorf("s3 assets upload %s: %w", key, err)
	}

	return models.Asset{URL: s.baseURL + "/" + key, AssetID: key}, nil
}

// Delete removes the object stored under assetID.
func (s *S3Store) Delete(ctx context.Context, assetID string) (err error) {
	defer func() { metrics.AssetOperations.WithLabelValues("delete", metrics.Outcome(err)).Inc() }()

	if strings.TrimSpace(assetID) == "" {
		return fmt.Errorf("s3 assets: empty asset id: %w", ErrNotFound)
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(assetID),
	})
	if err != nil {
		return fmt.Errorf("s3 assets delete %s: %w", assetID, err)
	}
	return nil
}

var _ Store = (*S3Store)(nil)
