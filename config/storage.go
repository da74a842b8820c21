package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const backupKeyPrefix = "db-backups/"

// S3Config holds the S3 client and bucket used for off-site backup copies
type S3Config struct {
	Client     *s3.Client
	BucketName string
}

// NewS3Config initializes the S3 client. It returns nil when no backup bucket is configured,
// in which case backups stay local only.
func NewS3Config(ctx context.Context, cfg *Config) (*S3Config, error) {
	if cfg.BackupS3Bucket == "" {
		return nil, nil
	}

	// Credentials come from the environment or shared config
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Config{
		Client:     s3.NewFromConfig(awsCfg),
		BucketName: cfg.BackupS3Bucket,
	}, nil
}

// UploadBackup copies a local backup file to the bucket under db-backups/<file name>
func (s *S3Config) UploadBackup(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	key := backupKeyPrefix + filepath.Base(path)
	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.BucketName),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentTypeFor(path)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload backup %s: %w", key, err)
	}
	return key, nil
}

// GeneratePresignedURL generates a presigned download URL for an uploaded backup
func (s *S3Config) GeneratePresignedURL(ctx context.Context, objectKey string, expiration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.Client)
	presignedURL, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.BucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", err
	}
	return presignedURL.URL, nil
}

func contentTypeFor(path string) string {
	if filepath.Ext(path) == ".gz" {
		return "application/gzip"
	}
	return "application/sql"
}
