package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/blacktop/pinpost/internal/pinpost"
	"github.com/hashicorp/go-cleanhttp"
)

const defaultRegion = "auto"

// S3Config points at an S3-compatible bucket such as Cloudflare R2.
type S3Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// PathStyle addresses the bucket as endpoint/bucket/key.
	PathStyle bool
}

// S3 stores objects in an S3-compatible bucket.
type S3 struct {
	bucket string
	api    *s3.S3
}

// NewS3 builds an S3 store. Retries are disabled: a failed put fails the
// attempt.
func NewS3(cfg S3Config) (*S3, error) {
	var missing []string
	if strings.TrimSpace(cfg.Bucket) == "" {
		missing = append(missing, "PINPOST_S3_BUCKET")
	}
	if (cfg.AccessKeyID == "") != (cfg.SecretAccessKey == "") {
		missing = append(missing, "PINPOST_S3_ACCESS_KEY_ID", "PINPOST_S3_SECRET_ACCESS_KEY")
	}
	if len(missing) > 0 {
		return nil, pinpost.ConfigurationError{Provider: "s3", Variables: missing}
	}

	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg := aws.NewConfig().
		WithRegion(region).
		WithHTTPClient(cleanhttp.DefaultPooledClient()).
		WithMaxRetries(0).
		WithS3ForcePathStyle(cfg.PathStyle)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create s3 session: %w", err)
	}

	return &S3{bucket: cfg.Bucket, api: s3.New(sess)}, nil
}

// Put uploads body under key with the given content type.
func (s *S3) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}
