package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/okian/facepace/internal/domain/model"
)

// s3API is the subset of the S3 client used here.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store implements Store on AWS S3 or an S3-compatible endpoint.
type S3Store struct {
	client   s3API
	region   string
	endpoint string
	prefix   string
}

// S3StoreConfig holds configuration for S3Store.
type S3StoreConfig struct {
	Region   string
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
	Prefix   string // optional key prefix
}

// NewS3Store creates an S3-backed store using the default credential chain.
func NewS3Store(ctx context.Context, cfg S3StoreConfig) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg S3StoreConfig) *S3Store {
	return &S3Store{
		client:   client,
		region:   cfg.Region,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		prefix:   cfg.Prefix,
	}
}

// Upload puts the object with its content type.
func (s *S3Store) Upload(ctx context.Context, bucket, key string, blob model.Blob) (string, error) {
	if blob.Empty() {
		return "", ErrEmptyBlob
	}
	if err := checkBucket(bucket); err != nil {
		return "", err
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s.prefix + key),
		Body:          bytes.NewReader(blob.Data),
		ContentLength: aws.Int64(blob.Size()),
	}
	if blob.ContentType != "" {
		in.ContentType = aws.String(blob.ContentType)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 put failed: %w", err)
	}
	return key, nil
}

// PublicURL builds a path-style URL for custom endpoints and a
// virtual-hosted URL for AWS.
func (s *S3Store) PublicURL(_ context.Context, bucket, p string) (string, error) {
	if err := checkBucket(bucket); err != nil {
		return "", err
	}
	p, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	object := escapePath(s.prefix + p)
	if s.endpoint != "" {
		return s.endpoint + "/" + bucket + "/" + object, nil
	}
	if s.region == "" {
		return "", fmt.Errorf("%w: s3 region not set", ErrNoPublicURL)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, object), nil
}
