package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"photopipe/internal/domain"
)

type s3PutAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store stores objects in Amazon S3 and issues presigned GET URLs.
type S3Store struct {
	client    s3PutAPI
	presigner s3PresignAPI
}

// NewS3Store builds an S3Store from an SDK client.
func NewS3Store(client *s3.Client) *S3Store {
	return &S3Store{client: client, presigner: s3.NewPresignClient(client)}
}

func (s *S3Store) Put(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(bucket) == "" {
		return "", fmt.Errorf("storage: bucket is required: %w", domain.ErrInvalidRequest)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(cleanKey),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", mapS3Error(bucket, "put object", err)
	}
	return cleanKey, nil
}

func (s *S3Store) Sign(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", errors.New("storage: ttl must be positive")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapS3Error(bucket, "presign", err)
	}
	return req.URL, nil
}

// mapS3Error translates SDK errors into domain sentinels. A missing bucket is
// permanent; everything else is treated as transient.
func mapS3Error(bucket, op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchBucket" {
		return fmt.Errorf("storage: S3 bucket %s does not exist: %w", bucket, domain.ErrBucketNotFound)
	}
	return fmt.Errorf("storage: S3 %s failed: %w: %v", op, domain.ErrTransient, err)
}

var _ domain.ObjectStore = (*S3Store)(nil)
