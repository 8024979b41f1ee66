package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config configures an S3-compatible snapshot mirror.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

// putObjectAPI is the subset of the S3 client used by S3Mirror.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror uploads snapshots to an S3 bucket.
type S3Mirror struct {
	client putObjectAPI
	bucket string
	prefix string
}

// NewS3Mirror creates a mirror using the default AWS credential chain.
// A custom endpoint switches the client to path-style addressing so
// S3-compatible stores such as MinIO work.
func NewS3Mirror(ctx context.Context, cfg S3Config) (*S3Mirror, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("snapshot: s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("snapshot: load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Mirror(client, bucket, cfg.Prefix), nil
}

func newS3Mirror(client putObjectAPI, bucket, prefix string) *S3Mirror {
	return &S3Mirror{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// Bucket returns the target bucket.
func (m *S3Mirror) Bucket() string { return m.bucket }

// Key returns the object key for name.
func (m *S3Mirror) Key(name string) string {
	if m.prefix == "" {
		return name
	}
	return path.Join(m.prefix, name)
}

// Put implements Mirror.
func (m *S3Mirror) Put(ctx context.Context, name, contentType string, data []byte) error {
	key := m.Key(name)
	in := &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := m.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("snapshot: s3 put %s/%s: %w", m.bucket, key, err)
	}
	return nil
}
