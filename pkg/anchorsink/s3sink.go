package anchorsink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Sink uploads external-anchor payloads to
// "s3://<bucket>/<prefix><id>.json" so an operator can forward the
// object to an off-system notary.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3SinkConfig configures NewS3Sink.
type S3SinkConfig struct {
	Bucket   string
	Region   string
	Prefix   string // e.g. "anchors/"
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
}

// NewS3Sink builds an S3Sink from the default AWS credential chain.
func NewS3Sink(ctx context.Context, cfg S3SinkConfig) (*S3Sink, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("anchorsink: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Put uploads payload under the sink's bucket/prefix and returns the S3
// key used.
func (s *S3Sink) Put(ctx context.Context, id string, payload []byte) (string, error) {
	key := fmt.Sprintf("%s%s.json", s.prefix, id)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(payload),
	})
	if err != nil {
		return "", fmt.Errorf("anchorsink: s3 put %s: %w", key, err)
	}
	return key, nil
}
