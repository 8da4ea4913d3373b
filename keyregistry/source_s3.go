package keyregistry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Source reads the signer configuration from an S3 (or compatible) object.
// Credentials come from the default AWS provider chain.
type S3Source struct {
	client      *s3.S3
	bucket      string
	key         string
	log         *slog.Logger
	locationURI string
}

// NewS3Source creates a source for bucket/key. endpoint may be empty.
func NewS3Source(bucket, key, region, endpoint string, log *slog.Logger) (*S3Source, error) {
	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucket, key, region)
	if endpoint != "" {
		uri += "&endpoint=" + url.QueryEscape(endpoint)
	}

	return &S3Source{
		client:      s3.New(sess),
		bucket:      bucket,
		key:         key,
		log:         log,
		locationURI: uri,
	}, nil
}

// newS3SourceFromURL handles s3://bucket/key?region=...&endpoint=...
func newS3SourceFromURL(u *url.URL, log *slog.Logger) (*S3Source, error) {
	bucket := u.Host
	key := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 config source needs bucket and key: %s", u.Redacted())
	}

	region := u.Query().Get("region")
	if region == "" {
		region = "us-east-1"
	}

	return NewS3Source(bucket, key, region, u.Query().Get("endpoint"), log)
}

func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signer config from s3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read signer config object: %w", err)
	}

	s.log.Debug("Fetched signer config from S3",
		slog.String("bucket", s.bucket),
		slog.String("key", s.key),
		slog.Int("size", len(data)))
	return data, nil
}

func (s *S3Source) LocationURI() string {
	return s.locationURI
}
