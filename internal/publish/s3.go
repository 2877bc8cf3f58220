// Package publish uploads finished issue archives to object storage.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectPutter is the subset of the S3 client used here.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Publisher writes archives to <prefix><run id>/<archive name>.
type S3Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3 loads the default AWS credential chain for region.
func NewS3(ctx context.Context, bucket, prefix, region string) (*S3Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewS3With(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3With wraps an existing client.
func NewS3With(client ObjectPutter, bucket, prefix string) *S3Publisher {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Publisher{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for an archive of runID.
func (p *S3Publisher) Key(runID, archivePath string) string {
	return path.Join(p.prefix+runID, filepath.Base(archivePath))
}

// Publish uploads the archive and returns its s3:// URI.
func (p *S3Publisher) Publish(ctx context.Context, runID, archivePath string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	key := p.Key(runID, archivePath)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/zip"),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", p.bucket, key), nil
}
