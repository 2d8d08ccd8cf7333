package transport

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"courier/internal/config"
	"courier/internal/services"
)

// ObjectPutter is the subset of *s3.Client used for a delivery.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 delivers files to an S3-compatible bucket.
type S3 struct {
	cfg    config.S3
	client ObjectPutter
}

// NewS3 loads AWS credentials from the default chain and builds a client
// honoring a custom endpoint and path-style addressing.
func NewS3(ctx context.Context, cfg config.S3) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "s3", "new", "bucket is required", nil)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewS3WithClient(cfg, client), nil
}

// NewS3WithClient wires a prebuilt client.
func NewS3WithClient(cfg config.S3, client ObjectPutter) *S3 {
	return &S3{cfg: cfg, client: client}
}

// Name identifies the transport in logs.
func (s *S3) Name() string { return "s3" }

// Deliver uploads req.LocalPath to prefix/batch/type/name.
func (s *S3) Deliver(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	key := strings.TrimPrefix(RemotePath(s.cfg.Prefix, req.BatchID, req.FileType, req.FileName), "/")

	file, err := os.Open(req.LocalPath)
	if err != nil {
		return Result{}, transportError(s.Name(), "open source", err)
	}
	defer file.Close()

	contentType := mime.TypeByExtension(path.Ext(req.FileName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	size := sourceSize(file, req.Size)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          newProgressReader(file, size, progress),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return Result{}, transportError(s.Name(), "put object", err)
	}
	return Result{RemotePath: key, RemoteURL: fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key)}, nil
}
