package loader

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store reads objects from one S3 bucket.
type S3Store struct {
	client S3API
	bucket string
}

// NewS3Store creates a store using the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	if region != "" {
		optFns = append(optFns, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}
	return NewS3StoreWithClient(s3.NewFromConfig(cfg), bucket), nil
}

// NewS3StoreWithClient creates a store around an existing client.
func NewS3StoreWithClient(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Open implements ObjectStore.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "object not found").
				WithDetail("bucket", s.bucket).
				WithDetail("key", key)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to get object").
			WithDetail("bucket", s.bucket).
			WithDetail("key", key)
	}
	return out.Body, nil
}

// List implements ObjectStore.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to list objects").
				WithDetail("bucket", s.bucket).
				WithDetail("prefix", prefix)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}
