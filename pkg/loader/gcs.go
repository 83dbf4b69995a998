package loader

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// GCSStore reads objects from one Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSStore creates a store. credentialsFile may be empty to use
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string, opts ...option.ClientOption) (*GCSStore, error) {
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
	}
	return &GCSStore{client: client, bucket: client.Bucket(bucket), name: bucket}, nil
}

// Open implements ObjectStore.
func (s *GCSStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		return nil, gcsError(err, s.name, key, "failed to read object")
	}
	return r, nil
}

// List implements ObjectStore.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := s.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, gcsError(err, s.name, prefix, "failed to list objects")
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Close closes the underlying client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

func gcsError(err error, bucket, key, message string) *errors.Error {
	errType := errors.ErrorTypeFile
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		errType = errors.ErrorTypeNotFound
	}
	return errors.Wrap(err, errType, message).
		WithDetail("bucket", bucket).
		WithDetail("key", key)
}
