package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/alphadata/pkg/errors"
)

// fakeS3 serves objects from memory and pages listings two keys at a time.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
	lists   int
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		_, err := fmt.Sscanf(tok, "%d", &start)
		if err != nil {
			return nil, err
		}
	}
	end := min(start+2, len(keys))
	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprint(end))
	}
	return out, nil
}

func fileBytes(t *testing.T, p string) []byte {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return data
}

func newFakeS3(t *testing.T) *fakeS3 {
	dir := t.TempDir()
	return &fakeS3{objects: map[string][]byte{
		"daily/close.parquet":     fileBytes(t, writeDataset(t, dir, "close", ".parquet", "")),
		"daily/volume.arrows.zst": fileBytes(t, writeDataset(t, dir, "volume", ".arrows", ".zst")),
		"daily/open.feather.gz":   fileBytes(t, writeDataset(t, dir, "open", ".feather", ".gz")),
		"daily/notes.txt":         []byte("ignored"),
		"daily/old/close.parquet": []byte("nested, ignored by List"),
		"weekly/close.parquet":    []byte("other prefix"),
	}}
}

func TestObjectLoaderS3(t *testing.T) {
	fake := newFakeS3(t)
	l := NewObjectLoader(NewS3StoreWithClient(fake, "research"), "daily", WithLogger(newTestLogger(t)))

	for _, name := range []string{"close", "volume", "open"} {
		tb, err := l.Load(context.Background(), name)
		require.NoError(t, err, name)
		assertFixture(t, tb)
		tb.Release()
	}
	// one listing and one fetch per dataset
	assert.Equal(t, 3, fake.gets)

	names, err := l.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"close", "open", "volume"}, names)
}

func TestObjectLoaderNotFound(t *testing.T) {
	l := NewObjectLoader(NewS3StoreWithClient(newFakeS3(t), "research"), "daily/")

	_, err := l.Load(context.Background(), "high")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	_, err = l.Load(context.Background(), "../weekly/close")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}

func TestS3StoreNoSuchKey(t *testing.T) {
	store := NewS3StoreWithClient(&fakeS3{objects: map[string][]byte{}}, "research")
	_, err := store.Open(context.Background(), "missing.parquet")
	require.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "object not found")
}

// vanishingStore lists a key that it then fails to open.
type vanishingStore struct{ openErr error }

func (s vanishingStore) Open(context.Context, string) (io.ReadCloser, error) { return nil, s.openErr }

func (s vanishingStore) List(_ context.Context, prefix string) ([]string, error) {
	return []string{prefix + "parquet"}, nil
}

func TestObjectLoaderPropagatesStoreErrors(t *testing.T) {
	gone := errors.New(errors.ErrorTypeNotFound, "object not found")
	_, err := NewObjectLoader(vanishingStore{gone}, "").Load(context.Background(), "close")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	_, err = NewObjectLoader(vanishingStore{io.ErrUnexpectedEOF}, "").Load(context.Background(), "close")
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestGCSErrorMapping(t *testing.T) {
	err := gcsError(storage.ErrObjectNotExist, "bucket", "close.parquet", "failed to read object")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Equal(t, "bucket", err.Details["bucket"])

	err = gcsError(io.ErrClosedPipe, "bucket", "close.parquet", "failed to read object")
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
