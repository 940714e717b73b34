package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
}

// fakeS3 is an in-memory S3API for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]fakeObject
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string]fakeObject)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{body: body, contentType: aws.ToString(in.ContentType), metadata: in.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(bytes.NewReader(obj.body)),
		ContentType:  aws.String(obj.contentType),
		LastModified: aws.Time(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
	}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(f.objects[k].body)))})
	}
	return out, nil
}

func TestS3BlobStore(t *testing.T) {
	fake := newFakeS3("reports")
	store := NewS3BlobStoreWithClient(fake, "reports", "/archive/")
	exerciseStore(t, store)

	obj, ok := fake.objects["archive/north/new-patients/2024-01-01_2024-01-31.json"]
	if !ok {
		t.Fatalf("object not written under prefix, have %v", fake.objects)
	}
	if obj.contentType != "application/json" {
		t.Errorf("unexpected content type %q", obj.contentType)
	}
	if obj.metadata["report"] != "new-patients" || len(obj.metadata["sha256"]) != 64 {
		t.Errorf("unexpected metadata %v", obj.metadata)
	}
}

func TestNewS3BlobStore_RequiresBucket(t *testing.T) {
	if _, err := NewS3BlobStore(context.Background(), S3Config{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
