package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config addresses a bucket and key prefix. Endpoint and UsePathStyle
// support S3-compatible servers.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
}

// S3API is the subset of the S3 client used by S3BlobStore.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3BlobStore keeps blobs in an S3 bucket under a prefix.
type S3BlobStore struct {
	client S3API
	bucket string
	prefix string
}

// NewS3BlobStore loads the default AWS credential chain. The region falls
// back to AWS_REGION and then us-east-1.
func NewS3BlobStore(ctx context.Context, cfg S3Config) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 archive: bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3BlobStoreWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3BlobStoreWithClient wraps an existing client.
func NewS3BlobStoreWithClient(client S3API, bucket, prefix string) *S3BlobStore {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &S3BlobStore{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3BlobStore) objectKey(key string) string { return s.prefix + key }

func (s *S3BlobStore) Put(ctx context.Context, meta BlobMetadata, content []byte) (*BlobMetadata, error) {
	meta, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}
	md := map[string]string{"sha256": meta.Hash}
	for k, v := range meta.Tags {
		md[k] = v
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(meta.Key)),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(meta.ContentType),
		Metadata:    md,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 put %s: %w", meta.Key, err)
	}
	return &meta, nil
}

func (s *S3BlobStore) Get(ctx context.Context, key string) ([]byte, *BlobMetadata, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return nil, nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("s3 get %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxBlobSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("s3 read %s: %w", key, err)
	}
	meta := BlobMetadata{Key: key, ContentType: aws.ToString(out.ContentType)}
	if out.LastModified != nil {
		meta.CreatedAt = out.LastModified.UTC()
	}
	meta, err = prepare(meta, data)
	if err != nil {
		return nil, nil, err
	}
	return data, &meta, nil
}

func (s *S3BlobStore) List(ctx context.Context, prefix string) ([]*BlobMetadata, error) {
	out := make([]*BlobMetadata, 0)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.objectKey(prefix)),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			meta := &BlobMetadata{
				Key:         key,
				ContentType: contentTypeFor(path.Base(key)),
				Size:        aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				meta.CreatedAt = obj.LastModified.UTC()
			}
			out = append(out, meta)
		}
	}
	return out, nil
}
