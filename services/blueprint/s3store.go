package blueprint

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"uxy/pkg/s3"
)

// ObjectStore is the subset of the S3 client used by S3Store.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
}

// S3Store keeps the blueprint as a JSON object in a bucket.
type S3Store struct {
	objects ObjectStore
	bucket  string
	key     string
}

// NewS3Store returns a store writing s3://bucket/key through objects.
func NewS3Store(objects ObjectStore, bucket, key string) (*S3Store, error) {
	if objects == nil {
		return nil, errors.New("object store is required")
	}
	if bucket == "" || key == "" {
		return nil, errors.New("bucket and key are required")
	}
	return &S3Store{objects: objects, bucket: bucket, key: key}, nil
}

// NewS3StoreFromEnv builds the S3 client from the process environment.
func NewS3StoreFromEnv(ctx context.Context, bucket, key string) (*S3Store, error) {
	client, err := s3.NewClientFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return NewS3Store(client, bucket, key)
}

func (s *S3Store) Load(ctx context.Context, app string) (*Blueprint, error) {
	data, err := s.objects.GetObject(ctx, s.bucket, s.key)
	if err != nil {
		if errors.Is(err, s3.ErrNotFound) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, s.key)
		}
		return nil, fmt.Errorf("fetch blueprint: %w", err)
	}

	var bp Blueprint
	if err := json.Unmarshal(data, &bp); err != nil {
		return nil, fmt.Errorf("decode blueprint: %w", err)
	}
	if bp.Checksums == nil {
		bp.Checksums = map[string]string{}
	}
	if err := bp.Validate(); err != nil {
		return nil, err
	}
	if err := checkOwner(&bp, app); err != nil {
		return nil, err
	}
	return &bp, nil
}

func (s *S3Store) Save(ctx context.Context, bp *Blueprint) error {
	if err := bp.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return fmt.Errorf("encode blueprint: %w", err)
	}
	sum := sha256.Sum256(data)

	if err := s.objects.PutObject(ctx, s.bucket, s.key, bytes.NewReader(data), int64(len(data)), hex.EncodeToString(sum[:])); err != nil {
		return fmt.Errorf("upload blueprint: %w", err)
	}
	return nil
}

func (s *S3Store) Close() error { return nil }
