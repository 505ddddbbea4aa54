package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotFound is returned when the requested object does not exist.
var ErrNotFound = errors.New("object not found")

// Client is a thin wrapper around the AWS SDK v2 S3 client. It talks to AWS
// by default and to any S3-compatible endpoint when one is configured.
type Client struct {
	api *s3.Client
}

// Options configures NewClient. Empty fields fall back to the default AWS
// credential chain and endpoint resolution.
type Options struct {
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// OptionsFromEnv reads Options from the environment.
//
// Optional environment variables:
//   - AWS_REGION (default "us-east-1").
//   - S3_ENDPOINT: host:port or full URL of an S3-compatible endpoint.
//   - S3_ACCESS_KEY / S3_SECRET_KEY: static credentials.
//   - S3_DISABLE_TLS (bool; default false) when S3_ENDPOINT has no scheme.
//   - S3_FORCE_PATH_STYLE (bool; default true when S3_ENDPOINT is set).
func OptionsFromEnv() Options {
	opts := Options{
		Region:    os.Getenv("AWS_REGION"),
		Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	if opts.Endpoint != "" {
		opts.ForcePathStyle = true
		if v := strings.TrimSpace(os.Getenv("S3_FORCE_PATH_STYLE")); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				opts.ForcePathStyle = parsed
			}
		}

		disableTLS, _ := strconv.ParseBool(os.Getenv("S3_DISABLE_TLS"))
		scheme := "https"
		if disableTLS {
			scheme = "http"
		}
		if !strings.HasPrefix(opts.Endpoint, "http://") && !strings.HasPrefix(opts.Endpoint, "https://") {
			opts.Endpoint = fmt.Sprintf("%s://%s", scheme, opts.Endpoint)
		}
	}
	return opts
}

// NewClientFromEnv initialises a Client using OptionsFromEnv.
func NewClientFromEnv(ctx context.Context) (*Client, error) {
	return NewClient(ctx, OptionsFromEnv())
}

// NewClient initialises a Client from explicit options.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if (opts.AccessKey == "") != (opts.SecretKey == "") {
		return nil, errors.New("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}

	loaders := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}),
	}
	if opts.Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = opts.ForcePathStyle
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &Client{api: client}, nil
}

// PutObject uploads data to the given bucket/key with checksum metadata.
func (c *Client) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error {
	if c == nil {
		return errors.New("nil client")
	}
	checksum, err := encodeSHA256(sha256)
	if err != nil {
		return err
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            &bucket,
		Key:               &key,
		Body:              r,
		ContentLength:     &size,
		ChecksumAlgorithm: s3types.ChecksumAlgorithmSha256,
		ChecksumSHA256:    &checksum,
		Metadata: map[string]string{
			"sha256": sha256,
		},
	})
	return err
}

// GetObject downloads the whole object. A missing key or bucket yields ErrNotFound.
func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if c == nil {
		return nil, errors.New("nil client")
	}

	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		var noBucket *s3types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, err
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, out.Body); err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	return buf.Bytes(), nil
}

func encodeSHA256(hexDigest string) (string, error) {
	if hexDigest == "" {
		return "", errors.New("sha256 digest required")
	}
	raw, err := hex.DecodeString(hexDigest)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
