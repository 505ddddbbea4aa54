package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/rs/zerolog"
)

// LambdaAPI is the subset of the Lambda client used to update function code.
type LambdaAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
	UpdateFunctionCode(ctx context.Context, params *lambda.UpdateFunctionCodeInput, optFns ...func(*lambda.Options)) (*lambda.UpdateFunctionCodeOutput, error)
}

// ArtifactUploader stores packaged code before Lambda pulls it.
type ArtifactUploader interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, sha256 string) error
}

// UpdateResult describes what FunctionUpdater did.
type UpdateResult struct {
	Skipped    bool
	CodeSha256 string
	Version    string
	S3Key      string
}

// FunctionUpdater replaces the code of a deployed function.
type FunctionUpdater struct {
	lambda   LambdaAPI
	uploader ArtifactUploader
	bucket   string
	logger   zerolog.Logger

	// WaitTimeout bounds the wait for the update to settle. Zero skips waiting.
	WaitTimeout time.Duration
}

// NewFunctionUpdater returns an updater. When bucket is non-empty, archives
// go through uploader; otherwise they are sent inline.
func NewFunctionUpdater(api LambdaAPI, uploader ArtifactUploader, bucket string, logger zerolog.Logger) (*FunctionUpdater, error) {
	if api == nil {
		return nil, errors.New("lambda client is required")
	}
	if bucket != "" && uploader == nil {
		return nil, errors.New("artifact uploader is required when a bucket is set")
	}
	return &FunctionUpdater{lambda: api, uploader: uploader, bucket: bucket, logger: logger}, nil
}

// Update pushes art to the named function unless it already runs that code.
// key names the S3 object when uploads go through a bucket.
func (u *FunctionUpdater) Update(ctx context.Context, name, key string, art Artifact) (UpdateResult, error) {
	if name == "" {
		return UpdateResult{}, errors.New("function name is required")
	}

	current, err := u.lambda.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("get function %s: %w", name, err)
	}
	if current.Configuration != nil && aws.ToString(current.Configuration.CodeSha256) == art.CodeSha256 {
		u.logger.Info().Ctx(ctx).Str("function", name).Msg("function code unchanged, skipping upload")
		return UpdateResult{Skipped: true, CodeSha256: art.CodeSha256, Version: aws.ToString(current.Configuration.Version)}, nil
	}

	input := &lambda.UpdateFunctionCodeInput{FunctionName: aws.String(name)}
	result := UpdateResult{}
	if u.bucket != "" {
		if key == "" {
			return UpdateResult{}, errors.New("artifact key is required")
		}
		if err := u.uploader.PutObject(ctx, u.bucket, key, bytes.NewReader(art.Data), art.Size(), art.SHA256); err != nil {
			return UpdateResult{}, fmt.Errorf("upload artifact s3://%s/%s: %w", u.bucket, key, err)
		}
		input.S3Bucket = aws.String(u.bucket)
		input.S3Key = aws.String(key)
		result.S3Key = key
	} else {
		input.ZipFile = art.Data
	}

	out, err := u.lambda.UpdateFunctionCode(ctx, input)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update function code %s: %w", name, err)
	}
	result.CodeSha256 = aws.ToString(out.CodeSha256)
	result.Version = aws.ToString(out.Version)

	if u.WaitTimeout > 0 {
		waiter := lambda.NewFunctionUpdatedV2Waiter(u.lambda)
		if err := waiter.Wait(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(name)}, u.WaitTimeout); err != nil {
			return UpdateResult{}, fmt.Errorf("wait for function %s: %w", name, err)
		}
	}

	u.logger.Info().Ctx(ctx).Str("function", name).Str("code_sha256", result.CodeSha256).Int64("bytes", art.Size()).Msg("function code updated")
	return result, nil
}
