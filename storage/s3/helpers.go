package s3

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/finch-technologies/storage-manager/storage/types"
	"github.com/finch-technologies/storage-manager/utils"
)

const defaultPresignedURLTTL = 30 * time.Minute

func getConfig(config ...S3Config) (*S3Config, error) {
	defaultConfig := S3Config{
		Region:          utils.StringOrDefault(os.Getenv("S3_REGION"), "af-south-1"),
		URLMode:         URLModePresigned,
		PresignedURLTTL: defaultPresignedURLTTL,
	}

	if len(config) == 0 {
		return nil, errors.New("no config provided")
	}

	cfg := config[0]

	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	// a public base URL without an explicit mode means public URLs
	if cfg.URLMode == "" && cfg.PublicBaseURL != "" {
		cfg.URLMode = URLModePublic
	}

	utils.MergeObjects(&cfg, defaultConfig)

	if cfg.URLMode == URLModePublic && cfg.PublicBaseURL == "" {
		return nil, errors.New("public URL mode requires a public base URL")
	}

	return &cfg, nil
}

func objectKey(prefix string, ref types.Reference) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ref.FullPath
	}
	return path.Join(prefix, ref.FullPath)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// mapError translates S3 error codes into storage error codes.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return types.Wrap(types.CodeObjectNotFound, err)
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return types.Wrap(types.CodeUnauthorized, err)
	default:
		return types.Wrap(types.ErrorCode(apiErr.ErrorCode()), err)
	}
}
