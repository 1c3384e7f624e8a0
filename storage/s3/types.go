package s3

import (
	"context"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type URLMode string

const (
	// URLModePresigned returns time-limited presigned GET URLs.
	URLModePresigned URLMode = "presigned"
	// URLModePublic returns <PublicBaseURL>/<key>.
	URLModePublic URLMode = "public"
)

type S3Config struct {
	Bucket    string
	Region    string
	KeyPrefix string

	// Endpoint targets an S3-compatible service instead of AWS.
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool

	URLMode         URLMode
	PublicBaseURL   string
	PresignedURLTTL time.Duration
}

// API is the subset of *s3.Client used by S3Storage.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}
