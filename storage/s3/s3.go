package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/finch-technologies/storage-manager/log"
	"github.com/finch-technologies/storage-manager/storage/transfer"
	"github.com/finch-technologies/storage-manager/storage/types"
	"github.com/finch-technologies/storage-manager/utils"
)

type S3Storage struct {
	Client    API
	Presigner Presigner

	Bucket          string
	KeyPrefix       string
	Region          string
	URLMode         URLMode
	PublicBaseURL   string
	PresignedURLTTL time.Duration
}

var _ types.Client = (*S3Storage)(nil)

func New(config ...S3Config) (*S3Storage, error) {
	cfg, err := getConfig(config...)

	if err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(), opts...)

	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
		if os.Getenv("S3_DEBUG") == "true" {
			o.ClientLogMode = aws.LogSigning | aws.LogRequest | aws.LogResponseWithBody
		}
	})

	return NewWithClient(client, s3.NewPresignClient(client), *cfg), nil
}

// NewWithClient builds the storage on an existing client. cfg is used as is.
func NewWithClient(client API, presigner Presigner, cfg S3Config) *S3Storage {
	return &S3Storage{
		Client:          client,
		Presigner:       presigner,
		Bucket:          cfg.Bucket,
		KeyPrefix:       cfg.KeyPrefix,
		Region:          cfg.Region,
		URLMode:         cfg.URLMode,
		PublicBaseURL:   cfg.PublicBaseURL,
		PresignedURLTTL: cfg.PresignedURLTTL,
	}
}

func (s *S3Storage) Root() types.Reference {
	return types.Reference{Bucket: s.Bucket}
}

func (s *S3Storage) key(ref types.Reference) string {
	return objectKey(s.KeyPrefix, ref)
}

func (s *S3Storage) PutData(ctx context.Context, ref types.Reference, data []byte, md types.Metadata, m transfer.Meter) error {
	m.SetTotal(int64(len(data)))
	return s.put(ctx, ref, m.Reader(bytes.NewReader(data)), int64(len(data)), md)
}

func (s *S3Storage) PutFile(ctx context.Context, ref types.Reference, localPath string, md types.Metadata, m transfer.Meter) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", localPath, err)
	}

	m.SetTotal(info.Size())
	return s.put(ctx, ref, m.Reader(f), info.Size(), md)
}

func (s *S3Storage) put(ctx context.Context, ref types.Reference, body io.Reader, size int64, md types.Metadata) error {
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.Bucket),
		Key:                aws.String(s.key(ref)),
		Body:               body,
		ContentLength:      aws.Int64(size),
		ContentType:        optional(md.ContentType),
		CacheControl:       optional(md.CacheControl),
		ContentDisposition: optional(md.ContentDisposition),
		ContentEncoding:    optional(md.ContentEncoding),
		ContentLanguage:    optional(md.ContentLanguage),
		Metadata:           md.CustomCopy(),
	})
	if err != nil {
		return mapError(fmt.Errorf("failed to upload file to S3: %w", err))
	}
	return nil
}

// DownloadURL returns a public or presigned URL depending on URLMode. The object must exist.
func (s *S3Storage) DownloadURL(ctx context.Context, ref types.Reference) (string, error) {
	if _, err := s.head(ctx, ref); err != nil {
		return "", err
	}

	key := s.key(ref)

	if s.URLMode == URLModePublic {
		return strings.TrimRight(s.PublicBaseURL, "/") + "/" + key, nil
	}

	return s.GeneratePresignedURL(ctx, key, s.PresignedURLTTL)
}

// GeneratePresignedURL generates a presigned URL for file access
func (s *S3Storage) GeneratePresignedURL(ctx context.Context, s3Key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultPresignedURLTTL
	}

	request, err := s.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s3Key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = ttl
	})
	if err != nil {
		return "", mapError(fmt.Errorf("failed to generate presigned URL: %w", err))
	}

	return request.URL, nil
}

func (s *S3Storage) get(ctx context.Context, ref types.Reference) (*s3.GetObjectOutput, error) {
	output, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to download file from S3: %w", err))
	}
	return output, nil
}

func (s *S3Storage) GetData(ctx context.Context, ref types.Reference, maxBytes int64, m transfer.Meter) ([]byte, error) {
	output, err := s.get(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer closeBody(output.Body, ref)

	size := aws.ToInt64(output.ContentLength)
	if maxBytes > 0 && size > maxBytes {
		return nil, types.NewError(types.CodeDownloadSizeExceeded,
			fmt.Sprintf("object %q is %d bytes, limit is %d", ref.FullPath, size, maxBytes))
	}

	m.SetTotal(size)

	var r io.Reader = m.Reader(output.Body)
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, mapError(err)
	}

	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, types.NewError(types.CodeDownloadSizeExceeded,
			fmt.Sprintf("object %q exceeds limit of %d bytes", ref.FullPath, maxBytes))
	}

	return data, nil
}

func (s *S3Storage) WriteToFile(ctx context.Context, ref types.Reference, localPath string, m transfer.Meter) error {
	output, err := s.get(ctx, ref)
	if err != nil {
		return err
	}
	defer closeBody(output.Body, ref)

	m.SetTotal(aws.ToInt64(output.ContentLength))

	return utils.WriteFileAtomic(localPath, func(w io.Writer) error {
		if _, err := io.Copy(m.Writer(w), output.Body); err != nil {
			return mapError(err)
		}
		return nil
	})
}

func (s *S3Storage) head(ctx context.Context, ref types.Reference) (*s3.HeadObjectOutput, error) {
	output, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("failed to check if file exists in S3: %w", err))
	}
	return output, nil
}

// Delete removes the object. S3 deletes of missing keys succeed, so existence is checked
// first to report object-not-found.
func (s *S3Storage) Delete(ctx context.Context, ref types.Reference) error {
	if _, err := s.head(ctx, ref); err != nil {
		return err
	}

	_, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		return mapError(fmt.Errorf("failed to delete file from S3: %w", err))
	}

	return nil
}

func (s *S3Storage) Stat(ctx context.Context, ref types.Reference) (types.ObjectInfo, error) {
	output, err := s.head(ctx, ref)
	if err != nil {
		return types.ObjectInfo{}, err
	}

	md := types.NewMetadata().
		ContentType(aws.ToString(output.ContentType)).
		CacheControl(aws.ToString(output.CacheControl)).
		ContentDisposition(aws.ToString(output.ContentDisposition)).
		ContentEncoding(aws.ToString(output.ContentEncoding)).
		ContentLanguage(aws.ToString(output.ContentLanguage)).
		SetAll(output.Metadata).
		Build()

	return types.ObjectInfo{
		Path:     ref.FullPath,
		Size:     aws.ToInt64(output.ContentLength),
		Metadata: md,
		Updated:  aws.ToTime(output.LastModified),
	}, nil
}

func closeBody(body io.ReadCloser, ref types.Reference) {
	if err := body.Close(); err != nil {
		log.Errorf("failed to close S3 body for %q: %v", ref.FullPath, err)
	}
}
