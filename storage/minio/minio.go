// Package minio is the storage backend for MinIO and other S3-compatible services.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/finch-technologies/storage-manager/log"
	"github.com/finch-technologies/storage-manager/storage/transfer"
	"github.com/finch-technologies/storage-manager/storage/types"
	"github.com/finch-technologies/storage-manager/utils"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const defaultPresignedURLTTL = 30 * time.Minute

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	KeyPrefix string

	// PublicBaseURL, when set, is used for download URLs instead of presigning.
	PublicBaseURL   string
	PresignedURLTTL time.Duration

	// CreateBucket creates the bucket on start if it does not exist.
	CreateBucket bool
}

type MinioStorage struct {
	client     *minio.Client
	bucket     string
	keyPrefix  string
	publicBase string
	ttl        time.Duration
}

var _ types.Client = (*MinioStorage)(nil)

func getConfig(config ...Config) (Config, error) {
	if len(config) == 0 {
		return Config{}, errors.New("no config provided")
	}

	cfg := config[0]

	if cfg.Endpoint == "" {
		return Config{}, errors.New("endpoint is required")
	}
	if cfg.Bucket == "" {
		return Config{}, errors.New("bucket is required")
	}

	cfg.PresignedURLTTL = utils.DurationOrDefault(cfg.PresignedURLTTL, defaultPresignedURLTTL)
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	cfg.KeyPrefix = strings.Trim(cfg.KeyPrefix, "/")

	return cfg, nil
}

func New(ctx context.Context, config ...Config) (*MinioStorage, error) {
	cfg, err := getConfig(config...)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if cfg.CreateBucket {
		exists, err := client.BucketExists(ctx, cfg.Bucket)
		if err != nil {
			return nil, fmt.Errorf("check bucket existence: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
				return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
			}
			log.Infof("storage: created bucket %q", cfg.Bucket)
		}
	}

	return newStorage(client, cfg), nil
}

func newStorage(client *minio.Client, cfg Config) *MinioStorage {
	return &MinioStorage{
		client:     client,
		bucket:     cfg.Bucket,
		keyPrefix:  cfg.KeyPrefix,
		publicBase: cfg.PublicBaseURL,
		ttl:        cfg.PresignedURLTTL,
	}
}

func (s *MinioStorage) Root() types.Reference {
	return types.Reference{Bucket: s.bucket}
}

func (s *MinioStorage) key(ref types.Reference) string {
	if s.keyPrefix == "" {
		return ref.FullPath
	}
	return path.Join(s.keyPrefix, ref.FullPath)
}

func putOptions(md types.Metadata) minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType:        md.ContentType,
		CacheControl:       md.CacheControl,
		ContentDisposition: md.ContentDisposition,
		ContentEncoding:    md.ContentEncoding,
		ContentLanguage:    md.ContentLanguage,
		UserMetadata:       md.CustomCopy(),
	}
}

func (s *MinioStorage) PutData(ctx context.Context, ref types.Reference, data []byte, md types.Metadata, m transfer.Meter) error {
	m.SetTotal(int64(len(data)))
	return s.put(ctx, ref, m.Reader(bytes.NewReader(data)), int64(len(data)), md)
}

func (s *MinioStorage) PutFile(ctx context.Context, ref types.Reference, localPath string, md types.Metadata, m transfer.Meter) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %q: %w", localPath, err)
	}

	m.SetTotal(info.Size())
	return s.put(ctx, ref, m.Reader(f), info.Size(), md)
}

func (s *MinioStorage) put(ctx context.Context, ref types.Reference, r io.Reader, size int64, md types.Metadata) error {
	key := s.key(ref)
	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, putOptions(md)); err != nil {
		return mapError(fmt.Errorf("put object %q: %w", key, err))
	}
	return nil
}

// PublicURL returns the browser-accessible URL for key.
func (s *MinioStorage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

func (s *MinioStorage) DownloadURL(ctx context.Context, ref types.Reference) (string, error) {
	if _, err := s.stat(ctx, ref); err != nil {
		return "", err
	}

	key := s.key(ref)

	if s.publicBase != "" {
		return s.PublicURL(key), nil
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.ttl, url.Values{})
	if err != nil {
		return "", mapError(fmt.Errorf("presign %q: %w", key, err))
	}
	return u.String(), nil
}

func (s *MinioStorage) open(ctx context.Context, ref types.Reference) (*minio.Object, minio.ObjectInfo, error) {
	key := s.key(ref)

	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minio.ObjectInfo{}, mapError(fmt.Errorf("get object %q: %w", key, err))
	}

	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, minio.ObjectInfo{}, mapError(fmt.Errorf("get object %q: %w", key, err))
	}

	return obj, info, nil
}

func (s *MinioStorage) GetData(ctx context.Context, ref types.Reference, maxBytes int64, m transfer.Meter) ([]byte, error) {
	obj, info, err := s.open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	if maxBytes > 0 && info.Size > maxBytes {
		return nil, types.NewError(types.CodeDownloadSizeExceeded,
			fmt.Sprintf("object %q is %d bytes, limit is %d", ref.FullPath, info.Size, maxBytes))
	}

	m.SetTotal(info.Size)

	data, err := io.ReadAll(m.Reader(obj))
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

func (s *MinioStorage) WriteToFile(ctx context.Context, ref types.Reference, localPath string, m transfer.Meter) error {
	obj, info, err := s.open(ctx, ref)
	if err != nil {
		return err
	}
	defer obj.Close()

	m.SetTotal(info.Size)

	return utils.WriteFileAtomic(localPath, func(w io.Writer) error {
		if _, err := io.Copy(m.Writer(w), obj); err != nil {
			return mapError(err)
		}
		return nil
	})
}

func (s *MinioStorage) stat(ctx context.Context, ref types.Reference) (minio.ObjectInfo, error) {
	key := s.key(ref)

	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, mapError(fmt.Errorf("stat object %q: %w", key, err))
	}
	return info, nil
}

// Delete removes the object. RemoveObject succeeds for missing keys, so the object is
// looked up first.
func (s *MinioStorage) Delete(ctx context.Context, ref types.Reference) error {
	if _, err := s.stat(ctx, ref); err != nil {
		return err
	}

	key := s.key(ref)
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapError(fmt.Errorf("remove object %q: %w", key, err))
	}
	return nil
}

func (s *MinioStorage) Stat(ctx context.Context, ref types.Reference) (types.ObjectInfo, error) {
	info, err := s.stat(ctx, ref)
	if err != nil {
		return types.ObjectInfo{}, err
	}

	return types.ObjectInfo{
		Path:     ref.FullPath,
		Size:     info.Size,
		Metadata: objectMetadata(info),
		Updated:  info.LastModified,
	}, nil
}

func objectMetadata(info minio.ObjectInfo) types.Metadata {
	return types.NewMetadata().
		ContentType(info.ContentType).
		CacheControl(info.Metadata.Get("Cache-Control")).
		ContentDisposition(info.Metadata.Get("Content-Disposition")).
		ContentEncoding(info.Metadata.Get("Content-Encoding")).
		ContentLanguage(info.Metadata.Get("Content-Language")).
		SetAll(info.UserMetadata).
		Build()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var resp minio.ErrorResponse
	if !errors.As(err, &resp) || resp.Code == "" {
		return err
	}

	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return types.Wrap(types.CodeObjectNotFound, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return types.Wrap(types.CodeUnauthorized, err)
	default:
		return types.Wrap(types.ErrorCode(resp.Code), err)
	}
}
