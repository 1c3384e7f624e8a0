package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/finch-technologies/storage-manager/events"
	"github.com/finch-technologies/storage-manager/log"
	"github.com/finch-technologies/storage-manager/metrics"
	"github.com/finch-technologies/storage-manager/pubsub"
	"github.com/finch-technologies/storage-manager/sentry"
	"github.com/finch-technologies/storage-manager/storage/filesystem"
	"github.com/finch-technologies/storage-manager/storage/memory"
	"github.com/finch-technologies/storage-manager/storage/minio"
	"github.com/finch-technologies/storage-manager/storage/s3"
	"github.com/finch-technologies/storage-manager/storage/transfer"
	"github.com/finch-technologies/storage-manager/storage/types"
	"github.com/finch-technologies/storage-manager/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/finch-technologies/storage-manager/storage"

var (
	fmMu sync.Mutex
	fm   *Manager
)

// Init creates the package Manager with a backend chosen by config.Type.
func Init(config ...StorageConfig) (*Manager, error) {
	cfg := getConfig(config...)

	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	opts := ManagerOptions{
		MaxDownloadBytes: cfg.MaxDownloadBytes,
		Reporter:         sentry.Init(),
	}

	if cfg.EventChannel != "" {
		broker, err := pubsub.GetBroker()
		if err != nil {
			log.Warningf("transfer events disabled: %v", err)
		} else {
			opts.Publisher = events.NewPublisher(broker, cfg.EventChannel)
		}
	}

	m := New(client, opts)

	fmMu.Lock()
	fm = m
	fmMu.Unlock()

	return m, nil
}

// GetManager returns the package Manager, initialising it from the environment on first use.
func GetManager() (*Manager, error) {
	fmMu.Lock()
	m := fm
	fmMu.Unlock()

	if m == nil {
		return Init(ConfigFromEnv())
	}

	return m, nil
}

func newClient(cfg StorageConfig) (types.Client, error) {
	switch cfg.Type {
	case StorageDiskS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		log.Debugf("Using S3 storage: %s", cfg.Bucket)
		client, err := s3.New(s3.S3Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			KeyPrefix:       cfg.KeyPrefix,
			Endpoint:        cfg.Endpoint,
			AccessKey:       cfg.AccessKey,
			SecretKey:       cfg.SecretKey,
			PublicBaseURL:   cfg.PublicBaseURL,
			PresignedURLTTL: cfg.PresignedURLTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 storage: %w", err)
		}
		return client, nil
	case StorageMinio:
		log.Debugf("Using MinIO storage: %s/%s", cfg.Endpoint, cfg.Bucket)
		client, err := minio.New(context.Background(), minio.Config{
			Endpoint:        cfg.Endpoint,
			AccessKey:       cfg.AccessKey,
			SecretKey:       cfg.SecretKey,
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			UseSSL:          cfg.UseSSL,
			KeyPrefix:       cfg.KeyPrefix,
			PublicBaseURL:   cfg.PublicBaseURL,
			PresignedURLTTL: cfg.PresignedURLTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create minio storage: %w", err)
		}
		return client, nil
	case StorageMemory:
		log.Debug("Using in-memory storage")
		return memory.New(cfg.Bucket), nil
	case StorageDiskLocal:
		log.Debugf("Using local storage: %s", cfg.BasePath)
		client, err := filesystem.Init(filesystem.LocalStorageOptions{BasePath: cfg.BasePath})
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}

type ManagerOptions struct {
	Logger log.LoggerInterface
	// Metrics must have the metrics.StorageMetrics registered.
	Metrics   metrics.Collector
	Publisher *events.Publisher
	Tracer    trace.Tracer
	// Reporter receives unexpected failures. Nil disables reporting.
	Reporter *sentry.Reporter
	// MaxDownloadBytes is the default cap of in-memory downloads.
	MaxDownloadBytes int64
}

// Manager uploads, downloads and deletes objects through a backend Client.
// Every call resolves its own reference from the backend root and builds its own
// metadata, so one Manager can serve any number of concurrent operations.
type Manager struct {
	client           types.Client
	logger           log.LoggerInterface
	metrics          metrics.Collector
	publisher        *events.Publisher
	tracer           trace.Tracer
	reporter         *sentry.Reporter
	maxDownloadBytes int64
}

func New(client types.Client, options ...ManagerOptions) *Manager {
	var opts ManagerOptions
	if len(options) > 0 {
		opts = options[0]
	}

	m := &Manager{
		client:           client,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
		publisher:        opts.Publisher,
		tracer:           opts.Tracer,
		reporter:         opts.Reporter,
		maxDownloadBytes: utils.Int64OrDefault(opts.MaxDownloadBytes, DefaultMaxDownloadBytes),
	}

	if m.logger == nil {
		m.logger = log.Default()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(tracerName)
	}

	return m
}

func (m *Manager) Client() types.Client {
	return m.client
}

func (m *Manager) MaxDownloadBytes() int64 {
	return m.maxDownloadBytes
}

// Upload stores data at remotePath and resolves with the object's download URL.
// The task is nil when remotePath is invalid; the future then holds the failure.
// data is copied, so the caller may reuse the buffer once Upload returns.
func (m *Manager) Upload(ctx context.Context, data []byte, remotePath string, options ...types.UploadOptions) (*transfer.Task, *Future[string]) {
	opts := getUploadOptions(options...)
	data = bytes.Clone(data)

	return runTransfer(m, ctx, opUpload, transfer.KindUpload, remotePath, transferSteps[string]{
		move: func(ctx context.Context, ref types.Reference, ctl transfer.Meter) error {
			md := buildMetadata(opts, func() string { return detectContentType(data) })
			ctl.SetTotal(int64(len(data)))
			return m.client.PutData(ctx, ref, data, md, ctl)
		},
		complete: m.downloadURL,
	})
}

// UploadFile stores the local file at remotePath and resolves with the object's download URL.
func (m *Manager) UploadFile(ctx context.Context, localPath string, remotePath string, options ...types.UploadOptions) (*transfer.Task, *Future[string]) {
	if localPath == "" {
		return nil, failed[string](m, ctx, opUploadFile, remotePath, types.NewError(types.CodeInvalidArgument, "local path is empty"))
	}

	opts := getUploadOptions(options...)

	return runTransfer(m, ctx, opUploadFile, transfer.KindUpload, remotePath, transferSteps[string]{
		move: func(ctx context.Context, ref types.Reference, ctl transfer.Meter) error {
			md := buildMetadata(opts, func() string { return detectFileContentType(localPath) })
			if info, err := os.Stat(localPath); err == nil {
				ctl.SetTotal(info.Size())
			}
			return m.client.PutFile(ctx, ref, localPath, md, ctl)
		},
		complete: m.downloadURL,
	})
}

func (m *Manager) downloadURL(ctx context.Context, ref types.Reference) (string, error) {
	return m.client.DownloadURL(ctx, ref)
}

// DownloadData fetches the object into memory. maxBytes defaults to the manager's cap.
func (m *Manager) DownloadData(ctx context.Context, remotePath string, maxBytes ...int64) (*transfer.Task, *Future[[]byte]) {
	limit := m.limit(maxBytes...)

	var data []byte
	return runTransfer(m, ctx, opDownloadData, transfer.KindDownload, remotePath, transferSteps[[]byte]{
		move: func(ctx context.Context, ref types.Reference, ctl transfer.Meter) error {
			b, err := m.client.GetData(ctx, ref, limit, ctl)
			data = b
			return err
		},
		complete: func(context.Context, types.Reference) ([]byte, error) {
			return data, nil
		},
	})
}

// DownloadImage fetches the object into memory and decodes it. Undecodable data fails
// with types.CodeDecode.
func (m *Manager) DownloadImage(ctx context.Context, remotePath string, maxBytes ...int64) (*transfer.Task, *Future[Image]) {
	limit := m.limit(maxBytes...)

	var data []byte
	return runTransfer(m, ctx, opDownloadImage, transfer.KindDownload, remotePath, transferSteps[Image]{
		move: func(ctx context.Context, ref types.Reference, ctl transfer.Meter) error {
			b, err := m.client.GetData(ctx, ref, limit, ctl)
			data = b
			return err
		},
		complete: func(context.Context, types.Reference) (Image, error) {
			return decodeImage(data)
		},
	})
}

// DownloadToFile writes the object to localPath and resolves with localPath.
func (m *Manager) DownloadToFile(ctx context.Context, remotePath string, localPath string) (*transfer.Task, *Future[string]) {
	if localPath == "" {
		return nil, failed[string](m, ctx, opDownloadFile, remotePath, types.NewError(types.CodeInvalidArgument, "local path is empty"))
	}

	return runTransfer(m, ctx, opDownloadFile, transfer.KindDownload, remotePath, transferSteps[string]{
		move: func(ctx context.Context, ref types.Reference, ctl transfer.Meter) error {
			return m.client.WriteToFile(ctx, ref, localPath, ctl)
		},
		complete: func(context.Context, types.Reference) (string, error) {
			return localPath, nil
		},
	})
}

// Delete removes the object at remotePath. A missing object fails with types.CodeObjectNotFound.
func (m *Manager) Delete(ctx context.Context, remotePath string) *Future[struct{}] {
	return runOperation(m, ctx, opDelete, remotePath, func(ctx context.Context, ref types.Reference) (struct{}, error) {
		return struct{}{}, m.client.Delete(ctx, ref)
	})
}

// Stat resolves with the object's size and metadata.
func (m *Manager) Stat(ctx context.Context, remotePath string) *Future[types.ObjectInfo] {
	return runOperation(m, ctx, opStat, remotePath, func(ctx context.Context, ref types.Reference) (types.ObjectInfo, error) {
		return m.client.Stat(ctx, ref)
	})
}

// DownloadURL resolves with a URL for an existing object.
func (m *Manager) DownloadURL(ctx context.Context, remotePath string) *Future[string] {
	return runOperation(m, ctx, opDownloadURL, remotePath, m.downloadURL)
}

func (m *Manager) limit(maxBytes ...int64) int64 {
	if len(maxBytes) > 0 {
		return utils.Int64OrDefault(maxBytes[0], m.maxDownloadBytes)
	}
	return m.maxDownloadBytes
}

func (m *Manager) record(ctx context.Context, op, remotePath string, err error, elapsed time.Duration, bytes int64) {
	outcome := "success"
	if err != nil {
		outcome = string(types.CodeOf(err))
	}

	metrics.RecordStorageOperation(ctx, m.metrics, op, outcome, elapsed.Seconds(), bytes)

	fields := map[string]any{
		"operation": op,
		"path":      remotePath,
		"duration":  elapsed.String(),
	}

	if err != nil {
		fields["code"] = outcome
		fields["error"] = err.Error()
		m.logger.ErrorFields("storage operation failed", fields)
		return
	}

	fields["bytes"] = bytes
	m.logger.DebugFields("storage operation completed", fields)
}
