package storage

import (
	"os"
	"time"

	"github.com/finch-technologies/storage-manager/env"
	"github.com/finch-technologies/storage-manager/utils"
)

type StorageType string

const (
	StorageMemory    StorageType = "memory"
	StorageDiskLocal StorageType = "local"
	StorageDiskS3    StorageType = "s3"
	StorageMinio     StorageType = "minio"
)

const (
	// DefaultMaxDownloadBytes caps in-memory downloads at 1 MiB.
	DefaultMaxDownloadBytes int64 = 1 << 20
	DefaultPresignedURLTTL        = 30 * time.Minute
	DefaultRegion                 = "af-south-1"
)

type StorageConfig struct {
	Type      StorageType
	Bucket    string
	Region    string
	KeyPrefix string

	// Endpoint is a custom S3 endpoint or the MinIO host:port.
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool

	// BasePath is the root directory of local storage.
	BasePath string

	// PublicBaseURL makes download URLs public (<base>/<key>) instead of presigned.
	PublicBaseURL   string
	PresignedURLTTL time.Duration

	MaxDownloadBytes int64

	// EventChannel, when set, publishes transfer events to the configured message broker.
	EventChannel string
}

func defaultConfig() StorageConfig {
	return StorageConfig{
		Type:             StorageDiskLocal,
		Region:           utils.StringOrDefault(os.Getenv("AWS_REGION"), DefaultRegion),
		PresignedURLTTL:  DefaultPresignedURLTTL,
		MaxDownloadBytes: DefaultMaxDownloadBytes,
	}
}

func getConfig(config ...StorageConfig) StorageConfig {
	cfg := defaultConfig()

	if len(config) == 0 {
		return cfg
	}

	c := config[0]
	utils.MergeObjects(&c, cfg)

	return c
}

// ConfigFromEnv reads the storage configuration from the environment, loading .env first.
func ConfigFromEnv() StorageConfig {
	env.Load()

	return getConfig(StorageConfig{
		Type:             StorageType(env.GetOrDefault("STORAGE_TYPE", string(StorageDiskLocal))),
		Bucket:           os.Getenv("STORAGE_BUCKET"),
		Region:           os.Getenv("AWS_REGION"),
		KeyPrefix:        os.Getenv("STORAGE_KEY_PREFIX"),
		Endpoint:         os.Getenv("STORAGE_ENDPOINT"),
		AccessKey:        os.Getenv("STORAGE_ACCESS_KEY"),
		SecretKey:        os.Getenv("STORAGE_SECRET_KEY"),
		UseSSL:           utils.StringToBoolOrDefault(os.Getenv("STORAGE_USE_SSL"), false),
		BasePath:         os.Getenv("STORAGE_BASE_PATH"),
		PublicBaseURL:    os.Getenv("STORAGE_PUBLIC_URL"),
		PresignedURLTTL:  utils.ParseDurationOrDefault(os.Getenv("STORAGE_URL_TTL"), 0),
		MaxDownloadBytes: utils.StringToInt64OrDefault(os.Getenv("STORAGE_MAX_DOWNLOAD_BYTES"), 0),
		EventChannel:     os.Getenv("STORAGE_EVENT_CHANNEL"),
	})
}
