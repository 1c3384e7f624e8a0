package types

import (
	"context"

	"github.com/finch-technologies/storage-manager/storage/transfer"
)

// UploadOptions controls the metadata attached to an upload. A zero ContentType lets the
// manager detect it from the content.
type UploadOptions struct {
	ContentType        string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	Metadata           map[string]string
}

// Client is the object storage backend. Methods block until the backend completes; the
// manager runs them asynchronously. Errors should be *Error values, or wrap one, so the
// failure category survives; anything else is reported as CodeUnknown.
type Client interface {
	// Root is the reference every path is resolved against.
	Root() Reference
	// PutData stores data at ref. Reads of the body go through m.
	PutData(ctx context.Context, ref Reference, data []byte, md Metadata, m transfer.Meter) error
	// PutFile stores the contents of the local file at ref.
	PutFile(ctx context.Context, ref Reference, localPath string, md Metadata, m transfer.Meter) error
	// DownloadURL returns a URL from which the object can be fetched.
	DownloadURL(ctx context.Context, ref Reference) (string, error)
	// GetData returns the object's bytes, failing with CodeDownloadSizeExceeded when the
	// object is larger than maxBytes.
	GetData(ctx context.Context, ref Reference, maxBytes int64, m transfer.Meter) ([]byte, error)
	// WriteToFile streams the object to localPath, creating parent directories.
	WriteToFile(ctx context.Context, ref Reference, localPath string, m transfer.Meter) error
	// Delete removes the object, failing with CodeObjectNotFound when it does not exist.
	Delete(ctx context.Context, ref Reference) error
	// Stat returns the object's size and metadata.
	Stat(ctx context.Context, ref Reference) (ObjectInfo, error)
}
