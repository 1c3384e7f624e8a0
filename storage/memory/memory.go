// Package memory is an in-process storage backend. It keeps objects in a map and is used
// for tests and local development; errors can be injected per operation with FailNext.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/finch-technologies/storage-manager/storage/transfer"
	"github.com/finch-technologies/storage-manager/storage/types"
	"github.com/finch-technologies/storage-manager/utils"
)

const DefaultBucket = "memory"

type Op string

const (
	OpPut         Op = "put"
	OpDownloadURL Op = "download_url"
	OpGet         Op = "get"
	OpDelete      Op = "delete"
	OpStat        Op = "stat"
)

type object struct {
	data     []byte
	metadata types.Metadata
	updated  time.Time
}

type failure struct {
	op   Op
	path string
}

type Storage struct {
	bucket string

	mu       sync.RWMutex
	objects  map[string]object
	failures map[failure]error
	calls    map[Op]int
}

var _ types.Client = (*Storage)(nil)

func New(bucket ...string) *Storage {
	b := DefaultBucket
	if len(bucket) > 0 && bucket[0] != "" {
		b = bucket[0]
	}

	return &Storage{
		bucket:   b,
		objects:  map[string]object{},
		failures: map[failure]error{},
		calls:    map[Op]int{},
	}
}

func (s *Storage) Root() types.Reference {
	return types.Reference{Bucket: s.bucket}
}

// FailNext makes the next op on remotePath fail with err.
func (s *Storage) FailNext(op Op, remotePath string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[failure{op: op, path: remotePath}] = err
}

// Calls returns how many times op was invoked.
func (s *Storage) Calls(op Op) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// Put stores an object directly, bypassing any transfer.
func (s *Storage) Put(remotePath string, data []byte, md types.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[remotePath] = object{data: bytes.Clone(data), metadata: md, updated: time.Now()}
}

// Object returns a copy of the stored bytes and metadata.
func (s *Storage) Object(remotePath string) ([]byte, types.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[remotePath]
	if !ok {
		return nil, types.Metadata{}, false
	}
	md := o.metadata
	md.Custom = o.metadata.CustomCopy()
	return bytes.Clone(o.data), md, true
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *Storage) begin(op Op, ref types.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[op]++

	key := failure{op: op, path: ref.FullPath}
	if err, ok := s.failures[key]; ok {
		delete(s.failures, key)
		return err
	}
	return nil
}

func (s *Storage) lookup(ref types.Reference) (object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[ref.FullPath]
	if !ok {
		return object{}, notFound(ref)
	}
	return o, nil
}

func (s *Storage) PutData(ctx context.Context, ref types.Reference, data []byte, md types.Metadata, m transfer.Meter) error {
	if err := s.begin(OpPut, ref); err != nil {
		return err
	}

	m.SetTotal(int64(len(data)))
	return s.store(ref, m.Reader(bytes.NewReader(data)), md)
}

func (s *Storage) PutFile(ctx context.Context, ref types.Reference, localPath string, md types.Metadata, m transfer.Meter) error {
	if err := s.begin(OpPut, ref); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", localPath, err)
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		m.SetTotal(info.Size())
	}

	return s.store(ref, m.Reader(f), md)
}

func (s *Storage) store(ref types.Reference, r io.Reader, md types.Metadata) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}

	s.Put(ref.FullPath, buf.Bytes(), md)
	return nil
}

func (s *Storage) DownloadURL(ctx context.Context, ref types.Reference) (string, error) {
	if err := s.begin(OpDownloadURL, ref); err != nil {
		return "", err
	}
	if _, err := s.lookup(ref); err != nil {
		return "", err
	}
	return fmt.Sprintf("mem://%s/%s", s.bucket, ref.FullPath), nil
}

func (s *Storage) GetData(ctx context.Context, ref types.Reference, maxBytes int64, m transfer.Meter) ([]byte, error) {
	if err := s.begin(OpGet, ref); err != nil {
		return nil, err
	}

	o, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}

	if maxBytes > 0 && int64(len(o.data)) > maxBytes {
		return nil, types.NewError(types.CodeDownloadSizeExceeded,
			fmt.Sprintf("object %q is %d bytes, limit is %d", ref.FullPath, len(o.data), maxBytes))
	}

	m.SetTotal(int64(len(o.data)))

	var buf bytes.Buffer
	if _, err := io.Copy(m.Writer(&buf), bytes.NewReader(o.data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Storage) WriteToFile(ctx context.Context, ref types.Reference, localPath string, m transfer.Meter) error {
	if err := s.begin(OpGet, ref); err != nil {
		return err
	}

	o, err := s.lookup(ref)
	if err != nil {
		return err
	}

	m.SetTotal(int64(len(o.data)))

	return utils.WriteFileAtomic(localPath, func(w io.Writer) error {
		_, err := io.Copy(m.Writer(w), bytes.NewReader(o.data))
		return err
	})
}

func (s *Storage) Delete(ctx context.Context, ref types.Reference) error {
	if err := s.begin(OpDelete, ref); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[ref.FullPath]; !ok {
		return notFound(ref)
	}
	delete(s.objects, ref.FullPath)
	return nil
}

func (s *Storage) Stat(ctx context.Context, ref types.Reference) (types.ObjectInfo, error) {
	if err := s.begin(OpStat, ref); err != nil {
		return types.ObjectInfo{}, err
	}

	o, err := s.lookup(ref)
	if err != nil {
		return types.ObjectInfo{}, err
	}

	md := o.metadata
	md.Custom = o.metadata.CustomCopy()

	return types.ObjectInfo{
		Path:     ref.FullPath,
		Size:     int64(len(o.data)),
		Metadata: md,
		Updated:  o.updated,
	}, nil
}

func notFound(ref types.Reference) error {
	return types.NewError(types.CodeObjectNotFound, fmt.Sprintf("object %q not found", ref.FullPath))
}
