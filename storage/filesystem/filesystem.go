package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/finch-technologies/storage-manager/log"
	"github.com/finch-technologies/storage-manager/storage/transfer"
	"github.com/finch-technologies/storage-manager/storage/types"
)

// metadataDir holds the JSON metadata sidecars, one per object.
const metadataDir = ".metadata"

type LocalStorageOptions struct {
	BasePath string
}

type LocalStorage struct {
	BasePath string
}

var _ types.Client = (*LocalStorage)(nil)

func Init(options ...LocalStorageOptions) (*LocalStorage, error) {
	if len(options) > 0 && options[0].BasePath != "" {
		return &LocalStorage{BasePath: options[0].BasePath}, nil
	}
	return GetLocalStorage()
}

func GetLocalStorage() (*LocalStorage, error) {
	basePath, err := os.Getwd()

	if err != nil {
		return nil, err
	}

	return &LocalStorage{BasePath: basePath + "/.storage"}, nil
}

func (s *LocalStorage) Root() types.Reference {
	return types.Reference{}
}

func (s *LocalStorage) objectPath(ref types.Reference) (string, error) {
	if ref.FullPath == metadataDir || strings.HasPrefix(ref.FullPath, metadataDir+"/") {
		return "", types.NewError(types.CodeInvalidArgument, fmt.Sprintf("path %q is reserved", ref.FullPath))
	}
	return filepath.Join(s.BasePath, filepath.FromSlash(ref.FullPath)), nil
}

func (s *LocalStorage) metadataPath(ref types.Reference) string {
	return filepath.Join(s.BasePath, metadataDir, filepath.FromSlash(ref.FullPath)+".json")
}

func (s *LocalStorage) PutData(ctx context.Context, ref types.Reference, data []byte, md types.Metadata, m transfer.Meter) error {
	m.SetTotal(int64(len(data)))
	return s.put(ref, m.Reader(bytes.NewReader(data)), md)
}

func (s *LocalStorage) PutFile(ctx context.Context, ref types.Reference, localPath string, md types.Metadata, m transfer.Meter) error {
	sourceFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open source file %q: %w", localPath, err)
	}
	defer closeFile(sourceFile)

	if info, err := sourceFile.Stat(); err == nil {
		m.SetTotal(info.Size())
	}

	return s.put(ref, m.Reader(sourceFile), md)
}

func (s *LocalStorage) put(ref types.Reference, r io.Reader, md types.Metadata) error {
	filePath, err := s.objectPath(ref)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(filePath, r); err != nil {
		return err
	}

	return s.writeMetadata(ref, md)
}

func (s *LocalStorage) writeMetadata(ref types.Reference, md types.Metadata) error {
	b, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %q: %w", ref.FullPath, err)
	}
	return writeFileAtomic(s.metadataPath(ref), bytes.NewReader(b))
}

func (s *LocalStorage) readMetadata(ref types.Reference) types.Metadata {
	var md types.Metadata

	b, err := os.ReadFile(s.metadataPath(ref))
	if err != nil {
		return md
	}
	if err := json.Unmarshal(b, &md); err != nil {
		log.Warningf("ignoring unreadable metadata for %q: %v", ref.FullPath, err)
	}
	return md
}

// statObject resolves ref to a regular file. Directories are never objects.
func (s *LocalStorage) statObject(ref types.Reference) (string, fs.FileInfo, error) {
	filePath, err := s.objectPath(ref)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return "", nil, mapError(err)
	}
	if info.IsDir() {
		return "", nil, types.NewError(types.CodeObjectNotFound, fmt.Sprintf("%q is a directory", ref.FullPath))
	}

	return filePath, info, nil
}

func (s *LocalStorage) DownloadURL(ctx context.Context, ref types.Reference) (string, error) {
	filePath, _, err := s.statObject(ref)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(filePath)
	if err != nil {
		return "", err
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

func (s *LocalStorage) GetData(ctx context.Context, ref types.Reference, maxBytes int64, m transfer.Meter) ([]byte, error) {
	filePath, _, err := s.statObject(ref)
	if err != nil {
		return nil, err
	}

	sourceFile, err := os.Open(filePath)
	if err != nil {
		return nil, mapError(err)
	}
	defer closeFile(sourceFile)

	info, err := sourceFile.Stat()
	if err != nil {
		return nil, mapError(err)
	}

	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, types.NewError(types.CodeDownloadSizeExceeded,
			fmt.Sprintf("object %q is %d bytes, limit is %d", ref.FullPath, info.Size(), maxBytes))
	}

	m.SetTotal(info.Size())

	var r io.Reader = m.Reader(sourceFile)
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// the file grew after Stat
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, types.NewError(types.CodeDownloadSizeExceeded,
			fmt.Sprintf("object %q exceeds limit of %d bytes", ref.FullPath, maxBytes))
	}

	return data, nil
}

func (s *LocalStorage) WriteToFile(ctx context.Context, ref types.Reference, localPath string, m transfer.Meter) error {
	filePath, _, err := s.statObject(ref)
	if err != nil {
		return err
	}

	sourceFile, err := os.Open(filePath)
	if err != nil {
		return mapError(err)
	}
	defer closeFile(sourceFile)

	if info, err := sourceFile.Stat(); err == nil {
		m.SetTotal(info.Size())
	}

	return writeFileAtomic(localPath, m.Reader(sourceFile))
}

func (s *LocalStorage) Delete(ctx context.Context, ref types.Reference) error {
	filePath, _, err := s.statObject(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		return mapError(err)
	}

	if err := os.Remove(s.metadataPath(ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warningf("failed to remove metadata for %q: %v", ref.FullPath, err)
	}

	return nil
}

func (s *LocalStorage) Stat(ctx context.Context, ref types.Reference) (types.ObjectInfo, error) {
	_, info, err := s.statObject(ref)
	if err != nil {
		return types.ObjectInfo{}, err
	}

	return types.ObjectInfo{
		Path:     ref.FullPath,
		Size:     info.Size(),
		Metadata: s.readMetadata(ref),
		Updated:  info.ModTime(),
	}, nil
}

// writeFileAtomic writes r to a temporary file next to filePath and renames it into place.
func writeFileAtomic(filePath string, r io.Reader) error {
	dir := filepath.Dir(filePath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return mapError(fmt.Errorf("failed to write directory %q: %w", dir, err))
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return mapError(fmt.Errorf("failed to create file in %q: %w", dir, err))
	}

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file %q: %w", filePath, err)
	}

	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		log.Warningf("failed to chmod %q: %v", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(tmp.Name())
		return mapError(fmt.Errorf("failed to write file %q: %w", filePath, err))
	}

	return nil
}

func closeFile(f *os.File) {
	if err := f.Close(); err != nil {
		log.Errorf("failed to close file %q: %v", f.Name(), err)
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return types.Wrap(types.CodeObjectNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return types.Wrap(types.CodeUnauthorized, err)
	default:
		return err
	}
}
