package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/finch-technologies/storage-manager/storage/transfer"
	"github.com/finch-technologies/storage-manager/storage/types"
)

func newMeter(t *testing.T) *transfer.Controller {
	t.Helper()
	_, ctl := transfer.New(context.Background(), transfer.KindUpload, "test")
	ctl.Start()
	t.Cleanup(func() { ctl.Finish(nil) })
	return ctl
}

func ref(t *testing.T, p string) types.Reference {
	t.Helper()
	r, err := types.Reference{}.Child(p)
	if err != nil {
		t.Fatalf("invalid path %q: %v", p, err)
	}
	return r
}

func TestInit(t *testing.T) {
	tests := []struct {
		name        string
		options     []LocalStorageOptions
		expectError bool
	}{
		{
			name:        "default initialization",
			options:     nil,
			expectError: false,
		},
		{
			name: "custom base path",
			options: []LocalStorageOptions{
				{BasePath: "/tmp/test-storage"},
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := Init(tt.options...)

			if tt.expectError {
				if err == nil {
					t.Error("expected error but got none")
				}
				return
			}

			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}

			if storage == nil {
				t.Error("expected non-nil storage")
				return
			}

			if tt.options == nil {
				wd, _ := os.Getwd()
				expectedPath := wd + "/.storage"
				if storage.BasePath != expectedPath {
					t.Errorf("expected BasePath %s, got %s", expectedPath, storage.BasePath)
				}
			} else {
				if storage.BasePath != tt.options[0].BasePath {
					t.Errorf("expected BasePath %s, got %s", tt.options[0].BasePath, storage.BasePath)
				}
			}
		})
	}
}

func TestReadWrite(t *testing.T) {
	tempDir := t.TempDir()
	storage := &LocalStorage{BasePath: tempDir}
	ctx := context.Background()

	tests := []struct {
		name    string
		path    string
		content []byte
	}{
		{
			name:    "simple file",
			path:    "test.txt",
			content: []byte("hello world"),
		},
		{
			name:    "nested directory",
			path:    "nested/dir/test.txt",
			content: []byte("nested content"),
		},
		{
			name:    "empty file",
			path:    "empty.txt",
			content: []byte(""),
		},
		{
			name:    "binary content",
			path:    "binary.bin",
			content: []byte{0x00, 0x01, 0x02, 0xFF},
		},
		{
			name:    "deeply nested path",
			path:    "a/b/c/d/e/f/g/deep.txt",
			content: []byte("deep content"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ref(t, tt.path)
			md := types.NewMetadata().ContentType("text/plain").Set("case", tt.name).Build()

			if err := storage.PutData(ctx, r, tt.content, md, newMeter(t)); err != nil {
				t.Fatalf("PutData failed: %v", err)
			}

			readContent, err := storage.GetData(ctx, r, 0, newMeter(t))
			if err != nil {
				t.Fatalf("GetData failed: %v", err)
			}

			if string(readContent) != string(tt.content) {
				t.Errorf("content mismatch: expected %q, got %q", tt.content, readContent)
			}

			info, err := storage.Stat(ctx, r)
			if err != nil {
				t.Fatalf("Stat failed: %v", err)
			}
			if info.Size != int64(len(tt.content)) {
				t.Errorf("expected size %d, got %d", len(tt.content), info.Size)
			}
			if info.Metadata.ContentType != "text/plain" || info.Metadata.Custom["case"] != tt.name {
				t.Errorf("metadata not persisted: %+v", info.Metadata)
			}
		})
	}
}

func TestPutFileAndWriteToFile(t *testing.T) {
	storage := &LocalStorage{BasePath: t.TempDir()}
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "src.txt")
	if err := os.WriteFile(src, []byte(strings.Repeat("a", 1000)), 0644); err != nil {
		t.Fatal(err)
	}

	r := ref(t, "copies/src.txt")
	if err := storage.PutFile(ctx, r, src, types.Metadata{}, newMeter(t)); err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "nested", "out.txt")
	meter := newMeter(t)
	if err := storage.WriteToFile(ctx, r, dest, meter); err != nil {
		t.Fatalf("WriteToFile failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1000 {
		t.Errorf("expected 1000 bytes, got %d", len(got))
	}
	if s := meter.Task().Snapshot(); s.Completed != 1000 || s.Total != 1000 {
		t.Errorf("expected 1000/1000 progress, got %d/%d", s.Completed, s.Total)
	}

	if err := storage.PutFile(ctx, r, filepath.Join(t.TempDir(), "missing"), types.Metadata{}, newMeter(t)); err == nil {
		t.Error("expected error for a missing source file")
	}
}

func TestGetDataLimit(t *testing.T) {
	storage := &LocalStorage{BasePath: t.TempDir()}
	ctx := context.Background()
	r := ref(t, "big.bin")

	if err := storage.PutData(ctx, r, make([]byte, 2048), types.Metadata{}, newMeter(t)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		maxBytes int64
		code     types.ErrorCode
	}{
		{name: "no limit", maxBytes: 0},
		{name: "exact limit", maxBytes: 2048},
		{name: "over limit", maxBytes: 1024, code: types.CodeDownloadSizeExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := storage.GetData(ctx, r, tt.maxBytes, newMeter(t))
			if tt.code != "" {
				if types.CodeOf(err) != tt.code {
					t.Errorf("expected %s, got %v", tt.code, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(data) != 2048 {
				t.Errorf("expected 2048 bytes, got %d", len(data))
			}
		})
	}
}

func TestDelete(t *testing.T) {
	tempDir := t.TempDir()
	storage := &LocalStorage{BasePath: tempDir}
	ctx := context.Background()

	testContent := []byte("test content")
	for _, p := range []string{"delete-me.txt", "nested/delete-me.txt", "keep/me.txt"} {
		if err := storage.PutData(ctx, ref(t, p), testContent, types.Metadata{}, newMeter(t)); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}
	}

	tests := []struct {
		name        string
		path        string
		expectError error
	}{
		{
			name: "delete existing file",
			path: "delete-me.txt",
		},
		{
			name: "delete nested file",
			path: "nested/delete-me.txt",
		},
		{
			name:        "delete non-existing file",
			path:        "not-exists.txt",
			expectError: types.ErrObjectNotFound,
		},
		{
			name:        "delete metadata sidecar",
			path:        ".metadata/delete-me.txt.json",
			expectError: types.NewError(types.CodeInvalidArgument, ""),
		},
		{
			name:        "delete emptied directory",
			path:        "nested",
			expectError: types.ErrObjectNotFound,
		},
		{
			name:        "delete directory holding objects",
			path:        "keep",
			expectError: types.ErrObjectNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ref(t, tt.path)
			err := storage.Delete(ctx, r)

			if tt.expectError != nil {
				if !errors.Is(err, tt.expectError) {
					t.Errorf("expected %v, got %v", tt.expectError, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if _, err := storage.Stat(ctx, r); !errors.Is(err, types.ErrObjectNotFound) {
				t.Errorf("file still exists after deletion: %v", err)
			}
			if _, err := os.Stat(storage.metadataPath(r)); !os.IsNotExist(err) {
				t.Error("metadata sidecar still exists after deletion")
			}
		})
	}
}

func TestDirectoriesAreNotObjects(t *testing.T) {
	tempDir := t.TempDir()
	storage := &LocalStorage{BasePath: tempDir}
	ctx := context.Background()

	if err := storage.PutData(ctx, ref(t, "a/b.txt"), []byte("b"), types.Metadata{}, newMeter(t)); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	dir := ref(t, "a")
	dest := filepath.Join(tempDir, "out", "a")

	tests := []struct {
		name string
		call func() error
	}{
		{name: "delete", call: func() error { return storage.Delete(ctx, dir) }},
		{name: "get data", call: func() error { _, err := storage.GetData(ctx, dir, 0, newMeter(t)); return err }},
		{name: "write to file", call: func() error { return storage.WriteToFile(ctx, dir, dest, newMeter(t)) }},
		{name: "download url", call: func() error { _, err := storage.DownloadURL(ctx, dir); return err }},
		{name: "stat", call: func() error { _, err := storage.Stat(ctx, dir); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, types.ErrObjectNotFound) {
				t.Errorf("expected not found, got %v", err)
			}
		})
	}

	if _, err := storage.Stat(ctx, ref(t, "a/b.txt")); err != nil {
		t.Errorf("object below the directory was touched: %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination was created for a directory")
	}
}

func TestDownloadURL(t *testing.T) {
	storage := &LocalStorage{BasePath: t.TempDir()}
	ctx := context.Background()
	r := ref(t, "dir/file name.txt")

	if _, err := storage.DownloadURL(ctx, r); !errors.Is(err, types.ErrObjectNotFound) {
		t.Errorf("expected not found before upload, got %v", err)
	}

	if err := storage.PutData(ctx, r, []byte("x"), types.Metadata{}, newMeter(t)); err != nil {
		t.Fatal(err)
	}

	u, err := storage.DownloadURL(ctx, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/dir/file%20name.txt") {
		t.Errorf("unexpected url %q", u)
	}
}

func TestEdgeCases(t *testing.T) {
	tempDir := t.TempDir()
	storage := &LocalStorage{BasePath: tempDir}
	ctx := context.Background()

	t.Run("read non-existent file", func(t *testing.T) {
		_, err := storage.GetData(ctx, ref(t, "non-existent.txt"), 0, newMeter(t))
		if !errors.Is(err, types.ErrObjectNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("stat non-existent file", func(t *testing.T) {
		_, err := storage.Stat(ctx, ref(t, "non-existent.txt"))
		if !errors.Is(err, types.ErrObjectNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("overwrite keeps latest content", func(t *testing.T) {
		r := ref(t, "overwrite.txt")
		for _, content := range []string{"first", "second"} {
			if err := storage.PutData(ctx, r, []byte(content), types.Metadata{}, newMeter(t)); err != nil {
				t.Fatal(err)
			}
		}
		data, err := storage.GetData(ctx, r, 0, newMeter(t))
		if err != nil || string(data) != "second" {
			t.Errorf("expected second, got %q (%v)", data, err)
		}
	})

	t.Run("no temporary files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(tempDir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".tmp-") {
				t.Errorf("temporary file %s left behind", e.Name())
			}
		}
	})

	t.Run("cancelled transfer fails", func(t *testing.T) {
		task, ctl := transfer.New(context.Background(), transfer.KindUpload, "cancelled.txt")
		ctl.Start()
		task.Cancel()

		err := storage.PutData(ctx, ref(t, "cancelled.txt"), []byte("data"), types.Metadata{}, ctl)
		if types.CodeOf(err) != types.CodeCancelled {
			t.Errorf("expected cancelled, got %v", err)
		}
		if _, err := os.Stat(filepath.Join(tempDir, "cancelled.txt")); !os.IsNotExist(err) {
			t.Error("cancelled upload must not leave a file")
		}
	})
}
