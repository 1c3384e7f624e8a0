package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/finch-technologies/storage-manager/storage/transfer"
)

func TestReferenceChild(t *testing.T) {
	tests := []struct {
		name        string
		root        Reference
		path        string
		expected    string
		expectError bool
	}{
		{name: "simple path", path: "a/b.txt", expected: "a/b.txt"},
		{name: "leading and trailing slashes", path: "/a/b/", expected: "a/b"},
		{name: "duplicate slashes", path: "a//b///c", expected: "a/b/c"},
		{name: "dot segments", path: "a/./b", expected: "a/b"},
		{name: "nested root", root: Reference{Bucket: "b", FullPath: "users"}, path: "1/avatar.png", expected: "users/1/avatar.png"},
		{name: "empty path", path: "", expectError: true},
		{name: "only slashes", path: "///", expectError: true},
		{name: "only dot", path: ".", expectError: true},
		{name: "parent escape", path: "../secret", expectError: true},
		{name: "embedded parent", path: "a/../../b", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := tt.root.Child(tt.path)

			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error, got %+v", ref)
				}
				if CodeOf(err) != CodeInvalidArgument {
					t.Errorf("expected invalid-argument, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.FullPath != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, ref.FullPath)
			}
			if ref.Bucket != tt.root.Bucket {
				t.Errorf("expected bucket %q, got %q", tt.root.Bucket, ref.Bucket)
			}
		})
	}
}

func TestReferenceNavigation(t *testing.T) {
	ref := Reference{Bucket: "media", FullPath: "a/b/c.png"}

	if ref.Name() != "c.png" {
		t.Errorf("expected name c.png, got %q", ref.Name())
	}
	if p := ref.Parent(); p.FullPath != "a/b" || p.Bucket != "media" {
		t.Errorf("unexpected parent %+v", p)
	}
	if root := (Reference{FullPath: "top"}).Parent(); !root.IsRoot() {
		t.Errorf("expected root, got %+v", root)
	}
	if ref.String() != "media/a/b/c.png" {
		t.Errorf("unexpected string %q", ref.String())
	}
	if (Reference{}).Name() != "" {
		t.Error("root has no name")
	}
}

func TestNormalize(t *testing.T) {
	notFound := NewError(CodeObjectNotFound, "gone")

	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{name: "nil", err: nil, expected: ""},
		{name: "storage error", err: notFound, expected: CodeObjectNotFound},
		{name: "wrapped storage error", err: fmt.Errorf("delete: %w", notFound), expected: CodeObjectNotFound},
		{name: "context cancelled", err: context.Canceled, expected: CodeCancelled},
		{name: "transfer cancelled", err: fmt.Errorf("read: %w", transfer.ErrCancelled), expected: CodeCancelled},
		{name: "plain error", err: errors.New("boom"), expected: CodeUnknown},
		{name: "other code", err: NewError("throttled", "slow down"), expected: "throttled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}

			e := Normalize(tt.err)
			if tt.err == nil {
				if e != nil {
					t.Errorf("expected nil, got %v", e)
				}
				return
			}
			if !errors.Is(e, tt.err) && e.Code != CodeUnknown && e.Code != CodeCancelled {
				t.Errorf("normalized error lost its cause: %v", e)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("stat: %w", Wrap(CodeUnauthorized, errors.New("403")))

	if !errors.Is(err, ErrUnauthorized) {
		t.Error("expected errors.Is to match by code")
	}
	if errors.Is(err, ErrObjectNotFound) {
		t.Error("different codes must not match")
	}

	var e *Error
	if !errors.As(err, &e) || e.IsOther() {
		t.Errorf("expected a known code, got %v", e)
	}
	if !NewError(CodeDownloadSizeExceeded, "too big").IsOther() {
		t.Error("download-size-exceeded is an other code")
	}
	if e.Error() != "unauthorized: 403" {
		t.Errorf("unexpected message %q", e.Error())
	}
}

func TestMetadataBuilder(t *testing.T) {
	b := NewMetadata().
		ContentType("text/plain").
		CacheControl("max-age=60").
		ContentLanguage("en").
		Set("owner", "a")

	first := b.Build()

	b.ContentType("image/png").Set("owner", "b").SetAll(map[string]string{"extra": "1"})
	second := b.Build()

	if first.ContentType != "text/plain" || first.Custom["owner"] != "a" {
		t.Errorf("built value changed by later builder calls: %+v", first)
	}
	if _, ok := first.Custom["extra"]; ok {
		t.Error("built value received a later key")
	}
	if second.ContentType != "image/png" || second.Custom["owner"] != "b" || second.Custom["extra"] != "1" {
		t.Errorf("unexpected second value %+v", second)
	}

	cp := second.CustomCopy()
	cp["owner"] = "c"
	if second.Custom["owner"] != "b" {
		t.Error("CustomCopy must not alias the metadata map")
	}

	if empty := NewMetadata().Build(); empty.Custom != nil {
		t.Errorf("expected no custom map, got %v", empty.Custom)
	}
}
