package types

import (
	"fmt"
	"path"
	"strings"
)

// Reference points at an object, or a prefix, in a backend namespace.
// The zero value is the root.
type Reference struct {
	Bucket   string
	FullPath string
}

// Child resolves a slash-delimited path below r. Duplicate, leading and trailing slashes
// are ignored. Paths that are empty or escape r with ".." are rejected.
func (r Reference) Child(p string) (Reference, error) {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return Reference{}, NewError(CodeInvalidArgument, "remote path is empty")
	}

	for _, segment := range strings.Split(trimmed, "/") {
		if segment == ".." {
			return Reference{}, NewError(CodeInvalidArgument, fmt.Sprintf("remote path %q escapes its root", p))
		}
	}

	cleaned := path.Clean(trimmed)
	if cleaned == "." {
		return Reference{}, NewError(CodeInvalidArgument, fmt.Sprintf("remote path %q is empty", p))
	}

	if r.FullPath != "" {
		cleaned = r.FullPath + "/" + cleaned
	}

	return Reference{Bucket: r.Bucket, FullPath: cleaned}, nil
}

// Name is the last path segment.
func (r Reference) Name() string {
	if r.FullPath == "" {
		return ""
	}
	return path.Base(r.FullPath)
}

// Parent returns the enclosing reference; the root's parent is the root.
func (r Reference) Parent() Reference {
	dir := path.Dir(r.FullPath)
	if dir == "." || dir == "/" {
		dir = ""
	}
	return Reference{Bucket: r.Bucket, FullPath: dir}
}

func (r Reference) IsRoot() bool {
	return r.FullPath == ""
}

func (r Reference) String() string {
	if r.Bucket == "" {
		return "/" + r.FullPath
	}
	return r.Bucket + "/" + r.FullPath
}
