package types

import (
	"maps"
	"time"
)

// Metadata is attached to an object on upload. Values are built with MetadataBuilder and
// are not modified after being handed to a backend.
type Metadata struct {
	ContentType        string            `json:"contentType,omitempty"`
	CacheControl       string            `json:"cacheControl,omitempty"`
	ContentDisposition string            `json:"contentDisposition,omitempty"`
	ContentEncoding    string            `json:"contentEncoding,omitempty"`
	ContentLanguage    string            `json:"contentLanguage,omitempty"`
	Custom             map[string]string `json:"customMetadata,omitempty"`
}

// CustomCopy returns a copy of the custom key/values.
func (m Metadata) CustomCopy() map[string]string {
	return maps.Clone(m.Custom)
}

// MetadataBuilder assembles a Metadata value for a single upload.
type MetadataBuilder struct {
	md Metadata
}

func NewMetadata() *MetadataBuilder {
	return &MetadataBuilder{}
}

func (b *MetadataBuilder) ContentType(v string) *MetadataBuilder {
	b.md.ContentType = v
	return b
}

func (b *MetadataBuilder) CacheControl(v string) *MetadataBuilder {
	b.md.CacheControl = v
	return b
}

func (b *MetadataBuilder) ContentDisposition(v string) *MetadataBuilder {
	b.md.ContentDisposition = v
	return b
}

func (b *MetadataBuilder) ContentEncoding(v string) *MetadataBuilder {
	b.md.ContentEncoding = v
	return b
}

func (b *MetadataBuilder) ContentLanguage(v string) *MetadataBuilder {
	b.md.ContentLanguage = v
	return b
}

func (b *MetadataBuilder) Set(key, value string) *MetadataBuilder {
	if b.md.Custom == nil {
		b.md.Custom = map[string]string{}
	}
	b.md.Custom[key] = value
	return b
}

func (b *MetadataBuilder) SetAll(values map[string]string) *MetadataBuilder {
	for k, v := range values {
		b.Set(k, v)
	}
	return b
}

// Build returns an independent Metadata value. Later builder calls do not affect it.
func (b *MetadataBuilder) Build() Metadata {
	md := b.md
	md.Custom = maps.Clone(b.md.Custom)
	return md
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Path     string
	Size     int64
	Metadata Metadata
	Updated  time.Time
}
