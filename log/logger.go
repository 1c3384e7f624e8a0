package log

import (
	"context"
	"io"
	"sync"

	"github.com/finch-technologies/storage-manager/log/zero"
	"github.com/rs/zerolog"
)

var initOnce sync.Once

// Init makes loggers created by New the zerolog default for contexts that carry none.
func Init() {
	initOnce.Do(func() {
		zerolog.DefaultContextLogger = zero.New(context.Background(), nil, nil).GetLogger()
	})
}

// New creates a logger carrying ctxFields. ctxFields may be a struct (exported fields become
// string fields) or a map[string]any.
func New(ctx context.Context, ctxFields any) LoggerInterface {
	Init()
	return zero.New(ctx, ctxFields, nil)
}

// NewWithWriter is New with output sent to w instead of stdout.
func NewWithWriter(ctx context.Context, ctxFields any, w io.Writer) LoggerInterface {
	Init()
	return zero.New(ctx, ctxFields, w)
}

// FromContext returns the logger attached to ctx.
func FromContext(ctx context.Context) LoggerInterface {
	return zero.FromContext(ctx)
}
