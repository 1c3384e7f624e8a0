package sentry

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/finch-technologies/storage-manager/log"
	"github.com/finch-technologies/storage-manager/storage/types"
	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Reporter sends unexpected storage failures to Sentry.
type Reporter struct {
	hub *sentry.Hub
}

// Init initializes Sentry from SENTRY_DSN, SENTRY_SAMPLE_RATE and APP_ENV. It returns nil
// when no DSN is configured.
func Init() *Reporter {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return nil
	}

	sampleRate, _ := strconv.ParseFloat(os.Getenv("SENTRY_SAMPLE_RATE"), 64)
	stage := os.Getenv("APP_ENV")
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      stage,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Error(err)
		return nil
	}

	return NewReporter(sentry.CurrentHub())
}

func NewReporter(hub *sentry.Hub) *Reporter {
	return &Reporter{hub: hub}
}

// ShouldReport reports whether err is worth an alert. Expected outcomes such as missing
// objects, cancellation, bad input and oversized downloads are not.
func ShouldReport(err *types.Error) bool {
	if err == nil {
		return false
	}
	switch err.Code {
	case types.CodeObjectNotFound, types.CodeCancelled, types.CodeDecode,
		types.CodeInvalidArgument, types.CodeDownloadSizeExceeded:
		return false
	}
	return true
}

// CaptureFailure reports the failure of one storage operation.
func (r *Reporter) CaptureFailure(ctx context.Context, operation, path string, err *types.Error) {
	if r == nil || !ShouldReport(err) {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
		scope.SetTag("code", string(err.Code))
		scope.SetContext("storage", sentry.Context{"path": path})
		r.hub.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent.
func (r *Reporter) Flush() bool {
	if r == nil {
		return true
	}
	return r.hub.Flush(flushTimeout)
}
