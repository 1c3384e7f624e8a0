package storage

import (
	"context"
	"maps"
	"time"

	"github.com/finch-technologies/storage-manager/storage/transfer"
	"github.com/finch-technologies/storage-manager/storage/types"
	"github.com/finch-technologies/storage-manager/utils"
	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opUpload        = "upload"
	opUploadFile    = "upload_file"
	opDownloadData  = "download_data"
	opDownloadImage = "download_image"
	opDownloadFile  = "download_file"
	opDelete        = "delete"
	opStat          = "stat"
	opDownloadURL   = "download_url"
)

const defaultContentType = "application/octet-stream"

// transferSteps splits an operation into the metered transfer and the work done once the
// transfer succeeded. complete never runs after a failed or cancelled transfer.
type transferSteps[T any] struct {
	move     func(ctx context.Context, ref types.Reference, ctl transfer.Meter) error
	complete func(ctx context.Context, ref types.Reference) (T, error)
}

func runTransfer[T any](m *Manager, ctx context.Context, op string, kind transfer.Kind, remotePath string, steps transferSteps[T]) (*transfer.Task, *Future[T]) {
	ref, err := m.client.Root().Child(remotePath)
	if err != nil {
		return nil, failed[T](m, ctx, op, remotePath, err)
	}

	task, ctl := transfer.New(ctx, kind, ref.FullPath)
	if m.publisher != nil {
		m.publisher.Attach(task)
	}

	future := newFuture[T](m.logger)

	go func() {
		start := time.Now()

		sctx, span := m.tracer.Start(ctx, "storage."+op, trace.WithAttributes(
			attribute.String("storage.path", ref.FullPath),
			attribute.String("storage.task_id", task.ID()),
			attribute.String("storage.kind", string(kind)),
		))

		ctl.Start()

		// The task context is cancelled once the terminal event is out, so only the
		// transfer itself runs on it.
		tctx := trace.ContextWithSpan(ctl.Context(), span)
		err := tctx.Err()
		if err == nil {
			err = steps.move(tctx, ref, ctl)
		}

		var result Result[T]
		switch ctl.Finish(err) {
		case transfer.StateSucceeded:
			v, cerr := steps.complete(sctx, ref)
			if cerr != nil {
				result = Failure[T](cerr)
			} else {
				result = Success(v)
			}
		case transfer.StateCancelled:
			result = Failure[T](types.ErrCancelled)
		default:
			result = Failure[T](err)
		}

		m.finish(sctx, span, op, ref.FullPath, result.Err(), time.Since(start), task.Snapshot().Completed)
		future.resolve(result)
	}()

	return task, future
}

func runOperation[T any](m *Manager, ctx context.Context, op string, remotePath string, fn func(ctx context.Context, ref types.Reference) (T, error)) *Future[T] {
	ref, err := m.client.Root().Child(remotePath)
	if err != nil {
		return failed[T](m, ctx, op, remotePath, err)
	}

	future := newFuture[T](m.logger)

	go func() {
		start := time.Now()

		sctx, span := m.tracer.Start(ctx, "storage."+op, trace.WithAttributes(
			attribute.String("storage.path", ref.FullPath),
		))

		var result Result[T]
		v, err := fn(sctx, ref)
		if err != nil {
			result = Failure[T](err)
		} else {
			result = Success(v)
		}

		m.finish(sctx, span, op, ref.FullPath, result.Err(), time.Since(start), 0)
		future.resolve(result)
	}()

	return future
}

// failed returns an already resolved future for an operation rejected before it started.
func failed[T any](m *Manager, ctx context.Context, op, remotePath string, err error) *Future[T] {
	m.record(ctx, op, remotePath, err, 0, 0)

	future := newFuture[T](m.logger)
	future.resolve(Failure[T](err))
	return future
}

func (m *Manager) finish(ctx context.Context, span trace.Span, op, remotePath string, err error, elapsed time.Duration, bytes int64) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("storage.error_code", string(types.CodeOf(err))))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int64("storage.bytes", bytes))
		span.SetStatus(codes.Ok, "")
	}
	span.End()

	m.record(ctx, op, remotePath, err, elapsed, bytes)

	if err != nil {
		m.reporter.CaptureFailure(ctx, op, remotePath, types.Normalize(err))
	}
}

// getUploadOptions copies the caller's options so later changes to them do not reach the upload.
func getUploadOptions(options ...types.UploadOptions) types.UploadOptions {
	if len(options) == 0 {
		return types.UploadOptions{}
	}
	opts := options[0]
	opts.Metadata = maps.Clone(opts.Metadata)
	return opts
}

// buildMetadata builds fresh metadata for one upload. detect is only called when no
// content type was given.
func buildMetadata(opts types.UploadOptions, detect func() string) types.Metadata {
	contentType := opts.ContentType
	if contentType == "" {
		contentType = detect()
	}

	return types.NewMetadata().
		ContentType(contentType).
		CacheControl(opts.CacheControl).
		ContentDisposition(opts.ContentDisposition).
		ContentEncoding(opts.ContentEncoding).
		ContentLanguage(opts.ContentLanguage).
		SetAll(opts.Metadata).
		Build()
}

func detectContentType(data []byte) string {
	if len(data) == 0 {
		return defaultContentType
	}
	return mimetype.Detect(data).String()
}

func detectFileContentType(localPath string) string {
	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		return utils.GetContentTypeFromURL(localPath)
	}
	return mt.String()
}
