// Package zero implements the logger on zerolog.
package zero

import (
	"context"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/finch-technologies/storage-manager/env"
	"github.com/rs/zerolog"
)

type ZeroLogger struct {
	logger  *zerolog.Logger
	context context.Context
}

// level reads LOG_LEVEL (debug, info, warn, error), defaulting to info.
func level() zerolog.Level {
	l, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func output(w io.Writer) io.Writer {
	switch {
	case w != nil:
		return w
	case env.IsLocal():
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	default:
		return os.Stdout
	}
}

// New builds a logger writing to w, or to stdout when w is nil. ctxFields are attached
// to every entry.
func New(ctx context.Context, ctxFields any, w io.Writer) *ZeroLogger {
	zctx := zerolog.New(output(w)).Level(level()).With().Timestamp()

	for key, value := range contextFields(ctxFields) {
		if value != "" {
			zctx = zctx.Str(key, value)
		}
	}

	logger := zctx.Logger()

	return &ZeroLogger{
		logger:  &logger,
		context: logger.WithContext(ctx),
	}
}

// FromContext returns the logger stored in ctx by New, or a fresh one when ctx is done.
func FromContext(ctx context.Context) *ZeroLogger {
	if ctx == nil || ctx.Err() != nil {
		return New(context.Background(), nil, nil)
	}

	return &ZeroLogger{
		logger:  zerolog.Ctx(ctx),
		context: ctx,
	}
}

// contextFields flattens a map[string]any or the exported fields of a struct.
func contextFields(ctxFields any) map[string]string {
	out := make(map[string]string)

	switch f := ctxFields.(type) {
	case nil:
		return out
	case map[string]any:
		for k, v := range f {
			out[k] = fmt.Sprint(v)
		}
		return out
	}

	v := reflect.ValueOf(ctxFields)
	if v.Kind() != reflect.Struct {
		return out
	}

	for i := 0; i < v.NumField(); i++ {
		if field := v.Type().Field(i); field.IsExported() {
			out[field.Name] = fmt.Sprint(v.Field(i))
		}
	}

	return out
}

func (z *ZeroLogger) GetLogger() *zerolog.Logger {
	return z.logger
}

func (z *ZeroLogger) GetContext() context.Context {
	return z.context
}

func (z *ZeroLogger) Debug(v ...any) {
	z.logger.Debug().Msg(fmt.Sprint(v...))
}

func (z *ZeroLogger) Debugf(s string, v ...any) {
	z.logger.Debug().Msgf(s, v...)
}

func (z *ZeroLogger) Info(v ...any) {
	z.logger.Info().Msg(fmt.Sprint(v...))
}

func (z *ZeroLogger) Infof(s string, v ...any) {
	z.logger.Info().Msgf(s, v...)
}

func (z *ZeroLogger) Warning(v ...any) {
	z.logger.Warn().Msg(fmt.Sprint(v...))
}

func (z *ZeroLogger) Warningf(s string, v ...any) {
	z.logger.Warn().Msgf(s, v...)
}

func (z *ZeroLogger) Error(v ...any) {
	z.logger.Error().Msg(fmt.Sprint(v...))
}

func (z *ZeroLogger) Errorf(s string, v ...any) {
	z.logger.Error().Msgf(s, v...)
}

// ErrorStack logs at error level with the stack in its own field.
func (z *ZeroLogger) ErrorStack(stack, s string, v ...any) {
	z.logger.Error().Str("stack", stack).Msgf(s, v...)
}

func (z *ZeroLogger) DebugFields(msg string, fields map[string]any) {
	z.logger.Debug().Fields(fields).Msg(msg)
}

func (z *ZeroLogger) InfoFields(msg string, fields map[string]any) {
	z.logger.Info().Fields(fields).Msg(msg)
}

func (z *ZeroLogger) ErrorFields(msg string, fields map[string]any) {
	z.logger.Error().Fields(fields).Msg(msg)
}

func (z *ZeroLogger) Fatal(v ...any) {
	z.logger.Fatal().Msg(fmt.Sprint(v...))
}

func (z *ZeroLogger) Fatalf(s string, v ...any) {
	z.logger.Fatal().Msgf(s, v...)
}
