package log

import (
	"context"
	"sync/atomic"
)

type holder struct {
	logger LoggerInterface
}

var std atomic.Pointer[holder]

func init() {
	std.Store(&holder{New(context.Background(), nil)})
}

// Default returns the package level logger.
func Default() LoggerInterface {
	return std.Load().logger
}

// SetDefault replaces the package level logger. A nil logger is ignored.
func SetDefault(l LoggerInterface) {
	if l != nil {
		std.Store(&holder{l})
	}
}

func Debug(v ...any) {
	Default().Debug(v...)
}

func Debugf(s string, v ...any) {
	Default().Debugf(s, v...)
}

func Infof(s string, v ...any) {
	Default().Infof(s, v...)
}

func Warningf(s string, v ...any) {
	Default().Warningf(s, v...)
}

func Error(v ...any) {
	Default().Error(v...)
}

func Errorf(s string, v ...any) {
	Default().Errorf(s, v...)
}

func InfoFields(msg string, fields map[string]any) {
	Default().InfoFields(msg, fields)
}

func ErrorFields(msg string, fields map[string]any) {
	Default().ErrorFields(msg, fields)
}
