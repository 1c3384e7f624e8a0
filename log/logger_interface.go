package log

import (
	"context"
)

// LoggerInterface is implemented by zero.ZeroLogger and accepted wherever a caller may
// supply its own logger.
type LoggerInterface interface {
	Debug(v ...any)
	Debugf(s string, v ...any)
	Info(v ...any)
	Infof(s string, v ...any)
	Warning(v ...any)
	Warningf(s string, v ...any)
	Error(v ...any)
	Errorf(s string, v ...any)
	ErrorStack(stack, s string, v ...any)
	DebugFields(msg string, fields map[string]any)
	InfoFields(msg string, fields map[string]any)
	ErrorFields(msg string, fields map[string]any)
	Fatal(v ...any)
	Fatalf(s string, v ...any)
	GetContext() context.Context
}
