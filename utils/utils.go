package utils

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/finch-technologies/storage-manager/log"
)

// recovered turns a recovered panic value into an error.
func recovered(r any) error {
	if e, ok := r.(error); ok {
		return e
	}
	return fmt.Errorf("%v", r)
}

// Try runs f, swallowing a panic. The panic and its stack go to logger when one is given.
func Try(f func(), logger ...log.LoggerInterface) {
	TryCatch(f, func(e error, stack string) {
		for _, l := range logger {
			l.ErrorStack(stack, "%v", e)
		}
	})
}

// TryCatch runs f and hands a panic to catch instead of unwinding further.
func TryCatch(f func(), catch func(e error, stackTrace string)) {
	defer func() {
		if r := recover(); r != nil {
			catch(recovered(r), string(debug.Stack()))
		}
	}()

	f()
}

func orDefault[T comparable](value, defaultValue T) T {
	var zero T
	if value == zero {
		return defaultValue
	}
	return value
}

func DurationOrDefault(value, defaultValue time.Duration) time.Duration {
	return orDefault(value, defaultValue)
}

func StringOrDefault(value, defaultValue string) string {
	return orDefault(value, defaultValue)
}

// Int64OrDefault treats negative values as unset too.
func Int64OrDefault(value, defaultValue int64) int64 {
	if value < 0 {
		return defaultValue
	}
	return orDefault(value, defaultValue)
}

// parseOrDefault returns defaultValue for an empty or unparsable s.
func parseOrDefault[T any](s string, parse func(string) (T, error), defaultValue T) T {
	if s == "" {
		return defaultValue
	}
	v, err := parse(s)
	if err != nil {
		return defaultValue
	}
	return v
}

func StringToInt64OrDefault(value string, defaultValue int64) int64 {
	return parseOrDefault(value, func(s string) (int64, error) {
		return strconv.ParseInt(s, 10, 64)
	}, defaultValue)
}

func StringToBoolOrDefault(value string, defaultValue bool) bool {
	return parseOrDefault(value, strconv.ParseBool, defaultValue)
}

func ParseDurationOrDefault(s string, defaultValue time.Duration) time.Duration {
	return parseOrDefault(s, time.ParseDuration, defaultValue)
}

// MergeObjects fills every zero-valued exported field of *dst with the matching field of
// src. Non-struct targets are left alone.
func MergeObjects[T any](dst *T, src T) {
	if dst == nil {
		return
	}

	target := reflect.ValueOf(dst).Elem()
	if target.Kind() != reflect.Struct {
		return
	}
	source := reflect.ValueOf(src)

	for i := range target.NumField() {
		if !target.Type().Field(i).IsExported() || !target.Field(i).IsZero() {
			continue
		}
		target.Field(i).Set(source.Field(i))
	}
}

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".txt":  "text/plain",
	".json": "application/json",
}

// GetContentTypeFromURL guesses a content type from the extension of a path or URL.
func GetContentTypeFromURL(fileURL string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(fileURL))]; ok {
		return ct
	}
	return "application/octet-stream"
}
