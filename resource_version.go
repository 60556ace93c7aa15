package eventsourcing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const (
	expectedResourceVersionKey ctxKey = "expectedResourceVersion"
	nextResourceVersionKey     ctxKey = "nextResourceVersion"
)

// WithExpectedResourceVersion stores the version a caller expects the
// resource to be at, typically taken from an If-Match header. Blank values
// are ignored.
func WithExpectedResourceVersion(ctx context.Context, value string) context.Context {
	if strings.TrimSpace(value) == "" {
		return ctx
	}
	return context.WithValue(ctx, expectedResourceVersionKey, value)
}

// ExpectedResourceVersion returns the expected version stored in ctx. It
// reports false when none was set or the value is not a version number.
func ExpectedResourceVersion(ctx context.Context) (uint64, bool) {
	value, ok := ctx.Value(expectedResourceVersionKey).(string)
	if !ok {
		return 0, false
	}
	version, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, false
	}
	return version, true
}

// NextResourceVersion receives the version a resource has after a write, so
// it can be returned to the caller as an ETag.
type NextResourceVersion struct {
	mu    sync.Mutex
	value string
}

// TrySet stores value unless it is blank.
func (v *NextResourceVersion) TrySet(value string) bool {
	if strings.TrimSpace(value) == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.value = value
	return true
}

func (v *NextResourceVersion) Value() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// WithNextResourceVersion attaches an empty NextResourceVersion to ctx.
// Repositories write through ctx fill it in.
func WithNextResourceVersion(ctx context.Context) (context.Context, *NextResourceVersion) {
	next := &NextResourceVersion{}
	return context.WithValue(ctx, nextResourceVersionKey, next), next
}

func recordNextResourceVersion(ctx context.Context, version uint64) {
	if next, ok := ctx.Value(nextResourceVersionKey).(*NextResourceVersion); ok {
		next.TrySet(strconv.FormatUint(version, 10))
	}
}

// FormatETag renders version as a weak entity tag, e.g. W/"3".
func FormatETag(version uint64) string {
	return `W/"` + strconv.FormatUint(version, 10) + `"`
}

// ParseETag reads the version out of a strong or weak entity tag.
func ParseETag(etag string) (uint64, error) {
	value := strings.TrimPrefix(strings.TrimSpace(etag), "W/")
	if len(value) < 2 || value[0] != '"' || value[len(value)-1] != '"' {
		return 0, fmt.Errorf("invalid etag %q", etag)
	}
	version, err := strconv.ParseUint(value[1:len(value)-1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid etag %q: %w", etag, err)
	}
	return version, nil
}
