package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"syscall"
)

// Error is a categorised failure.
type Error struct {
	// Category decides the retry policy applied to this error.
	Category Category
	// Op describes the failing operation, e.g. "fetch tables/Weapon.json".
	Op string
	// Err is the underlying cause.
	Err error
	// Metadata holds diagnostic context (table, paths, confidence, sample keys).
	Metadata map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Category))
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Metadata[k])
		}
		b.WriteString("]")
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a categorised error.
func New(category Category, op string, err error) *Error {
	return &Error{Category: category, Op: op, Err: err}
}

// With returns a copy of the error with an additional metadata entry.
func (e *Error) With(key, value string) *Error {
	md := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	cp := *e
	cp.Metadata = md
	return &cp
}

// HTTPStatusCategory maps an HTTP status code to a category.
func HTTPStatusCategory(status int) Category {
	switch {
	case status == http.StatusTooManyRequests:
		return CategoryRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return CategoryTimeout
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status >= 500:
		return CategoryServer
	case status >= 400:
		return CategoryValidation
	default:
		return CategoryUnknown
	}
}

// Classify derives the category of an arbitrary error.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}

	switch {
	case errors.Is(err, context.Canceled):
		return CategoryUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return CategoryNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CategoryNetwork
	}

	return CategoryUnknown
}

// IsRetryable reports whether the policy table allows retrying the error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Lookup(Classify(err)).Retryable
}

// IsCategory reports whether the error belongs to the given category.
func IsCategory(err error, c Category) bool {
	return err != nil && Classify(err) == c
}
