// Package remote defines the capability boundary between the reconciliation
// engine and a cloud object store. A backend only needs to implement Store;
// everything above it is backend-agnostic.
package remote

import (
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// Info describes a single remote resource as reported by the backend.
type Info struct {
	// Name is the backend's own name for the resource. It may differ from
	// the base of Path when the backend mangles characters it cannot store.
	Name    string
	Path    string
	Dir     bool
	Size    int64
	MD5     string
	ModTime time.Time
}

// Store is the minimal write surface a cloud backend must expose.
// All paths are POSIX-style and relative to the configured remote root.
type Store interface {
	// EnsureFolder creates a folder, succeeding silently if it already
	// exists. An empty path refers to the remote root itself.
	EnsureFolder(ctx context.Context, path string) error

	// Put creates or overwrites the object at path with the contents of r.
	// mediaType is a hint only; backends may ignore it.
	Put(ctx context.Context, path string, r io.Reader, size int64, mediaType string) error

	// Move renames src to dst in place, overwriting dst if present.
	Move(ctx context.Context, src, dst string) error

	// Delete removes the object or folder at path. Folder deletes are
	// recursive. Deleting an absent path returns ErrNotFound.
	Delete(ctx context.Context, path string, recursive bool) error

	// Stat returns metadata for the resource at path, or ErrNotFound.
	Stat(ctx context.Context, path string) (*Info, error)
}

// Sentinel errors backends wrap their responses with. The engine never
// inspects backend-specific error types, only these.
var (
	ErrNotFound      = errors.New("remote: not found")
	ErrAlreadyExists = errors.New("remote: already exists")
	ErrUnauthorized  = errors.New("remote: unauthorized")
	ErrQuotaExceeded = errors.New("remote: quota exceeded")
	ErrRateLimited   = errors.New("remote: rate limited")
	ErrUnavailable   = errors.New("remote: temporarily unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsFatal reports whether err cannot be cured by retrying: bad credentials
// or an exhausted quota abort the cycle instead of burning attempts.
func IsFatal(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrQuotaExceeded)
}

// IsTransient reports whether err is worth retrying with backoff: rate
// limits, server hiccups, timeouts and other network-level failures.
func IsTransient(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
