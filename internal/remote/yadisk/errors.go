package yadisk

import (
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"

	"github.com/mirrorbox/mirrorbox/internal/remote"
)

// APIError is the JSON error body the Disk API returns alongside non-2xx
// statuses, e.g. {"error":"DiskNotFoundError","message":"..."}.
type APIError struct {
	Status      int    `json:"-"`
	Name        string `json:"error"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("disk api %s (http %d): %s", e.Name, e.Status, e.Message)
}

// classify maps a Disk error onto the engine-facing sentinel it wraps,
// or nil when none applies.
func classify(e *APIError) error {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return remote.ErrUnauthorized
	case e.Status == http.StatusNotFound:
		return remote.ErrNotFound
	case e.Status == http.StatusConflict &&
		(e.Name == "DiskPathPointsToExistentDirectoryError" || e.Name == "DiskResourceAlreadyExistsError"):
		return remote.ErrAlreadyExists
	case e.Status == http.StatusTooManyRequests || e.Name == "TooManyRequestsError":
		return remote.ErrRateLimited
	case e.Status == http.StatusInsufficientStorage:
		return remote.ErrQuotaExceeded
	case e.Status >= 500:
		return remote.ErrUnavailable
	}
	return nil
}

// wrapResult folds the request error, the HTTP status and the decoded API
// error into a single error carrying the matching remote sentinel.
func wrapResult(resp *req.Response, requestErr error, apiErr *APIError, op, p string) error {
	if requestErr != nil {
		return fmt.Errorf("yadisk: %s %q: %w", op, p, requestErr)
	}
	if !resp.IsErrorState() {
		return nil
	}

	if apiErr.Name == "" {
		apiErr.Name = "UnknownError"
		apiErr.Message = resp.Status
	}
	apiErr.Status = resp.StatusCode

	if sentinel := classify(apiErr); sentinel != nil {
		return fmt.Errorf("yadisk: %s %q: %w: %w", op, p, sentinel, apiErr)
	}
	return fmt.Errorf("yadisk: %s %q: %w", op, p, apiErr)
}
