package yadisk

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorbox/mirrorbox/internal/remote"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&Config{
		BaseURL: srv.URL,
		Token:   "test-token",
		Root:    "Mirror",
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestNewValidation(t *testing.T) {
	_, err := New(&Config{Root: "Mirror"})
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = New(&Config{Token: "t"})
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestDiskPath(t *testing.T) {
	c := &Client{root: "Mirror"}
	assert.Equal(t, "Mirror", c.diskPath(""))
	assert.Equal(t, "Mirror/a/b.txt", c.diskPath("a/b.txt"))
}

func TestEnsureFolder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /resources", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OAuth test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "Mirror/docs", r.URL.Query().Get("path"))
		writeJSON(w, http.StatusCreated, `{"href":"...","method":"GET"}`)
	})

	c := newTestClient(t, mux)
	assert.NoError(t, c.EnsureFolder(context.Background(), "docs"))
}

func TestEnsureFolderAlreadyExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /resources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict,
			`{"error":"DiskPathPointsToExistentDirectoryError","message":"..."}`)
	})

	c := newTestClient(t, mux)
	assert.NoError(t, c.EnsureFolder(context.Background(), "docs"))
}

func TestEnsureFolderUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /resources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":"UnauthorizedError","message":"bad token"}`)
	})

	c := newTestClient(t, mux)
	err := c.EnsureFolder(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrUnauthorized)
	assert.True(t, remote.IsFatal(err))
}

func TestStat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /resources", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mirror/a/b.txt", r.URL.Query().Get("path"))
		writeJSON(w, http.StatusOK, `{
			"name": "b.txt",
			"path": "disk:/Mirror/a/b.txt",
			"type": "file",
			"size": 42,
			"modified": "2024-03-01T12:00:00+00:00",
			"md5": "abc123"
		}`)
	})

	c := newTestClient(t, mux)
	info, err := c.Stat(context.Background(), "a/b.txt")
	require.NoError(t, err)

	assert.Equal(t, "b.txt", info.Name)
	assert.Equal(t, "a/b.txt", info.Path)
	assert.False(t, info.Dir)
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, "abc123", info.MD5)
	assert.Equal(t, 2024, info.ModTime.Year())
}

func TestStatNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /resources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":"DiskNotFoundError","message":"no such resource"}`)
	})

	c := newTestClient(t, mux)
	_, err := c.Stat(context.Background(), "missing.txt")
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestDelete(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /resources", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mirror/old", r.URL.Query().Get("path"))
		assert.Equal(t, "true", r.URL.Query().Get("permanently"))
		w.WriteHeader(http.StatusNoContent)
	})

	c := newTestClient(t, mux)
	assert.NoError(t, c.Delete(context.Background(), "old", true))
}

func TestDeleteNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /resources", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":"DiskNotFoundError","message":"gone"}`)
	})

	c := newTestClient(t, mux)
	err := c.Delete(context.Background(), "old", false)
	assert.ErrorIs(t, err, remote.ErrNotFound)
}

func TestMove(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /resources/move", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Mirror/clip.mp4.mbpart", q.Get("from"))
		assert.Equal(t, "Mirror/clip.mp4", q.Get("path"))
		assert.Equal(t, "true", q.Get("overwrite"))
		writeJSON(w, http.StatusCreated, `{"href":"...","method":"GET"}`)
	})

	c := newTestClient(t, mux)
	assert.NoError(t, c.Move(context.Background(), "clip.mp4.mbpart", "clip.mp4"))
}

func TestPut(t *testing.T) {
	var uploaded string

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("GET /resources/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mirror/a.txt", r.URL.Query().Get("path"))
		assert.Equal(t, "true", r.URL.Query().Get("overwrite"))
		writeJSON(w, http.StatusOK, `{"href":"`+srv.URL+`/upload-target","method":"PUT"}`)
	})
	mux.HandleFunc("PUT /upload-target", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		uploaded = string(body)
		assert.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
	})

	c, err := New(&Config{BaseURL: srv.URL, Token: "test-token", Root: "Mirror"})
	require.NoError(t, err)

	err = c.Put(context.Background(), "a.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "hello", uploaded)
}

func TestPutLinkRateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /resources/upload", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, `{"error":"TooManyRequestsError","message":"slow down"}`)
	})

	c := newTestClient(t, mux)
	err := c.Put(context.Background(), "a.txt", strings.NewReader("x"), 1, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrRateLimited)
	assert.True(t, remote.IsTransient(err))
}

func TestPutTargetQuotaExceeded(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("GET /resources/upload", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"href":"`+srv.URL+`/upload-target","method":"PUT"}`)
	})
	mux.HandleFunc("PUT /upload-target", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
	})

	c, err := New(&Config{BaseURL: srv.URL, Token: "test-token", Root: "Mirror"})
	require.NoError(t, err)

	err = c.Put(context.Background(), "big.bin", strings.NewReader("x"), 1, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrQuotaExceeded)
	assert.True(t, remote.IsFatal(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		apiErr APIError
		want   error
	}{
		{"unauthorized", APIError{Status: 401}, remote.ErrUnauthorized},
		{"forbidden", APIError{Status: 403}, remote.ErrUnauthorized},
		{"not found", APIError{Status: 404}, remote.ErrNotFound},
		{"dir exists", APIError{Status: 409, Name: "DiskPathPointsToExistentDirectoryError"}, remote.ErrAlreadyExists},
		{"resource exists", APIError{Status: 409, Name: "DiskResourceAlreadyExistsError"}, remote.ErrAlreadyExists},
		{"other conflict", APIError{Status: 409, Name: "DiskResourceLockedError"}, nil},
		{"rate limited", APIError{Status: 429}, remote.ErrRateLimited},
		{"quota", APIError{Status: 507}, remote.ErrQuotaExceeded},
		{"server error", APIError{Status: 502}, remote.ErrUnavailable},
		{"plain client error", APIError{Status: 400}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(&tt.apiErr))
		})
	}
}
