// Package yadisk implements the remote.Store interface on top of the
// Yandex Disk REST API.
package yadisk

import (
	"errors"
	"path"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/mirrorbox/mirrorbox/internal/version"
)

const (
	// DefaultBaseURL is the public Disk REST endpoint.
	DefaultBaseURL = "https://cloud-api.yandex.net/v1/disk"

	defaultTimeout = 60 * time.Second

	resourcesURL  = "/resources"
	uploadLinkURL = "/resources/upload"
	moveURL       = "/resources/move"
)

var (
	ErrNoToken = errors.New("yadisk: oauth token missing")
	ErrNoRoot  = errors.New("yadisk: remote root folder missing")
)

// Config holds the connection settings for a Disk client.
type Config struct {
	BaseURL string        // defaults to DefaultBaseURL
	Token   string        // OAuth token, required
	Root    string        // Disk folder the mirror lives under, required
	Timeout time.Duration // per-request timeout, defaults to 60s
}

// Client is a thin Disk REST client. All paths passed to its methods are
// mirror-relative; the client prefixes them with the configured root folder.
type Client struct {
	http *req.Client
	root string
}

// New creates a Disk client. It does not talk to the API; a bad token
// surfaces on the first call.
func New(cfg *Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	if cfg.Root == "" {
		return nil, ErrNoRoot
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	http := req.C().
		SetBaseURL(baseURL).
		SetCommonHeader("Authorization", "OAuth "+cfg.Token).
		SetCommonHeader("Accept", "application/json").
		SetUserAgent("MirrorBox/"+version.Version).
		SetTimeout(timeout).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{
		http: http,
		root: strings.Trim(cfg.Root, "/"),
	}, nil
}

// diskPath maps a mirror-relative path onto the Disk namespace.
// An empty path refers to the root folder itself.
func (c *Client) diskPath(p string) string {
	if p == "" {
		return c.root
	}
	return path.Join(c.root, p)
}
