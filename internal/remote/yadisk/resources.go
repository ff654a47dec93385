package yadisk

import (
	"context"

	"github.com/mirrorbox/mirrorbox/internal/remote"
)

// EnsureFolder creates the folder at p, treating "already exists" as
// success. Creating the root folder itself (p == "") also verifies the
// token: Disk answers 401 before looking at the path.
func (c *Client) EnsureFolder(ctx context.Context, p string) error {
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", c.diskPath(p)).
		SetErrorResult(&apiErr).
		Put(resourcesURL)

	wrapped := wrapResult(resp, err, &apiErr, "mkdir", p)
	if remote.IsAlreadyExists(wrapped) {
		return nil
	}
	return wrapped
}

// Stat fetches metadata for the resource at p.
func (c *Client) Stat(ctx context.Context, p string) (*remote.Info, error) {
	var (
		out    resourceInfo
		apiErr APIError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", c.diskPath(p)).
		SetQueryParam("fields", "name,path,type,size,modified,md5").
		SetSuccessResult(&out).
		SetErrorResult(&apiErr).
		Get(resourcesURL)

	if err := wrapResult(resp, err, &apiErr, "stat", p); err != nil {
		return nil, err
	}
	return out.toInfo(p), nil
}

// Delete removes the resource at p. Disk folder deletes are always
// recursive; the flag exists for Store interface parity.
func (c *Client) Delete(ctx context.Context, p string, _ bool) error {
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", c.diskPath(p)).
		SetQueryParam("permanently", "true").
		SetQueryParam("force_async", "false").
		SetErrorResult(&apiErr).
		Delete(resourcesURL)

	return wrapResult(resp, err, &apiErr, "delete", p)
}

// Move renames src to dst in place, overwriting dst.
func (c *Client) Move(ctx context.Context, src, dst string) error {
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("from", c.diskPath(src)).
		SetQueryParam("path", c.diskPath(dst)).
		SetQueryParam("overwrite", "true").
		SetErrorResult(&apiErr).
		Post(moveURL)

	return wrapResult(resp, err, &apiErr, "move", src)
}
