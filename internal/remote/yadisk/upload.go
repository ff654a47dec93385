package yadisk

import (
	"context"
	"fmt"
	"io"

	"github.com/mirrorbox/mirrorbox/internal/remote"
)

// Put uploads the contents of r to p. Disk uploads are a two-step flow:
// fetch a one-shot upload href for the path, then PUT the bytes to it.
// The href is keyed on the path's extension, which is what makes the
// disguised-extension throttle workaround possible at all.
func (c *Client) Put(ctx context.Context, p string, r io.Reader, size int64, mediaType string) error {
	var (
		link   uploadLink
		apiErr APIError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", c.diskPath(p)).
		SetQueryParam("overwrite", "true").
		SetSuccessResult(&link).
		SetErrorResult(&apiErr).
		Get(uploadLinkURL)

	if err := wrapResult(resp, err, &apiErr, "upload link", p); err != nil {
		return err
	}
	if link.Href == "" {
		return fmt.Errorf("yadisk: upload link %q: empty href", p)
	}

	upload := c.http.R().
		SetContext(ctx).
		SetBody(r)
	if mediaType != "" {
		upload.SetContentType(mediaType)
	}

	upResp, err := upload.Put(link.Href)
	if err != nil {
		return fmt.Errorf("yadisk: upload %q: %w", p, err)
	}
	if upResp.IsErrorState() {
		// The storage href answers with bare statuses, no JSON body.
		hrefErr := &APIError{Status: upResp.StatusCode, Name: "UploadError", Message: upResp.Status}
		if sentinel := classify(hrefErr); sentinel != nil {
			return fmt.Errorf("yadisk: upload %q: %w: %w", p, sentinel, hrefErr)
		}
		return fmt.Errorf("yadisk: upload %q: %w", p, hrefErr)
	}

	return nil
}

var _ remote.Store = (*Client)(nil)
