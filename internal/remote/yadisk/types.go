package yadisk

import (
	"time"

	"github.com/mirrorbox/mirrorbox/internal/remote"
)

// resourceInfo is the subset of the Disk resource object the mirror needs.
type resourceInfo struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Type     string `json:"type"` // "file" or "dir"
	Size     int64  `json:"size"`
	Modified string `json:"modified"` // RFC3339
	MD5      string `json:"md5"`
}

func (r *resourceInfo) toInfo(relPath string) *remote.Info {
	info := &remote.Info{
		Name: r.Name,
		Path: relPath,
		Dir:  r.Type == "dir",
		Size: r.Size,
		MD5:  r.MD5,
	}
	if t, err := time.Parse(time.RFC3339, r.Modified); err == nil {
		info.ModTime = t
	}
	return info
}

// uploadLink is the response of GET /resources/upload: a one-shot href the
// file bytes are PUT to.
type uploadLink struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}
