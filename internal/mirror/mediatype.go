package mirror

import (
	"mime"
	"path"
	"strings"
)

// MediaCategory is the closed set of media classes the remote store keys
// its upload throttling on. Categories are inferred from the extension
// only; that is exactly what the server does at link-acquisition time.
type MediaCategory string

const (
	MediaArchive  MediaCategory = "archive"
	MediaVideo    MediaCategory = "video"
	MediaAudio    MediaCategory = "audio"
	MediaImage    MediaCategory = "image"
	MediaDocument MediaCategory = "document"
	MediaBinary   MediaCategory = "binary"
	MediaOther    MediaCategory = "other"
)

// DefaultThrottledCategories matches the classes Disk is known to slow-lane.
var DefaultThrottledCategories = []MediaCategory{MediaArchive, MediaVideo, MediaBinary}

var extCategories = map[string]MediaCategory{
	".7z":  MediaArchive,
	".bz2": MediaArchive,
	".gz":  MediaArchive,
	".rar": MediaArchive,
	".tar": MediaArchive,
	".tgz": MediaArchive,
	".xz":  MediaArchive,
	".zip": MediaArchive,
	".zst": MediaArchive,

	".avi":  MediaVideo,
	".flv":  MediaVideo,
	".m4v":  MediaVideo,
	".mkv":  MediaVideo,
	".mov":  MediaVideo,
	".mp4":  MediaVideo,
	".mpeg": MediaVideo,
	".mpg":  MediaVideo,
	".webm": MediaVideo,
	".wmv":  MediaVideo,

	".aac":  MediaAudio,
	".flac": MediaAudio,
	".m4a":  MediaAudio,
	".mp3":  MediaAudio,
	".ogg":  MediaAudio,
	".wav":  MediaAudio,

	".doc":  MediaDocument,
	".docx": MediaDocument,
	".odt":  MediaDocument,
	".pdf":  MediaDocument,
	".rtf":  MediaDocument,
	".xls":  MediaDocument,
	".xlsx": MediaDocument,

	".bin":  MediaBinary,
	".dmg":  MediaBinary,
	".exe":  MediaBinary,
	".img":  MediaBinary,
	".iso":  MediaBinary,
	".msi":  MediaBinary,
	".vdi":  MediaBinary,
	".vmdk": MediaBinary,
}

// CategoryOf infers the media category of a path from its extension,
// falling back to the platform MIME table for extensions the map misses.
func CategoryOf(p string) MediaCategory {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return MediaOther
	}
	if cat, ok := extCategories[ext]; ok {
		return cat
	}

	switch mimeType := mime.TypeByExtension(ext); {
	case strings.HasPrefix(mimeType, "video/"):
		return MediaVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return MediaAudio
	case strings.HasPrefix(mimeType, "image/"):
		return MediaImage
	}
	return MediaOther
}

// ContentTypeOf returns the media type hint passed to Store.Put.
func ContentTypeOf(p string) string {
	if mimeType := mime.TypeByExtension(path.Ext(p)); mimeType != "" {
		return mimeType
	}
	return "application/octet-stream"
}

// disguiseSuffix is an extension no media table knows, so the server files
// the upload under the neutral category. It is appended (not substituted)
// to keep disguised paths collision-free and deterministic across cycles,
// which is what lets an interrupted upload resume with a rename only.
const disguiseSuffix = ".mbpart"

func DisguisePath(p string) string {
	return p + disguiseSuffix
}
