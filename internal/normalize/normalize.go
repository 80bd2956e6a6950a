// Package normalize converts raw export documents into typed entities. Each
// normalizer locates its source documents through the virtual file index,
// repairs mis-encoded text, resolves media references into the blob store and
// reports its own progress. Malformed records are logged and skipped; a
// missing optional document yields empty output, not an error.
package normalize

import (
	"strings"
	"time"

	"igarchive/internal/model"
)

// stringListItem is the innermost record shape shared by most relationship and
// interaction documents.
type stringListItem struct {
	Href      string `json:"href"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// stringListRecord wraps a string_list_data array, optionally titled.
type stringListRecord struct {
	Title          string           `json:"title"`
	StringListData []stringListItem `json:"string_list_data"`
}

// stringMapValue is one entry of a string_map_data object.
type stringMapValue struct {
	Href      string `json:"href"`
	Value     string `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// rawMedia is a media reference inside posts, stories and messages. Title is
// only populated for post media, where it can carry the caption.
type rawMedia struct {
	URI               string `json:"uri"`
	Title             string `json:"title"`
	CreationTimestamp int64  `json:"creation_timestamp"`
}

// identifier resolves a record's user identifier: the primary value field,
// falling back to the last path segment of the accompanying URL. Returns ""
// when no identifier can be resolved.
func (it stringListItem) identifier() string {
	if it.Value != "" {
		return it.Value
	}
	href := strings.TrimRight(it.Href, "/")
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}

// unixSeconds converts an export timestamp in seconds to a time.Time.
// Zero stays zero.
func unixSeconds(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// unixMillis converts a millisecond timestamp to a time.Time.
func unixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// videoExtensions and audioExtensions drive media-kind inference for content
// documents, which do not declare their media type.
var videoExtensions = map[string]bool{".mp4": true, ".mov": true, ".avi": true, ".webm": true}
var audioExtensions = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true, ".flac": true}

// contentTypes maps media file extensions to MIME types so the presentation
// layer can serve stored blobs without sniffing them.
var contentTypes = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg", ".png": "image/png",
	".gif": "image/gif", ".webp": "image/webp", ".heic": "image/heic",
	".mp4": "video/mp4", ".mov": "video/quicktime", ".webm": "video/webm",
	".avi": "video/x-msvideo",
	".mp3": "audio/mpeg", ".wav": "audio/wav", ".m4a": "audio/mp4",
	".aac": "audio/aac", ".ogg": "audio/ogg", ".flac": "audio/flac",
}

func contentTypeForURI(uri string) string {
	i := strings.LastIndexByte(uri, '.')
	if i >= 0 {
		if ct, ok := contentTypes[strings.ToLower(uri[i:])]; ok {
			return ct
		}
	}
	return "application/octet-stream"
}

// kindForURI infers a media kind from the URI's extension, defaulting to
// photo.
func kindForURI(uri string) model.MediaKind {
	i := strings.LastIndexByte(uri, '.')
	if i < 0 {
		return model.MediaPhoto
	}
	ext := strings.ToLower(uri[i:])
	switch {
	case videoExtensions[ext]:
		return model.MediaVideo
	case audioExtensions[ext]:
		return model.MediaAudio
	default:
		return model.MediaPhoto
	}
}
