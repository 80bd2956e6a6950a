package archive

import (
	"path"
	"strings"
)

// Entry is one logical file from the export: its path inside the archive and
// its decompressed bytes. Entries only live for the duration of an ingestion
// run.
type Entry struct {
	Path        string
	Data        []byte
	ContentType string
}

// contentTypes maps file extensions to the media type recorded on stored
// blobs. Unknown extensions fall back to application/octet-stream.
var contentTypes = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".avi":  "video/avi",
	".mov":  "video/quicktime",
	".webm": "video/webm",
}

// ContentTypeFor returns the best-effort media type for a file path based on
// its extension.
func ContentTypeFor(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
