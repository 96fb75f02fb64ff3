package vfs

import (
	"path"
	"strings"
)

// DefaultMimeType is used for files whose extension is not recognized.
const DefaultMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
	".css":  "text/css",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".mp3":  "audio/mpeg",
	".mp4":  "video/mp4",
}

// MimeTypeForName maps a file name to a MIME type by extension.
func MimeTypeForName(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return DefaultMimeType
}
