package media

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"

	go2tvadapter "go2tv.app/beamdeck/internal/adapters/go2tv"
)

const (
	fallbackVideoType = "video/mp4"
	fallbackType      = "application/octet-stream"
)

var mimeFromPath = go2tvadapter.MimeTypeFromPath

// Containers the default receiver plays when announced as mp4.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".m4v":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".avi":  true,
}

// DetectContentType reports the MIME type announced to receivers for the file.
func DetectContentType(absPath string) string {
	if mt, err := mimeFromPath(absPath); err == nil && usable(mt) {
		return mt
	}
	if kind, err := filetype.MatchFile(absPath); err == nil && kind != filetype.Unknown && usable(kind.MIME.Value) {
		return kind.MIME.Value
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	if mt := mime.TypeByExtension(ext); usable(mt) {
		mediaType, _, _ := strings.Cut(mt, ";")
		return strings.TrimSpace(mediaType)
	}
	if videoExtensions[ext] {
		return fallbackVideoType
	}
	return fallbackType
}

func usable(mt string) bool {
	mt = strings.TrimSpace(mt)
	return mt != "" && mt != fallbackType && strings.Contains(mt, "/")
}
