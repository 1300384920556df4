// Package media serves the one selected file at a fixed URL for receivers to
// pull.
package media

import (
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
)

// Path is the fixed route receivers are pointed at.
const Path = "/play.mp4"

type selection struct {
	path        string
	contentType string
}

// Origin holds the selected media reference. Swapping it never affects
// requests that already opened the previous file.
type Origin struct {
	selected    atomic.Pointer[selection]
	contentType func(absPath string) string
	logger      *slog.Logger
}

func NewOrigin(logger *slog.Logger) *Origin {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Origin{
		contentType: DetectContentType,
		logger:      logger,
	}
}

// Select makes absPath the file answering Path.
func (o *Origin) Select(absPath string) {
	o.selected.Store(&selection{
		path:        absPath,
		contentType: o.contentType(absPath),
	})
	o.logger.Debug("media_selected", slog.String("path", absPath))
}

// Selected returns the current absolute path, or "" before the first Select.
func (o *Origin) Selected() string {
	sel := o.selected.Load()
	if sel == nil {
		return ""
	}
	return sel.path
}

func (o *Origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	sel := o.selected.Load()
	if sel == nil {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(sel.path)
	if err != nil {
		o.logger.Warn("media_open_failed", slog.String("path", sel.path), slog.String("error", err.Error()))
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", sel.contentType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
