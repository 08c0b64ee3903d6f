// Package fileserver implements the overlay's plain-HTTP file object
// store (spec.md §4.6): an upload endpoint that returns a
// dereferenceable URL, and a download endpoint keyed by opaque id.
// Grounded in the teacher's plain net/http handler style (the teacher
// has no file-upload surface of its own; the multipart-bound,
// size-limited handler shape follows the standard net/http idiom the
// rest of the corpus uses for HTTP endpoints alongside its websocket
// transport).
package fileserver

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/olaf-mesh/neighbourhood/config"
	"github.com/olaf-mesh/neighbourhood/internal/logger"
	"github.com/olaf-mesh/neighbourhood/internal/metrics"
)

const uploadFormField = "file"

// Server serves the upload/download HTTP endpoints backed by a local
// directory. It holds no in-memory index: the filesystem itself is the
// id-to-content mapping.
type Server struct {
	dir      string
	maxBytes int64
	baseURL  string
	log      logger.Logger
}

// New constructs a fileserver.Server from upload configuration, creating
// the backing directory if it does not exist.
func New(cfg config.UploadConfig, log logger.Logger) (*Server, error) {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Server{
		dir:      cfg.Directory,
		maxBytes: maxBytes,
		baseURL:  cfg.BaseURL(),
		log:      log,
	}, nil
}

// Handler returns the mux serving both endpoints, for embedding
// alongside the websocket upgrade handler on the same listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/upload", s.handleUpload)
	mux.HandleFunc("/", s.handleDownload)
	return mux
}

// handleUpload accepts a multipart/form-data POST with a single "file"
// part, bounded by MaxBytes, and returns {"url": "..."} on success.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBytes)
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		metrics.UploadsTotal.WithLabelValues("too_large").Inc()
		http.Error(w, "request too large or malformed", http.StatusRequestEntityTooLarge)
		return
	}

	file, _, err := r.FormFile(uploadFormField)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("bad_request").Inc()
		http.Error(w, fmt.Sprintf("missing %q form part", uploadFormField), http.StatusBadRequest)
		return
	}
	defer file.Close()

	id := uuid.NewString()
	dest := filepath.Join(s.dir, id)
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		s.log.Error("failed to create upload destination", logger.Error(err))
		metrics.UploadsTotal.WithLabelValues("bad_request").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	written, err := io.Copy(out, file)
	if err != nil {
		_ = os.Remove(dest)
		metrics.UploadsTotal.WithLabelValues("too_large").Inc()
		http.Error(w, "upload failed", http.StatusRequestEntityTooLarge)
		return
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	metrics.UploadBytes.Observe(float64(written))

	url := fmt.Sprintf("%s/%s", s.baseURL, id)
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"file_url":%q}`, url)
}

// handleDownload serves back a previously uploaded file by its opaque
// id, 404ing if it is missing.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := filepath.Base(r.URL.Path)
	if id == "" || id == "." || id == "/" {
		metrics.DownloadsTotal.WithLabelValues("not_found").Inc()
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(s.dir, id)
	f, err := os.Open(path)
	if err != nil {
		metrics.DownloadsTotal.WithLabelValues("not_found").Inc()
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	metrics.DownloadsTotal.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", "application/octet-stream")

	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	http.ServeContent(w, r, id, modTime, f)
}
