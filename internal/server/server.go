// Package server exposes the upload and results HTTP API.
package server

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"brick-detector/internal/config"
	"brick-detector/internal/metrics"
	"brick-detector/internal/store"
	"brick-detector/internal/version"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

//go:embed static/index.html
var indexHTML []byte

// Response messages.
const (
	msgSuccess       = "Success"
	msgFileNotFound  = "File not found"
	msgNoFileName    = "File name not found"
	msgWrongType     = "Wrong file type"
	msgFileTooLarge  = "File too large"
	msgNoVideoName   = "video name not found"
	msgNoSuchVideo   = "video does not exist"
	msgNotProcessed  = "video not processed yet"
	msgInternalError = "Internal error"
)

// Records is the read side of the record store.
type Records interface {
	Find(name string) (store.Record, error)
	List() []store.Record
}

// Queue accepts uploaded videos for processing.
type Queue interface {
	Enqueue(ctx context.Context, path, name string) error
	Len() int
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	cfg       *config.Config
	records   Records
	queue     Queue
	videoPath func(name string) string
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
}

// New creates a server. videoPath maps a video name to its annotated file.
func New(cfg *config.Config, records Records, q Queue, videoPath func(string) string, m *metrics.Metrics, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:       cfg,
		records:   records,
		queue:     q,
		videoPath: videoPath,
		metrics:   m,
		logger:    logger,
	}
}

// Handler returns the routed, CORS-enabled handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.IndexHandler)
	mux.HandleFunc("POST /{$}", s.UploadHandler)
	mux.HandleFunc("GET /video", s.VideoHandler)
	mux.HandleFunc("GET /video/info", s.VideoInfoHandler)
	mux.HandleFunc("GET /names", s.NamesHandler)
	mux.HandleFunc("GET /health", s.HealthHandler)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return cors.AllowAll().Handler(s.logRequests(mux))
}

// IndexHandler serves the upload page.
func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// UploadHandler handles POST / with a multipart "file" field.
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondMessage(w, msgFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		respondMessage(w, msgFileNotFound, http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		// A part sent with an empty filename is parsed as a plain value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			respondMessage(w, msgNoFileName, http.StatusBadRequest)
			return
		}
		respondMessage(w, msgFileNotFound, http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := SecureFilename(header.Filename)
	if filename == "" {
		respondMessage(w, msgNoFileName, http.StatusBadRequest)
		return
	}
	ext := filepath.Ext(filename)
	if !s.cfg.Allowed(ext) {
		respondMessage(w, msgWrongType, http.StatusBadRequest)
		return
	}

	path, err := s.saveUpload(filename, file)
	if err != nil {
		s.logger.Errorw("failed to save upload", "file", filename, "error", err)
		respondMessage(w, msgInternalError, http.StatusInternalServerError)
		return
	}
	s.logger.Infow("received video", "file", filename)

	name := strings.TrimSuffix(filename, ext)
	if err := s.queue.Enqueue(r.Context(), path, name); err != nil {
		s.logger.Errorw("failed to queue video", "name", name, "error", err)
		respondMessage(w, msgInternalError, http.StatusInternalServerError)
		return
	}

	respondMessage(w, msgSuccess, http.StatusOK)
}

func (s *Server) saveUpload(filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.cfg.UploadDir, filename)
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy upload: %w", err)
	}
	return path, dst.Close()
}

// lookup resolves the ?name= parameter to a record, writing the error
// response itself when it fails.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (store.Record, bool) {
	query := r.URL.Query()
	if !query.Has("name") {
		respondMessage(w, msgNoVideoName, http.StatusBadRequest)
		return store.Record{}, false
	}

	rec, err := s.records.Find(query.Get("name"))
	if errors.Is(err, store.ErrNotFound) {
		respondMessage(w, msgNoSuchVideo, http.StatusBadRequest)
		return store.Record{}, false
	}
	if err != nil {
		s.logger.Errorw("record lookup failed", "error", err)
		respondMessage(w, msgInternalError, http.StatusInternalServerError)
		return store.Record{}, false
	}
	return rec, true
}

// VideoHandler serves the annotated video for ?name=.
func (s *Server) VideoHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	path := s.videoPath(rec.Name)
	if _, err := os.Stat(path); err != nil {
		respondMessage(w, msgNotProcessed, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", videoContentType(filepath.Ext(path)))
	http.ServeFile(w, r, path)
}

func videoContentType(ext string) string {
	if ext == ".webm" {
		return "video/webm"
	}
	if ctype := mime.TypeByExtension(ext); ctype != "" {
		return ctype
	}
	return "application/octet-stream"
}

// VideoInfoHandler returns the detection log lines for ?name=. A record
// whose log has not been written yet has no lines.
func (s *Server) VideoInfoHandler(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	lines, err := readLines(rec.InfoPath)
	if err != nil {
		s.logger.Errorw("failed to read detection log", "name", rec.Name, "error", err)
		respondMessage(w, msgInternalError, http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"message": lines}, http.StatusOK)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lines := []string{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

type nameEntry struct {
	Name      string       `json:"name"`
	Processed bool         `json:"processed"`
	Status    store.Status `json:"status"`
}

// NamesHandler lists every known video.
func (s *Server) NamesHandler(w http.ResponseWriter, r *http.Request) {
	records := s.records.List()
	names := make([]nameEntry, len(records))
	for i, rec := range records {
		names[i] = nameEntry{Name: rec.Name, Processed: rec.Processed, Status: rec.Status}
	}
	respondJSON(w, map[string]any{"message": names}, http.StatusOK)
}

// HealthHandler reports liveness and queue depth.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"status":      "ok",
		"version":     version.Version,
		"queue_depth": s.queue.Len(),
	}, http.StatusOK)
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondMessage(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"message": message}, status)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debugw("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "elapsed", time.Since(start))
	})
}
