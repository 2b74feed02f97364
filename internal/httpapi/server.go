// Package httpapi exposes sheet grading over HTTP.
//
// Routes:
//
//	POST /process-answer-sheets/  multipart "files": grade every upload
//	GET  /answer-key              describe the answer key in service
//	POST /answer-key              multipart "file": rebuild the key from an image
//	GET  /healthz                 liveness and key status
//
// Uploads are spooled to temporary files one at a time. Each temporary file
// is removed as soon as its sheet is graded, including when grading fails.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ironsheep/omr-grader/internal/grading"
	"github.com/ironsheep/omr-grader/internal/logger"
)

// multipartMemory is how much of a multipart body is held in memory before
// the rest spills to disk.
const multipartMemory = 8 << 20

const shutdownTimeout = 15 * time.Second

// Config holds server settings.
type Config struct {
	// MaxUploadBytes caps a request body.
	MaxUploadBytes int64
	// CORSOrigins is the Access-Control-Allow-Origin value.
	CORSOrigins string
	// Version is reported by /healthz.
	Version string
}

// Server handles the grading HTTP API.
type Server struct {
	cfg     Config
	builder grading.ResponseBuilder
	keys    *grading.KeyStore
	log     logger.Logger
}

// New creates a server grading with builder against the key in keys.
func New(cfg Config, builder grading.ResponseBuilder, keys *grading.KeyStore, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop{}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}
	return &Server{cfg: cfg, builder: builder, keys: keys, log: log}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process-answer-sheets/", s.handleProcessSheets)
	mux.HandleFunc("POST /process-answer-sheets", s.handleProcessSheets)
	mux.HandleFunc("GET /answer-key", s.handleGetKey)
	mux.HandleFunc("POST /answer-key", s.handleReloadKey)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	handler := http.Handler(mux)
	handler = s.loggingMiddleware(handler)
	handler = s.corsMiddleware(handler)
	handler = s.recoveryMiddleware(handler)
	return handler
}

// ListenAndServe serves the API on addr until ctx is cancelled, then shuts
// down gracefully, giving in-flight requests shutdownTimeout to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http", "listening", logger.Fields{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("http", "shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type resultsBody struct {
	Results []grading.Result `json:"results"`
}

func (s *Server) handleProcessSheets(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseMultipart(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	files := form.File["files"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No files received"})
		return
	}

	key, err := s.keys.Current()
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Code: grading.CodeNoAnswerKey})
		return
	}

	items := make([]grading.Item, 0, len(files))
	for _, fh := range files {
		fh := fh
		items = append(items, grading.Item{
			Filename: fh.Filename,
			Prepare:  func() (string, func(), error) { return spool(fh) },
		})
	}

	results := grading.GradeFiles(s.builder, key, items)

	failed := 0
	for _, res := range results {
		if !res.OK() {
			failed++
			s.log.Warning("http", "sheet not graded", logger.Fields{"file": res.Filename, "code": res.Code, "error": res.Error})
		}
	}
	s.log.Info("http", "batch graded", logger.Fields{"sheets": len(results), "failed": failed})

	writeJSON(w, http.StatusOK, resultsBody{Results: results})
}

func (s *Server) handleGetKey(w http.ResponseWriter, _ *http.Request) {
	key, err := s.keys.Current()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Code: grading.CodeNoAnswerKey})
		return
	}
	writeJSON(w, http.StatusOK, key.Info())
}

func (s *Server) handleReloadKey(w http.ResponseWriter, r *http.Request) {
	form, ok := s.parseMultipart(w, r)
	if !ok {
		return
	}
	defer form.RemoveAll()

	files := form.File["file"]
	if len(files) != 1 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Exactly one key image expected in field \"file\""})
		return
	}

	path, release, err := spool(files[0])
	if release != nil {
		defer release()
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Code: grading.CodeInternal})
		return
	}

	responses, err := s.builder.BuildResponseMap(path)
	if err != nil {
		code := grading.ErrorCode(err)
		status := http.StatusInternalServerError
		if code == grading.CodeImageUnreadable {
			status = http.StatusUnprocessableEntity
		}
		writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
		return
	}

	key := grading.NewAnswerKey(responses, files[0].Filename)
	s.keys.Swap(key)
	s.log.Info("http", "answer key replaced", logger.Fields{"source": key.Source(), "questions": key.Len()})

	writeJSON(w, http.StatusOK, key.Info())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, err := s.keys.Current()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"version":    s.cfg.Version,
		"key_loaded": err == nil,
	})
}

// parseMultipart reads a size-limited multipart body, writing the error
// response itself when it fails.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: fmt.Sprintf("Upload exceeds %d bytes", tooLarge.Limit)})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid multipart form: " + err.Error()})
		return nil, false
	}
	return r.MultipartForm, true
}

// spool copies an upload into a temporary file, keeping the original
// extension so the decoder can be picked from it. The release func removes
// the file and is returned even on failure.
func spool(fh *multipart.FileHeader) (string, func(), error) {
	src, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "sheet-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	release := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return "", release, fmt.Errorf("failed to spool upload %s: %w", fh.Filename, err)
	}
	if err := tmp.Close(); err != nil {
		return "", release, fmt.Errorf("failed to spool upload %s: %w", fh.Filename, err)
	}
	return tmp.Name(), release, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
