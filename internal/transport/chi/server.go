// Package chi exposes the pipeline over HTTP.
package chi

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tablechat/tablechat/internal/chunker"
	"github.com/tablechat/tablechat/internal/domain"
	logpkg "github.com/tablechat/tablechat/internal/logger"
	chatuc "github.com/tablechat/tablechat/internal/usecase/chat"
	ingestuc "github.com/tablechat/tablechat/internal/usecase/ingest"
)

// maxUploadBytes bounds how much of a multipart upload is held in memory.
const maxUploadBytes = 32 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, details string) bool

// Pinger reports whether the vector index is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server owns the HTTP handlers for uploads, chat, health and metrics.
type Server struct {
	ingest        *ingestuc.Service
	chat          *chatuc.Service
	pinger        Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. pinger may be nil when the
// index driver has no liveness probe.
func NewServer(ingest *ingestuc.Service, chat *chatuc.Service, pinger Pinger, logger *zap.Logger) *Server {
	s := &Server{
		ingest: ingest,
		chat:   chat,
		pinger: pinger,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest),
		sentinelHandler(domain.ErrEmptyTable, http.StatusBadRequest),
		sentinelHandler(domain.ErrIndexUnavailable, http.StatusBadGateway),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// Register mounts the API endpoints on the given router.
func (s *Server) Register(r chi.Router) {
	r.Post("/api/upload-csv", s.UploadCSV)
	r.Post("/api/chat", s.Chat)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Routes returns a standalone router with the API endpoints.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RowCount int    `json:"rowCount"`
}

// UploadCSV handles POST /api/upload-csv.
func (s *Server) UploadCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "No file provided", "")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided", "")
		return
	}
	defer file.Close()

	// Reject before reading a single row.
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "File must be a CSV", "")
		return
	}

	mode, err := chunker.ParseMode(r.FormValue("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chunking mode", r.FormValue("mode"))
		return
	}

	rows, err := parseCSV(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse CSV file", err.Error())
		return
	}

	sum, err := s.ingest.Ingest(r.Context(), rows, header.Filename, mode)
	if err != nil {
		// The ingest error carries the partial upsert count; surface it.
		s.handleDomainError(w, r, err, "Failed to process CSV file", err.Error())
		return
	}

	// Report what was actually written to the index, not what was parsed:
	// rows failing the embeddability rules never become vectors.
	writeJSON(w, http.StatusOK, uploadResponse{
		Success:  true,
		Message:  fmt.Sprintf("Successfully processed %d rows from %s", sum.Indexed, header.Filename),
		RowCount: sum.Indexed,
	})

	if sum.Degraded {
		s.log(r).Warn("upload indexed with fallback vectors", zap.String("filename", header.Filename))
	}
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Chat handles POST /api/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "Query is required", "")
		return
	}

	turn, err := s.chat.Ask(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, r, err, "Failed to process chat message", "")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: turn.Answer})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK
	checks := map[string]string{}
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			checks["index"] = "down"
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["index"] = "up"
		}
	}
	writeJSON(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// parseCSV reads the whole file: the first record is the header row,
// every later record becomes one domain row keyed by those headers.
func parseCSV(f multipart.File) ([]domain.Row, error) {
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	var rows []domain.Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		values := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				values[h] = record[i]
			} else {
				values[h] = ""
			}
		}
		rows = append(rows, domain.Row{Columns: headers, Values: values})
	}
	return rows, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidInput,
		domain.ErrEmptyTable,
		domain.ErrIndexUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int) errorHandler {
	return func(w http.ResponseWriter, err error, details string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, safeDomainMessage(err), details)
		return true
	}
}

// log resolves the request-scoped logger injected by the wide-event
// middleware, falling back to the server's base logger.
func (s *Server) log(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error, msg, details string) {
	log := s.log(r)
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err, details) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, msg, "")
}
