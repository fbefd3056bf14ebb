package handlers

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hindsight/hub/internal/api/validation"
	"github.com/hindsight/hub/internal/hub"
	"github.com/hindsight/hub/internal/logger"
	"github.com/hindsight/hub/internal/model"
)

const (
	// DefaultMaxBodyBytes caps ingest request bodies when no limit is
	// configured.
	DefaultMaxBodyBytes = 4 << 20

	gzipEncoding = "gzip"
)

var errBodyTooLarge = errors.New("request body too large")

// IngestHandlers serves span batch ingestion.
type IngestHandlers struct {
	hub          *hub.Hub
	maxBodyBytes int64
	log          zerolog.Logger
}

// NewIngestHandlers creates ingest handlers backed by the hub.
func NewIngestHandlers(h *hub.Hub, maxBodyBytes int64) *IngestHandlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &IngestHandlers{
		hub:          h,
		maxBodyBytes: maxBodyBytes,
		log:          logger.WithComponent("http.ingest"),
	}
}

// SpanBatchRequest is the JSON ingest request body.
type SpanBatchRequest struct {
	Spans []model.Span `json:"spans"`
}

// IngestSpans handles POST /api/v1/spans. The body is schema-checked as
// a whole, then each span is upserted independently; per-span semantic
// rejects are reported in the result, never as a request failure.
func (h *IngestHandlers) IngestSpans(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, "expected application/json")
		return
	}

	body, err := readBody(r, h.maxBodyBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := validation.ValidateSpanBatch(body); err != nil {
		var verr validation.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.Error().Err(err).Msg("Span batch validation failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	var req SpanBatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid span batch body")
		return
	}

	result := h.hub.IngestSpansVia("http", req.Spans)
	writeJSON(w, http.StatusOK, result)
}

// readBody reads a request body honoring gzip content encoding and the
// configured size limit.
func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	reader := io.Reader(r.Body)
	if strings.EqualFold(r.Header.Get("Content-Encoding"), gzipEncoding) {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, errors.New("invalid gzip body")
		}
		defer gz.Close()
		reader = gz
	}

	limited := io.LimitReader(reader, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}
