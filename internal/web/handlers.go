package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tourops/pricing-ingest/internal/ingest"
	"github.com/tourops/pricing-ingest/internal/logging"
	"github.com/tourops/pricing-ingest/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// handlePricingUpload runs the streaming ingestion pipeline over an
// uploaded CSV file. Memory stays O(batch size) regardless of file size.
func (s *Server) handlePricingUpload(w http.ResponseWriter, r *http.Request) {
	operatorID, err := uuid.Parse(chi.URLParam(r, "tourOperatorID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid tour operator id")
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	// The browser that wants progress passes the connection id it got
	// from /ws/progress. Without one the upload runs silently.
	var notifier ingest.Notifier = ingest.NopNotifier{}
	if connID := r.FormValue("connectionId"); connID != "" && s.hub != nil {
		notifier = s.hub.Notifier(connID)
	}

	log := logging.WithFields(r.Context(), "tour_operator_id", operatorID)
	log.Info("upload started", "file", header.Filename, "size", header.Size)

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	p := ingest.New(s.sink,
		ingest.WithNotifier(notifier),
		ingest.WithBatchSize(s.cfg.Upload.BatchSize),
		ingest.WithRejectionLimit(s.cfg.Upload.RejectionLimit),
		ingest.WithMetrics(s.metrics),
	)

	sum, err := p.Run(ctx, file, operatorID)
	if err != nil {
		log.Error("upload failed", "rows_read", sum.RowsRead, "error", err)
		writeError(w, r, http.StatusInternalServerError, "upload failed")
		return
	}

	log.Info("upload finished",
		"state", sum.State,
		"rows_read", sum.RowsRead,
		"accepted", sum.Accepted,
		"rejected", sum.Rejected,
	)

	if sum.State == ingest.StateCompleted {
		if err := s.cache.Bump(r.Context(), operatorID.String()); err != nil {
			log.Warn("cache invalidation failed", "error", err)
		}
	}

	writeJSON(w, sum)
}

// pricingPageResponse is the payload of the pricing query, cached as-is.
type pricingPageResponse struct {
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
	Rows     []store.PricingRow `json:"rows"`
}

// handlePricingPage serves one page of an operator's pricing records,
// through the cache when one is configured.
func (s *Server) handlePricingPage(w http.ResponseWriter, r *http.Request) {
	operatorID, err := uuid.Parse(chi.URLParam(r, "tourOperatorID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid tour operator id")
		return
	}

	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "pageSize", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	version := s.cache.Version(r.Context(), operatorID.String())
	key := fmt.Sprintf("pricing:%s:v%d:p%d:s%d", operatorID, version, page, pageSize)

	if payload, err := s.cache.Get(r.Context(), key); err == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
		return
	}

	rows, err := s.pricing.PricingPage(r.Context(), operatorID, page, pageSize)
	if err != nil {
		logging.FromContext(r.Context()).Error("pricing query failed",
			"tour_operator_id", operatorID, "error", err)
		writeError(w, r, http.StatusInternalServerError, "pricing query failed")
		return
	}

	resp := pricingPageResponse{Page: page, PageSize: pageSize, Rows: rows}
	payload, err := json.Marshal(resp)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "pricing query failed")
		return
	}

	if err := s.cache.Set(r.Context(), key, payload); err != nil {
		logging.FromContext(r.Context()).Warn("cache write failed", "key", key, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(payload)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// writeError writes a JSON error response with a client-safe message.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("request error",
		"status", status, "path", r.URL.Path, "message", message)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// writeJSON encodes v and writes it; encode errors are only logged since
// the headers are already out.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
