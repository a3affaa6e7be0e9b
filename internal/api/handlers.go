package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/davidboeke/catalog-scraper/internal/models"
	"github.com/davidboeke/catalog-scraper/internal/scraper"
)

type Handlers struct {
	scraper *scraper.Service
	logger  *slog.Logger
}

func NewHandlers(service *scraper.Service, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper: service,
		logger:  logger,
	}
}

// RecordsResponse wraps a record listing with how it was obtained.
type RecordsResponse struct {
	Records []*models.ExtractedRecord `json:"records"`
	Count   int                       `json:"count"`
	Tier    string                    `json:"tier"`
}

// GetRecords handles record listing requests. The service guarantees a
// non-empty result, so this endpoint never returns a server error.
func (h *Handlers) GetRecords(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	recordType := r.URL.Query().Get("type")
	if recordType == "" {
		recordType = "list"
	}
	category := r.URL.Query().Get("category")
	force := r.URL.Query().Get("force") == "true"

	records, tier := h.scraper.GetRecords(r.Context(), limit, recordType, category, force)

	h.respondJSON(w, http.StatusOK, RecordsResponse{
		Records: records,
		Count:   len(records),
		Tier:    tier,
	})
}

// GetRecordDetail handles single-item extraction by detail page URL.
func (h *Handlers) GetRecordDetail(w http.ResponseWriter, r *http.Request) {
	detailURL := r.URL.Query().Get("url")
	if detailURL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	record, err := h.scraper.GetRecordDetail(r.Context(), detailURL)
	if err != nil {
		if errors.Is(err, scraper.ErrInvalidTarget) {
			h.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to extract record detail", "url", detailURL, "error", err)
		h.respondError(w, http.StatusBadGateway, "extraction failed")
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// GetStaticFallback serves the fixed sample set directly.
func (h *Handlers) GetStaticFallback(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 5)
	records := h.scraper.GetStaticFallback(limit)

	h.respondJSON(w, http.StatusOK, RecordsResponse{
		Records: records,
		Count:   len(records),
		Tier:    scraper.TierStaticFixed,
	})
}

// GetSessionStatus reports the browser mode and retry policy.
func (h *Handlers) GetSessionStatus(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.scraper.SessionStatus())
}

// SessionModeRequest toggles the browser between visible and headless.
type SessionModeRequest struct {
	Visible bool `json:"visible"`
}

// SetSessionMode handles browser mode changes. A running browser is torn
// down; the next extraction relaunches it in the new mode.
func (h *Handlers) SetSessionMode(w http.ResponseWriter, r *http.Request) {
	var req SessionModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.scraper.SetBrowserMode(req.Visible); err != nil {
		h.logger.Error("failed to set browser mode", "visible", req.Visible, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to set browser mode")
		return
	}

	h.respondJSON(w, http.StatusOK, h.scraper.SessionStatus())
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil && i > 0 {
			return i
		}
	}
	return defaultValue
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
