package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pricewatch/product-scraper/internal/extractor"
	"github.com/pricewatch/product-scraper/internal/service"
	"github.com/pricewatch/product-scraper/internal/session"
)

type Handlers struct {
	scraper *service.Scraper
	pool    *session.Pool
	logger  *slog.Logger
}

func NewHandlers(scraper *service.Scraper, pool *session.Pool, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper: scraper,
		pool:    pool,
		logger:  logger,
	}
}

// ScrapeRequest represents a POST scrape request
type ScrapeRequest struct {
	URL     string `json:"url"`
	Website string `json:"website"`
}

// ScrapeByQuery handles GET /api/scrape?url=...
func (h *Handlers) ScrapeByQuery(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		h.respondError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	site := r.URL.Query().Get("website")
	if site == "" {
		site = extractor.SiteMyntra
	}

	h.serveScrape(w, r, site, target)
}

// ScrapeByBody handles POST /api/scrape
func (h *Handlers) ScrapeByBody(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	site := strings.ToLower(req.Website)
	if site == "" {
		site = extractor.SiteMyntra
	}

	h.serveScrape(w, r, site, req.URL)
}

func (h *Handlers) serveScrape(w http.ResponseWriter, r *http.Request, site, target string) {
	result := h.scraper.ScrapeProduct(r.Context(), site, target)

	status := http.StatusOK
	if !result.Success {
		switch result.Error {
		case "unsupported website", "invalid target":
			status = http.StatusBadRequest
		case "deadline exceeded":
			status = http.StatusGatewayTimeout
		default:
			status = http.StatusBadGateway
		}
	}

	h.respondJSON(w, status, result)
}

// GetPriceHistory handles GET /api/price-history/{productID}
func (h *Handlers) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")
	if productID == "" {
		h.respondError(w, http.StatusBadRequest, "product ID is required")
		return
	}

	points, err := h.scraper.PriceHistory(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to get price history", "error", err, "product_id", productID)
		h.respondError(w, http.StatusInternalServerError, "failed to get price history")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"product_id": productID,
		"points":     points,
	})
}

// ExportProducts handles GET /api/products/export
func (h *Handlers) ExportProducts(w http.ResponseWriter, r *http.Request) {
	entries := h.scraper.Export(r.Context())
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(entries),
		"products": entries,
	})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	engine := "stopped"
	idle := 0
	if h.pool != nil {
		idle = h.pool.IdleCount()
		if h.pool.EngineRunning() {
			engine = "running"
		}
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        status,
		"engine":        engine,
		"idle_sessions": idle,
	})
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
