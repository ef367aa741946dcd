package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/law-makers/shopscrape/internal/engine"
	"github.com/law-makers/shopscrape/internal/progress"
	"github.com/law-makers/shopscrape/internal/scraper"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

// Handlers serves the API routes
type Handlers struct {
	scraper Scraper
	pool    PoolStatter
	sink    progress.Sink
	version string
}

// NewHandlers creates the route handlers
func NewHandlers(s Scraper, pool PoolStatter, sink progress.Sink, version string) *Handlers {
	if sink == nil {
		sink = progress.Discard
	}
	return &Handlers{scraper: s, pool: pool, sink: sink, version: version}
}

// ScrapeRequest is the body of the product scrape endpoints
type ScrapeRequest struct {
	SearchTerm   string `json:"searchTerm,omitempty"`
	CategoryPath string `json:"categoryPath,omitempty"`
	Mode         string `json:"mode,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	StartIndex   int    `json:"startIndex,omitempty"`
	EndIndex     int    `json:"endIndex,omitempty"`
	Concurrency  int    `json:"concurrency,omitempty"`
	SaveToDB     bool   `json:"saveToDb"`
}

func (req ScrapeRequest) options() models.ScrapeOptions {
	return models.ScrapeOptions{
		Mode:        models.SelectionMode(req.Mode),
		Limit:       req.Limit,
		StartIndex:  req.StartIndex,
		EndIndex:    req.EndIndex,
		Concurrency: req.Concurrency,
		SaveToDB:    req.SaveToDB,
	}
}

// ScrapeResponse is returned by a successful scrape
type ScrapeResponse struct {
	Success         bool              `json:"success"`
	Version         string            `json:"version"`
	Type            string            `json:"type"`
	Query           string            `json:"query,omitempty"`
	CategoryName    string            `json:"categoryName,omitempty"`
	CategoryPath    string            `json:"categoryPath,omitempty"`
	RunID           string            `json:"runId"`
	Mode            string            `json:"mode"`
	Count           int               `json:"count"`
	SavedToDatabase bool              `json:"savedToDatabase"`
	Summary         models.RunSummary `json:"summary"`
	Duration        string            `json:"duration"`
	Results         []*models.Product `json:"results"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Example any    `json:"example,omitempty"`

	// set when a run failed after it started scraping
	RunID   string             `json:"runId,omitempty"`
	Count   *int               `json:"count,omitempty"`
	Summary *models.RunSummary `json:"summary,omitempty"`
	Results []*models.Product  `json:"results,omitempty"`
}

// Index describes the API
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	base := "/api/" + APIVersion
	h.respondJSON(w, http.StatusOK, map[string]any{
		"name":    "ASOS Product Scraper API",
		"version": h.version,
		"status":  "active",
		"endpoints": map[string]string{
			"health":           "GET " + base + "/health",
			"categories":       "GET " + base + "/categories",
			"searchProducts":   "POST " + base + "/products/search",
			"categoryProducts": "POST " + base + "/products/category",
			"poolStats":        "GET " + base + "/admin/pool-stats",
			"progress":         "GET /ws (WebSocket)",
		},
		"usage": map[string]any{
			"search": map[string]any{
				"endpoint": "POST " + base + "/products/search",
				"body":     searchExample,
			},
			"category": map[string]any{
				"endpoint": "POST " + base + "/products/category",
				"body":     categoryExample,
			},
		},
	})
}

var (
	searchExample   = ScrapeRequest{SearchTerm: "dress", Mode: string(models.ModeLimit), Limit: 10}
	categoryExample = ScrapeRequest{CategoryPath: "women.clothing.tops.t-shirts", Mode: string(models.ModeLimit), Limit: 10}
)

// Health reports liveness and browser pool occupancy
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"status":      "healthy",
		"version":     h.version,
		"timestamp":   time.Now().UTC(),
		"browserPool": h.pool.Stats(),
	})
}

// Categories lists the category tree and every valid dotted path
func (h *Handlers) Categories(w http.ResponseWriter, r *http.Request) {
	tree := h.scraper.Tree()
	h.respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"version":    h.version,
		"categories": tree,
		"paths":      tree.Paths(),
	})
}

// PoolStats reports browser pool occupancy
func (h *Handlers) PoolStats(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"version":   h.version,
		"poolStats": h.pool.Stats(),
		"timestamp": time.Now().UTC(),
	})
}

// SearchProducts scrapes the products found for a search term
func (h *Handlers) SearchProducts(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Example: searchExample})
		return
	}
	if req.SearchTerm == "" {
		h.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "searchTerm is required", Example: searchExample})
		return
	}

	res, err := h.scraper.Search(r.Context(), req.SearchTerm, req.options(), h.sink)
	if err != nil {
		h.respondScrapeError(w, res, err, "search_error", req.SearchTerm)
		return
	}

	resp := h.scrapeResponse("search", res, req)
	resp.Query = req.SearchTerm
	h.respondJSON(w, http.StatusOK, resp)
}

// CategoryProducts scrapes the products listed under a category path
func (h *Handlers) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Example: categoryExample})
		return
	}
	if req.CategoryPath == "" {
		h.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "categoryPath is required", Example: categoryExample})
		return
	}
	if _, err := h.scraper.Tree().Lookup(req.CategoryPath); err != nil {
		h.respondJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("Invalid category path: %s", req.CategoryPath),
			Hint:  fmt.Sprintf("Use GET /api/%s/categories to see available categories", APIVersion),
		})
		return
	}

	res, err := h.scraper.Category(r.Context(), req.CategoryPath, req.options(), h.sink)
	if err != nil {
		h.respondScrapeError(w, res, err, "category_error", req.CategoryPath)
		return
	}

	resp := h.scrapeResponse("category", res, req)
	resp.CategoryPath = req.CategoryPath
	if res.Category != nil {
		resp.CategoryName = res.Category.Breadcrumb
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) scrapeResponse(kind string, res *scraper.Result, req ScrapeRequest) ScrapeResponse {
	return ScrapeResponse{
		Success:         true,
		Version:         h.version,
		Type:            kind,
		RunID:           res.RunID,
		Mode:            string(res.Mode),
		Count:           len(res.Products),
		SavedToDatabase: req.SaveToDB && h.scraper.CanPersist(),
		Summary:         res.Summary,
		Duration:        res.Duration.Round(time.Millisecond).String(),
		Results:         res.Products,
	}
}

// respondScrapeError maps validation failures to 400 and everything else to 500.
// Products scraped before the failure are returned alongside the error.
func (h *Handlers) respondScrapeError(w http.ResponseWriter, res *scraper.Result, err error, errType, subject string) {
	status := http.StatusInternalServerError
	var ee *engine.EngineError
	if errors.As(err, &ee) && ee.Code == engine.ErrCodeValidation {
		status = http.StatusBadRequest
	} else if errors.Is(err, engine.ErrInvalidCategory) {
		status = http.StatusBadRequest
	}

	resp := errorResponse{Error: err.Error(), Type: errType}
	if res != nil {
		count := len(res.Products)
		resp.RunID = res.RunID
		resp.Count = &count
		resp.Summary = &res.Summary
		resp.Results = res.Products
	}

	log.Error().Err(err).Str("type", errType).Str("subject", subject).Int("status", status).Msg("Scrape request failed")
	h.respondJSON(w, status, resp)
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
