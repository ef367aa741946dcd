package models

import "time"

// CategoryInfo describes the catalog category a work item was discovered under
type CategoryInfo struct {
	Path       string `json:"path"`
	Breadcrumb string `json:"breadcrumb"`
}

// WorkItem is one product page to scrape. It is never mutated once enqueued.
type WorkItem struct {
	URL      string        `json:"url"`
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	Category *CategoryInfo `json:"category,omitempty"`
}

// Product is the record extracted from a product detail page
type Product struct {
	ProductID       int64    `json:"product_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Brand           string   `json:"brand,omitempty"`
	Category        string   `json:"category,omitempty"`
	Price           *float64 `json:"price,omitempty"`
	Currency        string   `json:"currency,omitempty"`
	StockStatus     string   `json:"stock_status"`
	Availability    bool     `json:"availability"`
	Materials       string   `json:"materials,omitempty"`
	CareInfo        string   `json:"care_info,omitempty"`
	Sizes           []string `json:"size,omitempty"`
	Colors          []string `json:"color,omitempty"`
	Images          []string `json:"images,omitempty"`
	ProductURL      string   `json:"product_url"`
	ScrapedCategory string   `json:"scraped_category,omitempty"`
	CategoryPath    string   `json:"category_path,omitempty"`
	ScrapeType      string   `json:"scrape_type"`
}

// EventType is the severity class of a progress event as seen by clients
type EventType string

const (
	EventInfo     EventType = "info"
	EventProgress EventType = "progress"
	EventSuccess  EventType = "success"
	EventWarning  EventType = "warning"
	EventError    EventType = "error"
)

// EventKind identifies the point in a run that produced a progress event
type EventKind string

const (
	KindConnection    EventKind = "connection"
	KindPoolInit      EventKind = "pool-init"
	KindDiscovery     EventKind = "discovery"
	KindItemStart     EventKind = "item-start"
	KindBatchStart    EventKind = "batch-start"
	KindBatchComplete EventKind = "batch-complete"
	KindRunComplete   EventKind = "run-complete"
	KindPersist       EventKind = "persist"
	KindError         EventKind = "error"
)

// Progress is a numeric progress snapshot
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// NewProgress builds a Progress, rounding the percentage to one decimal
func NewProgress(current, total int) *Progress {
	pct := 0.0
	if total > 0 {
		pct = float64(int(float64(current)/float64(total)*1000+0.5)) / 10
	}
	return &Progress{Current: current, Total: total, Percentage: pct}
}

// ProgressEvent is a notification broadcast to progress sinks
type ProgressEvent struct {
	Type      EventType `json:"type"`
	Kind      EventKind `json:"kind"`
	RunID     string    `json:"run_id,omitempty"`
	Message   string    `json:"message"`
	Progress  *Progress `json:"progress,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// RunSummary reports the final tallies of a batch run
type RunSummary struct {
	TotalFound      int `json:"totalFound"`
	TotalAttempted  int `json:"totalAttempted"`
	TotalSuccessful int `json:"totalSuccessful"`
	TotalFailed     int `json:"totalFailed"`
}

// PoolStats is a read-only snapshot of browser pool occupancy
type PoolStats struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Busy        int `json:"busy"`
	MaxCapacity int `json:"maxCapacity"`
}

// SelectionMode controls which of the discovered product links are scraped
type SelectionMode string

const (
	ModeLimit SelectionMode = "limit"
	ModeRange SelectionMode = "range"
	ModeFull  SelectionMode = "full"
)

// ScrapeOptions contains options for a search or category scrape
type ScrapeOptions struct {
	Mode        SelectionMode
	Limit       int
	StartIndex  int
	EndIndex    int
	Concurrency int
	SaveToDB    bool
}
