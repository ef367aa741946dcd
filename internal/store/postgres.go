// Package store persists scraped products
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/law-makers/shopscrape/internal/retry"
	"github.com/law-makers/shopscrape/pkg/models"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var Schema string

const upsertSQL = `SELECT upsert_product(
	p_product_id => @product_id,
	p_name => @name,
	p_description => @description,
	p_brand => @brand,
	p_category => @category,
	p_price => @price,
	p_currency => @currency,
	p_stock_status => @stock_status,
	p_availability => @availability,
	p_materials => @materials,
	p_care_info => @care_info,
	p_sizes => @sizes,
	p_colors => @colors,
	p_images => @images,
	p_product_url => @product_url,
	p_scraped_category => @scraped_category,
	p_category_path => @category_path,
	p_scrape_type => @scrape_type
)`

// Persister saves a scraped product
type Persister interface {
	Save(ctx context.Context, p *models.Product) error
}

// Execer is the subset of pgxpool.Pool used by Postgres
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres upserts products through the upsert_product database function
type Postgres struct {
	db    Execer
	pool  *pgxpool.Pool
	retry retry.Config
}

// Open connects to the database at dsn and verifies the connection
func Open(ctx context.Context, dsn string, attempts int) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database dsn: %w", err)
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := NewPostgres(pool, attempts)
	p.pool = pool
	return p, nil
}

// NewPostgres wraps an existing connection. attempts bounds retries per save.
func NewPostgres(db Execer, attempts int) *Postgres {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialBackoff = 500 * time.Millisecond
	cfg.MaxBackoff = 5 * time.Second
	cfg.Jitter = 0.2
	cfg.Retryable = IsTransient
	cfg.Op = "save_product"
	return &Postgres{db: db, retry: cfg}
}

// EnsureSchema creates the products table and upsert function if missing
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Save upserts p, retrying transient failures
func (p *Postgres) Save(ctx context.Context, product *models.Product) error {
	args, err := upsertArgs(product)
	if err != nil {
		return err
	}

	err = retry.WithRetry(ctx, p.retry, func(ctx context.Context) error {
		_, err := p.db.Exec(ctx, upsertSQL, args)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save product %q: %w", product.Name, err)
	}

	log.Debug().
		Int64("product_id", product.ProductID).
		Str("url", product.ProductURL).
		Msg("Product saved")
	return nil
}

// Close releases the connection pool if Postgres owns one
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func upsertArgs(p *models.Product) (pgx.NamedArgs, error) {
	type image struct {
		URL string `json:"url"`
	}
	var images []byte
	if len(p.Images) > 0 {
		list := make([]image, len(p.Images))
		for i, u := range p.Images {
			list[i] = image{URL: u}
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("failed to encode images: %w", err)
		}
		images = raw
	}

	sizes := p.Sizes
	if len(sizes) == 0 {
		sizes = []string{"One Size"}
	}

	return pgx.NamedArgs{
		"product_id":       p.ProductID,
		"name":             p.Name,
		"description":      nullable(p.Description),
		"brand":            nullable(p.Brand),
		"category":         nullable(p.Category),
		"price":            p.Price,
		"currency":         nullable(p.Currency),
		"stock_status":     p.StockStatus,
		"availability":     p.Availability,
		"materials":        nullable(p.Materials),
		"care_info":        nullable(p.CareInfo),
		"sizes":            sizes,
		"colors":           p.Colors,
		"images":           images,
		"product_url":      p.ProductURL,
		"scraped_category": nullable(p.ScrapedCategory),
		"category_path":    nullable(p.CategoryPath),
		"scrape_type":      p.ScrapeType,
	}, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsTransient reports whether a database error is worth retrying
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08": // connection exception
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
			return true
		default:
			return false
		}
	}

	// network errors and the like
	return true
}
