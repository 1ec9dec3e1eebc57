package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PricePoint is a single observed price for a product.
type PricePoint struct {
	ProductID  string    `json:"product_id"`
	Price      string    `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

const historyWindow = 30

// History keeps a rolling window of observed prices per product in
// Postgres. Like the mirror, writes are best-effort from the caller's
// point of view.
type History struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewHistory(ctx context.Context, dsn string) (*History, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	h := &History{
		pool:   pool,
		logger: slog.Default().With("component", "price-history"),
	}

	if err := h.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return h, nil
}

func (h *History) migrate(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS price_history (
			id BIGSERIAL PRIMARY KEY,
			product_id TEXT NOT NULL,
			price TEXT NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_price_history_product
			ON price_history (product_id, observed_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create price_history table: %w", err)
	}
	return nil
}

// RecordPrice appends an observation and prunes the window down to the
// most recent entries for that product.
func (h *History) RecordPrice(ctx context.Context, productID, price string) error {
	if productID == "" || price == "" || price == "N/A" {
		return nil
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO price_history (product_id, price) VALUES ($1, $2)
	`, productID, price)
	if err != nil {
		return fmt.Errorf("failed to record price: %w", err)
	}

	_, err = h.pool.Exec(ctx, `
		DELETE FROM price_history
		WHERE product_id = $1
		  AND id NOT IN (
			SELECT id FROM price_history
			WHERE product_id = $1
			ORDER BY observed_at DESC, id DESC
			LIMIT $2
		  )
	`, productID, historyWindow)
	if err != nil {
		return fmt.Errorf("failed to prune price history: %w", err)
	}

	return nil
}

// PriceHistory returns observations for a product, oldest first.
func (h *History) PriceHistory(ctx context.Context, productID string) ([]PricePoint, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT product_id, price, observed_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY observed_at ASC, id ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	points := make([]PricePoint, 0, historyWindow)
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.ProductID, &p.Price, &p.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price history: %w", err)
	}

	return points, nil
}

func (h *History) Close() {
	h.pool.Close()
}
