// Package store persists harvested listings to PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/jmylchreest/propharvest/internal/listing"
	"github.com/jmylchreest/propharvest/internal/logger"
)

// PostgresStore upserts records into the listings table, keyed by URL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to dsn and creates the schema if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	schemaCtx, schemaCancel := context.WithTimeout(ctx, 10*time.Second)
	defer schemaCancel()
	if err := store.ensureSchema(schemaCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Name identifies the sink in diagnostics.
func (s *PostgresStore) Name() string {
	return "postgres"
}

// Write upserts records in one transaction.
func (s *PostgresStore) Write(ctx context.Context, baseURL string, records []listing.Record) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listings (
			url, base_url, name, description, address, price, area,
			characteristics, property_type, transaction_type, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (url) DO UPDATE
		SET
			base_url = EXCLUDED.base_url,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			address = EXCLUDED.address,
			price = EXCLUDED.price,
			area = EXCLUDED.area,
			characteristics = EXCLUDED.characteristics,
			property_type = EXCLUDED.property_type,
			transaction_type = EXCLUDED.transaction_type,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = NOW()`)
	if err != nil {
		return fmt.Errorf("prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if rec.URL == "" {
			continue
		}
		if _, err = stmt.ExecContext(ctx,
			rec.URL,
			baseURL,
			rec.Name,
			rec.Description,
			rec.Address,
			rec.Price,
			rec.Area,
			rec.Characteristics,
			rec.PropertyType,
			rec.TransactionType,
			rec.Latitude,
			rec.Longitude,
		); err != nil {
			return fmt.Errorf("upsert listing %q: %w", rec.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	total, err := s.Count(ctx, baseURL)
	if err != nil {
		logger.Warn("listings stored, total unknown", "base_url", baseURL, "count", len(records), "error", err)
		return nil
	}
	logger.Info("listings stored", "base_url", baseURL, "count", len(records), "total", total)
	return nil
}

// Count returns the number of stored listings for baseURL.
func (s *PostgresStore) Count(ctx context.Context, baseURL string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listings WHERE base_url = $1`, baseURL).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id BIGSERIAL PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			base_url TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '',
			area TEXT NOT NULL DEFAULT '',
			characteristics TEXT NOT NULL DEFAULT '',
			property_type TEXT NOT NULL DEFAULT '',
			transaction_type TEXT NOT NULL DEFAULT '',
			latitude TEXT NOT NULL DEFAULT '',
			longitude TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_listings_base_url ON listings(base_url);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
