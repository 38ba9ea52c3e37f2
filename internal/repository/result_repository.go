// Package repository persists cracked results in PostgreSQL.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/doomedramen/autopwn-sub005/internal/results"
	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

// Open connects to PostgreSQL and verifies the connection
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// ResultRepository stores cracked records keyed by hash
type ResultRepository struct {
	db *sql.DB
}

// NewResultRepository creates a new instance of ResultRepository
func NewResultRepository(db *sql.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveBatch inserts records in one statement, skipping hashes already
// stored, and returns the number of new rows
func (r *ResultRepository) SaveBatch(ctx context.Context, records []results.CrackedRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	n := len(records)
	hashes := make([]string, 0, n)
	plaintexts := make([]string, 0, n)
	salts := make([]string, 0, n)
	hexes := make([]string, 0, n)
	bssids := make([]string, 0, n)
	stations := make([]string, 0, n)
	essids := make([]string, 0, n)
	found := make([]string, 0, n)

	for _, rec := range records {
		foundAt := rec.FoundAt
		if foundAt.IsZero() {
			foundAt = time.Now()
		}
		hashes = append(hashes, rec.Hash)
		plaintexts = append(plaintexts, rec.Plaintext)
		salts = append(salts, rec.Salt)
		hexes = append(hexes, rec.HexPlaintext)
		bssids = append(bssids, rec.BSSID)
		stations = append(stations, rec.StationMAC)
		essids = append(essids, rec.ESSID)
		found = append(found, foundAt.UTC().Format(time.RFC3339Nano))
	}

	query := `
		INSERT INTO cracked_results (hash, plaintext, salt, hex_plaintext, bssid, station_mac, essid, found_at)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[], $7::text[], $8::timestamptz[])
		ON CONFLICT (hash) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query,
		pq.Array(hashes),
		pq.Array(plaintexts),
		pq.Array(salts),
		pq.Array(hexes),
		pq.Array(bssids),
		pq.Array(stations),
		pq.Array(essids),
		pq.Array(found),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save cracked results: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted row count: %w", err)
	}

	debug.Info("Stored %d of %d cracked results", inserted, n)
	return inserted, nil
}

// List returns up to limit records, newest first
func (r *ResultRepository) List(ctx context.Context, limit int) ([]results.CrackedRecord, error) {
	query := `
		SELECT hash, plaintext, salt, hex_plaintext, bssid, station_mac, essid, found_at
		FROM cracked_results
		ORDER BY found_at DESC, hash
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cracked results: %w", err)
	}
	defer rows.Close()

	var records []results.CrackedRecord
	for rows.Next() {
		var rec results.CrackedRecord
		if err := rows.Scan(
			&rec.Hash,
			&rec.Plaintext,
			&rec.Salt,
			&rec.HexPlaintext,
			&rec.BSSID,
			&rec.StationMAC,
			&rec.ESSID,
			&rec.FoundAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cracked result: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cracked results: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records
func (r *ResultRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cracked_results`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cracked results: %w", err)
	}
	return count, nil
}
