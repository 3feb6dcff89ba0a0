package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func New(connStr string) (*sql.DB, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// Capabilities records which optional schema features the connected database
// has. It is resolved once at startup; stores branch on the flags instead of
// probing for missing columns per request.
type Capabilities struct {
	// PromiseColumns is set when the sales table carries the promise-sale
	// columns (partial_payment_amount, remaining_payment_amount). Older
	// deployments predate them.
	PromiseColumns bool
}

func DetectCapabilities(ctx context.Context, db *sql.DB) (Capabilities, error) {
	query := `
		SELECT COUNT(*)
		FROM information_schema.columns
		WHERE table_name = 'sales'
		  AND column_name IN ('partial_payment_amount', 'remaining_payment_amount')
	`

	var count int
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return Capabilities{}, fmt.Errorf("detecting schema capabilities: %w", err)
	}

	return Capabilities{PromiseColumns: count == 2}, nil
}
