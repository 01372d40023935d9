// Package store keeps an audit trail of ledger submissions in Postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/JonathanJFlores/sugarfunge-api/internal/errors"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Submission statuses.
const (
	StatusPending   = "pending"
	StatusFinalized = "finalized"
	StatusFailed    = "failed"
)

// Record is one row of the submissions table.
type Record struct {
	RequestID     string    `db:"request_id" json:"request_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Call          string    `db:"call" json:"call"`
	Signer        string    `db:"signer" json:"signer"`
	Status        string    `db:"status" json:"status"`
	ExtrinsicHash string    `db:"extrinsic_hash" json:"extrinsic_hash,omitempty"`
	BlockHash     string    `db:"block_hash" json:"block_hash,omitempty"`
	ErrorCode     string    `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage  string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Completion is the terminal state of a submission.
type Completion struct {
	Status        string
	ExtrinsicHash string
	BlockHash     string
	ErrorCode     string
	ErrorMessage  string
}

// =============================================================================
// Repository
// =============================================================================

// Repository reads and writes submission records.
type Repository struct {
	db *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Open connects to Postgres, checks the connection and applies migrations.
func Open(ctx context.Context, url string) (*Repository, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if err := Migrate(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Migrate applies the embedded schema migrations.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Create inserts a pending record. Inserting an existing request id is a
// no-op.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	if rec.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO submissions (request_id, user_id, call, signer, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO NOTHING`,
		rec.RequestID, rec.UserID, rec.Call, rec.Signer, rec.Status)
	if err != nil {
		return fmt.Errorf("insert submission %s: %w", rec.RequestID, err)
	}
	return nil
}

// Complete records the terminal state of a submission.
func (r *Repository) Complete(ctx context.Context, requestID string, c Completion) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE submissions
		SET status = $2, extrinsic_hash = $3, block_hash = $4,
		    error_code = $5, error_message = $6, updated_at = NOW()
		WHERE request_id = $1`,
		requestID, c.Status, c.ExtrinsicHash, c.BlockHash, c.ErrorCode, c.ErrorMessage)
	if err != nil {
		return fmt.Errorf("update submission %s: %w", requestID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("submission " + requestID)
	}
	return nil
}

// Get returns one record.
func (r *Repository) Get(ctx context.Context, requestID string) (*Record, error) {
	var rec Record
	err := r.db.GetContext(ctx, &rec, `
		SELECT request_id, user_id, call, signer, status, extrinsic_hash, block_hash,
		       error_code, error_message, created_at, updated_at
		FROM submissions WHERE request_id = $1`, requestID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("submission " + requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", requestID, err)
	}
	return &rec, nil
}

// ListByUser returns a user's most recent records, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var recs []Record
	err := r.db.SelectContext(ctx, &recs, `
		SELECT request_id, user_id, call, signer, status, extrinsic_hash, block_hash,
		       error_code, error_message, created_at, updated_at
		FROM submissions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return recs, nil
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}
