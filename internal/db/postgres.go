package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const deadLetterSchema = `
CREATE TABLE IF NOT EXISTS sheet_sync_dead_letters (
	id             BIGSERIAL PRIMARY KEY,
	correlation_id TEXT        NOT NULL,
	collection     TEXT        NOT NULL,
	record_id      TEXT        NOT NULL,
	sheet          TEXT        NOT NULL DEFAULT '',
	error_log      TEXT        NOT NULL DEFAULT '',
	attempts       INT         NOT NULL DEFAULT 0,
	status         TEXT        NOT NULL DEFAULT 'pending',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sheet_sync_dead_letters_status ON sheet_sync_dead_letters (status, created_at);
`

const deadLetterColumns = `id, correlation_id, collection, record_id, sheet, error_log, attempts, status, created_at, updated_at`

// PostgresRepository keeps failed sheet syncs for replay by the relay
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresRepository(ctx context.Context, connString string, logger *slog.Logger) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	repo := &PostgresRepository{pool: p, logger: logger}
	if _, err := p.Exec(ctx, deadLetterSchema); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to apply dead letter schema: %w", err)
	}

	logger.Info("Connected to Postgres dead letter store")
	return repo, nil
}

// Record stores a failed sync. It satisfies service.DeadLetterSink
func (r *PostgresRepository) Record(ctx context.Context, dl models.DeadLetter) error {
	query := `
		INSERT INTO sheet_sync_dead_letters (correlation_id, collection, record_id, sheet, error_log, attempts, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
	`
	_, err := r.pool.Exec(ctx, query, dl.CorrelationID, dl.Collection, dl.RecordID, dl.Sheet, dl.Error, dl.Attempts)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

// FetchAndClaim moves up to limit pending rows to processing. SKIP LOCKED lets
// several relays share the table
func (r *PostgresRepository) FetchAndClaim(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	query := `
		UPDATE sheet_sync_dead_letters
		SET status = 'processing', updated_at = CURRENT_TIMESTAMP
		WHERE id IN (
			SELECT id FROM sheet_sync_dead_letters
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + deadLetterColumns

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim dead letters: %w", err)
	}
	return collectDeadLetters(rows)
}

func (r *PostgresRepository) MarkResolved(ctx context.Context, id int64) error {
	query := `
		UPDATE sheet_sync_dead_letters
		SET status = 'resolved', attempts = attempts + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// MarkFailed returns the row to pending, or buries it once maxAttempts is reached
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errLog string, maxAttempts int) (string, error) {
	query := `
		UPDATE sheet_sync_dead_letters
		SET attempts = attempts + 1,
		    error_log = $2,
		    status = CASE WHEN attempts + 1 >= $3 THEN 'dead' ELSE 'pending' END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING status
	`
	var status string
	if err := r.pool.QueryRow(ctx, query, id, errLog, maxAttempts).Scan(&status); err != nil {
		return "", fmt.Errorf("mark dead letter %d failed: %w", id, err)
	}
	return status, nil
}

// ResetStale rescues rows left in processing by a relay that died mid-batch
func (r *PostgresRepository) ResetStale(ctx context.Context, olderThanMinutes int) (int64, error) {
	query := `
		UPDATE sheet_sync_dead_letters
		SET status = 'pending', updated_at = CURRENT_TIMESTAMP
		WHERE status = 'processing'
		  AND updated_at < CURRENT_TIMESTAMP - make_interval(mins => $1)
	`
	tag, err := r.pool.Exec(ctx, query, olderThanMinutes)
	if err != nil {
		return 0, fmt.Errorf("reset stale dead letters: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sheet_sync_dead_letters WHERE status IN ('pending', 'processing')`).Scan(&n)
	return n, err
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]models.DeadLetter, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deadLetterColumns+` FROM sheet_sync_dead_letters ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return collectDeadLetters(rows)
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

func collectDeadLetters(rows pgx.Rows) ([]models.DeadLetter, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DeadLetter, error) {
		var d models.DeadLetter
		err := row.Scan(
			&d.ID,
			&d.CorrelationID,
			&d.Collection,
			&d.RecordID,
			&d.Sheet,
			&d.Error,
			&d.Attempts,
			&d.Status,
			&d.CreatedAt,
			&d.UpdatedAt,
		)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan dead letters: %w", err)
	}
	return out, nil
}
