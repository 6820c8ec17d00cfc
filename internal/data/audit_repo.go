package data

// Package data provides PostgreSQL-backed repositories.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/campusworks/campus-ui-api/internal/ports"
)

// AuditRepo persists auth audit events. Record is best effort: failures
// are logged and swallowed so auditing can never break a login.
type AuditRepo struct {
	DB  *sql.DB
	log *slog.Logger
}

var _ ports.AuditSink = (*AuditRepo)(nil)

// NewAuditRepo creates an AuditRepo over the given database handle.
func NewAuditRepo(db *sql.DB, log *slog.Logger) *AuditRepo {
	if log == nil {
		log = slog.Default()
	}
	return &AuditRepo{DB: db, log: log.With("component", "audit")}
}

const auditColumns = `id, action, email, user_id, remote_addr, detail, occurred_at`

// Record inserts one audit event.
func (r *AuditRepo) Record(ctx context.Context, event ports.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO auth_audit (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.Action, event.Email, event.UserID,
		event.RemoteAddr, event.Detail, event.OccurredAt,
	)
	if err == nil {
		return
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgerrcode.IsIntegrityConstraintViolation(pgErr.Code) {
		// Duplicate event IDs come from at-least-once delivery; drop them.
		r.log.WarnContext(ctx, "audit event violates constraint, dropping",
			"action", event.Action, "pg_code", pgErr.Code)
		return
	}
	r.log.ErrorContext(ctx, "audit event insert failed",
		"action", event.Action, "error", err)
}

// Recent returns the newest events, newest first.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]ports.AuditEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+auditColumns+`
		FROM auth_audit
		ORDER BY occurred_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []ports.AuditEvent
	for rows.Next() {
		var e ports.AuditEvent
		if err := rows.Scan(&e.ID, &e.Action, &e.Email, &e.UserID, &e.RemoteAddr, &e.Detail, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// PurgeOlderThan deletes events past the retention window and reports how
// many were removed.
func (r *AuditRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM auth_audit WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge audit events: rows affected: %w", err)
	}
	return n, nil
}
