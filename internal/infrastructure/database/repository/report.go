package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"honeypot-lab/internal/domain/models"
	"honeypot-lab/internal/infrastructure/database"
)

const reportSchema = `
	CREATE TABLE IF NOT EXISTS callback_reports (
		id            UUID PRIMARY KEY,
		session_id    TEXT NOT NULL,
		payload       JSONB NOT NULL,
		status        TEXT NOT NULL,
		status_code   INTEGER NOT NULL DEFAULT 0,
		error         TEXT NOT NULL DEFAULT '',
		duration_ms   BIGINT NOT NULL DEFAULT 0,
		attempted_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_callback_reports_session
		ON callback_reports (session_id, attempted_at DESC);`

// ReportRepository archives callback delivery attempts
type ReportRepository struct {
	db database.DBTX
}

// NewReportRepository creates a new report repository
func NewReportRepository(db database.DBTX) *ReportRepository {
	return &ReportRepository{db: db}
}

// EnsureSchema creates the archive table if needed
func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, reportSchema); err != nil {
		return fmt.Errorf("failed to create callback_reports: %w", err)
	}
	return nil
}

// SaveDelivery inserts one delivery attempt
func (r *ReportRepository) SaveDelivery(ctx context.Context, d *models.ReportDelivery) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.AttemptedAt.IsZero() {
		d.AttemptedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(d.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
		INSERT INTO callback_reports (
			id, session_id, payload, status, status_code, error, duration_ms, attempted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		d.ID, d.SessionID, payload, string(d.Status), d.StatusCode, d.Error, d.DurationMs, d.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save report delivery: %w", err)
	}

	return nil
}

// ListBySession returns the most recent delivery attempts for a session
func (r *ReportRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]*models.ReportDelivery, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT id, session_id, payload, status, status_code, error, duration_ms, attempted_at
		FROM callback_reports
		WHERE session_id = $1
		ORDER BY attempted_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list report deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.ReportDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate report deliveries: %w", err)
	}

	return deliveries, nil
}

func scanDelivery(row pgx.Row) (*models.ReportDelivery, error) {
	var (
		d       models.ReportDelivery
		status  string
		payload []byte
	)

	err := row.Scan(&d.ID, &d.SessionID, &payload, &status, &d.StatusCode, &d.Error, &d.DurationMs, &d.AttemptedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan report delivery: %w", err)
	}

	d.Status = models.ReportStatus(status)
	if err := json.Unmarshal(payload, &d.Report); err != nil {
		return nil, fmt.Errorf("failed to decode report payload: %w", err)
	}

	return &d, nil
}

// Repositories holds all repository instances
type Repositories struct {
	Reports *ReportRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db database.DBTX) *Repositories {
	return &Repositories{
		Reports: NewReportRepository(db),
	}
}
