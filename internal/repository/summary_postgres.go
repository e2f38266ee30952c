package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool, pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const upsertSummary = `
INSERT INTO consultation_summaries (
    consultation_id, template_id, template_name, session_id,
    outputs, summary, started_at, completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (consultation_id) DO UPDATE SET
    outputs = EXCLUDED.outputs,
    summary = EXCLUDED.summary,
    completed_at = EXCLUDED.completed_at`

const selectSummary = `
SELECT consultation_id, template_id, template_name, session_id,
       outputs, summary, started_at, completed_at
FROM consultation_summaries
WHERE consultation_id = $1`

// SummaryRepository archives finished consultation summaries
type SummaryRepository struct {
	db DBTX
}

func NewSummaryRepository(db DBTX) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) SaveSummary(ctx context.Context, summary *entity.ConsultationSummary) error {
	outputs, err := json.Marshal(summary.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}
	aggregated, err := json.Marshal(summary.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	var sessionID *string
	if summary.SessionID != nil {
		s := summary.SessionID.String()
		sessionID = &s
	}

	_, err = r.db.Exec(ctx, upsertSummary,
		summary.ConsultationID,
		summary.TemplateID,
		summary.TemplateName,
		sessionID,
		outputs,
		aggregated,
		summary.StartTime,
		summary.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert consultation summary: %w", err)
	}

	return nil
}

func (r *SummaryRepository) GetSummary(ctx context.Context, consultationID string) (*entity.ConsultationSummary, error) {
	var (
		summary    entity.ConsultationSummary
		sessionID  *string
		outputs    []byte
		aggregated []byte
	)

	err := r.db.QueryRow(ctx, selectSummary, consultationID).Scan(
		&summary.ConsultationID,
		&summary.TemplateID,
		&summary.TemplateName,
		&sessionID,
		&outputs,
		&aggregated,
		&summary.StartTime,
		&summary.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrConsultationNotFound
		}
		return nil, fmt.Errorf("query consultation summary: %w", err)
	}

	if sessionID != nil {
		sid := entity.SessionID(*sessionID)
		summary.SessionID = &sid
	}
	if err := json.Unmarshal(outputs, &summary.Outputs); err != nil {
		return nil, fmt.Errorf("unmarshal outputs: %w", err)
	}
	if len(aggregated) > 0 {
		if err := json.Unmarshal(aggregated, &summary.Summary); err != nil {
			return nil, fmt.Errorf("unmarshal summary: %w", err)
		}
	}
	summary.Completed = summary.CompletedAt != nil

	return &summary, nil
}
