package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/futig/sla-consultant/internal/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case **string:
			*p = r.values[i].(*string)
		case *[]byte:
			*p = r.values[i].([]byte)
		case *time.Time:
			*p = r.values[i].(time.Time)
		case **time.Time:
			*p = r.values[i].(*time.Time)
		}
	}
	return nil
}

type fakeDB struct {
	execSQL  string
	execArgs []any
	row      fakeRow
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = sql
	f.execArgs = args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.row
}

func TestSummaryRepository_SaveSummary(t *testing.T) {
	db := &fakeDB{}
	repo := NewSummaryRepository(db)

	sid := entity.SessionID("42")
	done := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	err := repo.SaveSummary(context.Background(), &entity.ConsultationSummary{
		ConsultationID: "c1",
		TemplateID:     "sla",
		TemplateName:   "SLA",
		SessionID:      &sid,
		Outputs:        []entity.StructuredOutput{{StageID: "s1", Data: map[string]any{"uptime": "99.9"}}},
		Summary:        map[string]any{"uptime": "99.9"},
		CompletedAt:    &done,
		Completed:      true,
	})
	require.NoError(t, err)

	assert.Contains(t, db.execSQL, "ON CONFLICT (consultation_id)")
	require.Len(t, db.execArgs, 8)
	assert.Equal(t, "c1", db.execArgs[0])
	assert.Equal(t, "42", *db.execArgs[3].(*string))
	assert.JSONEq(t, `{"uptime":"99.9"}`, string(db.execArgs[5].([]byte)))
}

func TestSummaryRepository_GetSummary(t *testing.T) {
	outputs, _ := json.Marshal([]entity.StructuredOutput{{StageID: "s1", StageNumber: 1}})
	sid := "42"
	done := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	db := &fakeDB{row: fakeRow{values: []any{
		"c1", "sla", "SLA", &sid, outputs, []byte(`{"a":1}`), done.Add(-time.Hour), &done,
	}}}

	summary, err := NewSummaryRepository(db).GetSummary(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, summary.Completed)
	assert.Equal(t, entity.SessionID("42"), *summary.SessionID)
	require.Len(t, summary.Outputs, 1)
	assert.Equal(t, "s1", summary.Outputs[0].StageID)
	assert.EqualValues(t, 1, summary.Summary["a"])
}

func TestSummaryRepository_GetSummaryNotFound(t *testing.T) {
	db := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}

	_, err := NewSummaryRepository(db).GetSummary(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrConsultationNotFound)
}
