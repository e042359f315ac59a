package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
)

type AnalysisRepository struct{ db *sql.DB }

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository { return &AnalysisRepository{db: db} }

const selectRecord = `
SELECT id, test_type, file_count, status, error_kind, message,
       elapsed_seconds, duration_ms, created_at
FROM analysis_history`

// Save insert/update history record
func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO analysis_history
(id, test_type, file_count, status, error_kind, message,
 elapsed_seconds, duration_ms, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 error_kind = EXCLUDED.error_kind,
 message = EXCLUDED.message,
 elapsed_seconds = EXCLUDED.elapsed_seconds,
 duration_ms = EXCLUDED.duration_ms;`

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, stringOrDash(rec.TestType), rec.FileCount,
		stringOrDash(rec.Status), string(rec.ErrorKind), rec.Message,
		rec.ElapsedSeconds, rec.DurationMS, created,
	)
	return err
}

// Latest history entries, newest first
func (r *AnalysisRepository) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, selectRecord+"\nORDER BY created_at DESC\nLIMIT $1;", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Paginate with offset + limit (classic pagination)
func (r *AnalysisRepository) Paginate(ctx context.Context, page, pageSize int) (domain.PaginatedRecords, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	rows, err := r.db.QueryContext(ctx, selectRecord+"\nORDER BY created_at DESC\nLIMIT $1 OFFSET $2;", pageSize, offset)
	if err != nil {
		return domain.PaginatedRecords{}, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()
	recs, err := scanRecords(rows)
	if err != nil {
		return domain.PaginatedRecords{}, fmt.Errorf("scanning history: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_history;`).Scan(&total); err != nil {
		return domain.PaginatedRecords{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedRecords{
		Data:       recs,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: domain.TotalPages(int(total), pageSize),
	}, nil
}

func scanRecords(rows *sql.Rows) ([]*domain.Record, error) {
	var out []*domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := rows.Scan(
			&rec.ID, &rec.TestType, &rec.FileCount, &rec.Status, &rec.ErrorKind, &rec.Message,
			&rec.ElapsedSeconds, &rec.DurationMS, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
