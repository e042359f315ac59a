package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
)

func TestSaveUsesOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewAnalysisRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (id) DO UPDATE")).
		WithArgs("rec-9", "PR", 1, "success", "", "PR processing completed", 3.25, int64(3300), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Save(context.Background(), &domain.Record{
		ID:             "rec-9",
		TestType:       domain.TestParagraphReading,
		FileCount:      1,
		Status:         domain.KindSuccess,
		Message:        "PR processing completed",
		ElapsedSeconds: 3.25,
		DurationMS:     3300,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestLatestDefaultsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "test_type", "file_count", "status", "error_kind", "message",
			"elapsed_seconds", "duration_ms", "created_at",
		}).AddRow("x", "SV", 1, "error", "module_configuration", "not configured", 0.0, int64(40), now))

	list, err := NewAnalysisRepository(db).Latest(context.Background(), 0)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(list) != 1 || list[0].ErrorKind != domain.ErrorModuleConfig {
		t.Fatalf("list = %+v", list)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
