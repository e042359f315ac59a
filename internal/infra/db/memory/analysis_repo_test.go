package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
)

func TestSaveLatestPaginate(t *testing.T) {
	repo := NewAnalysisRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		rec := &domain.Record{
			ID:        domain.RecordID(fmt.Sprintf("r%02d", i)),
			TestType:  domain.TestSustainedVowel,
			Status:    domain.KindSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := repo.Latest(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 3 || latest[0].ID != "r24" {
		t.Fatalf("latest = %v", latest)
	}

	page, err := repo.Paginate(ctx, 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 25 || page.TotalPages != 3 || len(page.Data) != 5 {
		t.Fatalf("page = %+v", page)
	}
	if page.Data[4].ID != "r00" {
		t.Fatalf("last record = %s", page.Data[4].ID)
	}

	empty, err := repo.Paginate(ctx, 9, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Data) != 0 {
		t.Fatalf("beyond last page should be empty, got %d", len(empty.Data))
	}
}

func TestSaveReplacesByID(t *testing.T) {
	repo := NewAnalysisRepository()
	ctx := context.Background()
	rec := &domain.Record{ID: "x", Status: domain.KindError, CreatedAt: time.Now()}
	_ = repo.Save(ctx, rec)
	rec.Status = domain.KindSuccess
	_ = repo.Save(ctx, rec)

	list, _ := repo.Latest(ctx, 10)
	if len(list) != 1 || list[0].Status != domain.KindSuccess {
		t.Fatalf("list = %+v", list)
	}
}
