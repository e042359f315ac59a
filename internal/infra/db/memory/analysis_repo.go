package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/bryanwahyu/neurally/internal/domain/analysis"
)

// AnalysisRepository keeps history in memory and is safe for concurrent use.
// It is the default when no database driver is configured.
type AnalysisRepository struct {
	mu   sync.RWMutex
	byID map[domain.RecordID]*domain.Record
	all  []*domain.Record
}

func NewAnalysisRepository() *AnalysisRepository {
	return &AnalysisRepository{byID: make(map[domain.RecordID]*domain.Record)}
}

// Save inserts or replaces a record.
func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := *rec
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[cp.ID]; ok {
		for i, existing := range r.all {
			if existing.ID == cp.ID {
				r.all[i] = &cp
				break
			}
		}
	} else {
		r.all = append(r.all, &cp)
	}
	r.byID[cp.ID] = &cp
	return nil
}

// newest first
func (r *AnalysisRepository) sorted() []*domain.Record {
	out := make([]*domain.Record, len(r.all))
	copy(out, r.all)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *AnalysisRepository) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.sorted()
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *AnalysisRepository) Paginate(ctx context.Context, page, pageSize int) (domain.PaginatedRecords, error) {
	if err := ctx.Err(); err != nil {
		return domain.PaginatedRecords{}, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.sorted()

	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return domain.PaginatedRecords{
		Data:       all[start:end],
		Page:       page,
		PageSize:   pageSize,
		Total:      int64(len(all)),
		TotalPages: domain.TotalPages(len(all), pageSize),
	}, nil
}
