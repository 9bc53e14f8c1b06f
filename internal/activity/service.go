package activity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	Window(ctx context.Context, f Filters, limit, offset int) ([]Entry, error)
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// Service coordinates reads over the audit trail.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService constructs the activity query service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Timeline fetches one page, newest first. It asks for one row beyond the
// page to learn whether a next page exists without counting the table.
func (s *Service) Timeline(ctx context.Context, filters Filters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("activity: repository not configured")
	}

	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.Window(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Purge drops entries older than the retention window and reports the
// number removed.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, errors.New("activity: repository not configured")
	}
	if retention <= 0 {
		return 0, fmt.Errorf("activity: retention must be positive, got %s", retention)
	}
	return s.repo.Purge(ctx, s.now().Add(-retention))
}
