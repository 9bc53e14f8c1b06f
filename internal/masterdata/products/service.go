package products

import (
	"context"
	"fmt"

	"github.com/alnoor-medical/stocktrack/internal/masterdata/shared"
	internalShared "github.com/alnoor-medical/stocktrack/internal/shared"
)

type Service struct {
	repo     Repository
	activity internalShared.ActivityRecorder
}

// NewService builds the product service. activity may be nil.
func NewService(repo Repository, activity internalShared.ActivityRecorder) *Service {
	return &Service{repo: repo, activity: activity}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	product.Reference = shared.NormalizeReference(product.Reference)
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, internalShared.ActionCreate, created.ID,
		fmt.Sprintf("Created new product (ID: %d)", created.ID),
		map[string]any{"name": created.Name, "reference": created.Reference})
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, product Product) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	product.Reference = shared.NormalizeReference(product.Reference)
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	updated, err := s.repo.Update(ctx, id, product)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, internalShared.ActionUpdate, id,
		fmt.Sprintf("Updated product (ID: %d)", id),
		map[string]any{"name": updated.Name, "reference": updated.Reference})
	return updated, nil
}

// Delete removes the product and its stock lots. It fails with ErrInUse
// while any patient coupon references the product.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, internalShared.ActionDelete, id,
		fmt.Sprintf("Deleted product (ID: %d)", id), nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, description string, values map[string]any) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, internalShared.ActivityEntry{
		Action:      action,
		Entity:      "products",
		EntityID:    id,
		Description: description,
		NewValues:   values,
	})
}
