package centres

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

// NewService builds the centre service. activity may be nil.
func NewService(repo Repository, activity internalShared.ActivityRecorder) *Service {
	return &Service{repo: repo, activity: activity}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Centre, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Centre, error) {
	if id <= 0 {
		return Centre{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, centre Centre) (Centre, error) {
	centre.Reference = shared.NormalizeReference(centre.Reference)
	if err := s.validate(centre); err != nil {
		return Centre{}, err
	}
	created, err := s.repo.Create(ctx, centre)
	if err != nil {
		return Centre{}, err
	}
	s.record(ctx, internalShared.ActionCreate, created.ID,
		fmt.Sprintf("Created new medical centre (ID: %d)", created.ID))
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, centre Centre) (Centre, error) {
	if id <= 0 {
		return Centre{}, shared.ErrInvalidID
	}
	centre.Reference = shared.NormalizeReference(centre.Reference)
	if err := s.validate(centre); err != nil {
		return Centre{}, err
	}
	updated, err := s.repo.Update(ctx, id, centre)
	if err != nil {
		return Centre{}, err
	}
	s.record(ctx, internalShared.ActionUpdate, id,
		fmt.Sprintf("Updated medical centre (ID: %d)", id))
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, internalShared.ActionDelete, id,
		fmt.Sprintf("Deleted medical centre (ID: %d)", id))
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, description string) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, internalShared.ActivityEntry{
		Action:      action,
		Entity:      "medical_centres",
		EntityID:    id,
		Description: description,
	})
}
