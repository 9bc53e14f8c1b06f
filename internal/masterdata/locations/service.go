package locations

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

// NewService builds the location service. activity may be nil.
func NewService(repo Repository, activity internalShared.ActivityRecorder) *Service {
	return &Service{repo: repo, activity: activity}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, location Location) (Location, error) {
	location.Reference = shared.NormalizeReference(location.Reference)
	if err := s.validate(location); err != nil {
		return Location{}, err
	}
	created, err := s.repo.Create(ctx, location)
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, internalShared.ActionCreate, created.ID,
		fmt.Sprintf("Created new distribution location (ID: %d)", created.ID))
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, location Location) (Location, error) {
	if id <= 0 {
		return Location{}, shared.ErrInvalidID
	}
	location.Reference = shared.NormalizeReference(location.Reference)
	if err := s.validate(location); err != nil {
		return Location{}, err
	}
	updated, err := s.repo.Update(ctx, id, location)
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, internalShared.ActionUpdate, id,
		fmt.Sprintf("Updated distribution location (ID: %d)", id))
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
		fmt.Sprintf("Deleted distribution location (ID: %d)", id))
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, description string) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, internalShared.ActivityEntry{
		Action:      action,
		Entity:      "distribution_locations",
		EntityID:    id,
		Description: description,
	})
}
