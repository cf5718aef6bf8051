package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"bloodmatch/internal/common"
	"bloodmatch/internal/entity"
	"bloodmatch/internal/matching"
	"bloodmatch/internal/repo"
	"bloodmatch/internal/repo/repo_errors"

	"go.uber.org/zap"
)

type BloodRequestService struct {
	bloodRequestRepo repo.BloodRequest
	logger           *zap.Logger
	now              func() time.Time
}

func NewBloodRequestService(deps Deps) *BloodRequestService {
	return &BloodRequestService{
		bloodRequestRepo: deps.Repos.BloodRequest,
		logger:           deps.Logger,
		now:              clock(deps.Now),
	}
}

func validateCreateInput(input *entity.CreateBloodRequestInput, now time.Time) error {
	input.Title = strings.TrimSpace(input.Title)
	input.ContactName = strings.TrimSpace(input.ContactName)
	input.ContactPhone = strings.TrimSpace(input.ContactPhone)

	if input.Title == "" {
		return required("title")
	}
	if input.BloodGroup == "" {
		return required("blood_group")
	}
	if !common.IsBloodGroup(input.BloodGroup) {
		return &ValidationError{Field: "blood_group", Message: "should have value in: " + strings.Join(common.BloodGroups, " ")}
	}
	if input.ContactName == "" {
		return required("contact_name")
	}
	if input.ContactPhone == "" {
		return required("contact_phone")
	}

	for _, f := range []struct {
		name  string
		value string
		max   int
	}{
		{"title", input.Title, 200},
		{"contact_name", input.ContactName, 100},
		{"contact_phone", input.ContactPhone, 30},
		{"contact_email", input.ContactEmail, 120},
		{"address", input.Address, 300},
	} {
		if utf8.RuneCountInString(f.value) > f.max {
			return tooLong(f.name, f.max)
		}
	}

	if input.UnitsNeeded == 0 {
		input.UnitsNeeded = common.DefaultUnitsNeeded
	}
	if input.UnitsNeeded < 0 {
		return &ValidationError{Field: "units_needed", Message: "should be a positive integer"}
	}

	if (input.Lat == nil) != (input.Lng == nil) {
		return &ValidationError{Field: "lat", Message: "lat and lng must be given together"}
	}
	if input.Lat != nil {
		if math.IsNaN(*input.Lat) || *input.Lat < -90 || *input.Lat > 90 {
			return &ValidationError{Field: "lat", Message: "should be between -90 and 90"}
		}
		if math.IsNaN(*input.Lng) || *input.Lng < -180 || *input.Lng > 180 {
			return &ValidationError{Field: "lng", Message: "should be between -180 and 180"}
		}
	}

	if input.ExpiresAt != nil {
		expires := input.ExpiresAt.UTC()
		if !expires.After(now) {
			return &ValidationError{Field: "expires_at", Message: "should be in the future"}
		}
		input.ExpiresAt = &expires
	}

	return nil
}

func (s *BloodRequestService) CreateRequest(ctx context.Context, input *entity.CreateBloodRequestInput) (*entity.BloodRequestOutputModel, error) {
	now := s.now()
	if err := validateCreateInput(input, now); err != nil {
		return nil, err
	}
	input.CreatedAt = now

	id, err := s.bloodRequestRepo.CreateBloodRequest(ctx, input)
	if err != nil {
		s.logger.Error("Failed to create blood request", zap.Error(err))
		return nil, storageError(err)
	}

	request, err := s.bloodRequestRepo.GetBloodRequestById(ctx, id)
	if err != nil {
		return nil, storageError(err)
	}

	s.logger.Info("Blood request created",
		zap.Int64("request_id", id),
		zap.String("blood_group", request.BloodGroup),
		zap.Bool("has_location", request.Location() != nil),
	)

	return mapBloodRequest(request, now), nil
}

func (s *BloodRequestService) GetRequestById(ctx context.Context, id int64) (*entity.BloodRequestOutputModel, error) {
	request, err := s.bloodRequestRepo.GetBloodRequestById(ctx, id)
	if err != nil {
		if errors.Is(err, repo_errors.ErrNotFound) {
			return nil, ErrRequestNotFound
		}

		return nil, storageError(err)
	}

	return mapBloodRequest(request, s.now()), nil
}

func validateFilter(filter *entity.RequestFilter) error {
	if filter.Pagination == nil {
		filter.Pagination = entity.NewPaginationInput(common.DefaultPage, common.DefaultPerPage)
	}
	if filter.Pagination.Page <= 0 {
		return &ValidationError{Field: "page", Message: "should be greater or equal than 1"}
	}
	if filter.Pagination.PerPage <= 0 {
		return &ValidationError{Field: "per_page", Message: "should be greater or equal than 1"}
	}
	if filter.Pagination.PerPage > common.MaxPerPage {
		return &ValidationError{Field: "per_page", Message: "should be less or equal than 100"}
	}
	if filter.BloodGroup != "" && !common.IsBloodGroup(filter.BloodGroup) {
		return &ValidationError{Field: "blood_group", Message: "should have value in: " + strings.Join(common.BloodGroups, " ")}
	}
	if filter.RadiusKm != nil && (math.IsNaN(*filter.RadiusKm) || *filter.RadiusKm < 0) {
		return &ValidationError{Field: "radius_km", Message: "should be greater or equal than 0"}
	}

	return nil
}

// ListRequests returns one page of open requests and the size of the whole matching set.
func (s *BloodRequestService) ListRequests(ctx context.Context, filter *entity.RequestFilter) ([]entity.BloodRequestOutputModel, int, error) {
	if err := validateFilter(filter); err != nil {
		return nil, 0, err
	}

	now := s.now()
	requests, err := s.bloodRequestRepo.GetOpenBloodRequests(ctx, filter.BloodGroup, now)
	if err != nil {
		s.logger.Error("Failed to load open blood requests", zap.Error(err))
		return nil, 0, storageError(err)
	}

	radius := common.DefaultRadiusKm
	if filter.RadiusKm != nil {
		radius = *filter.RadiusKm
	}

	items, total := matching.Match(requests, matching.Criteria{
		Location: filter.Location,
		RadiusKm: radius,
		Page:     filter.Pagination.Page,
		PerPage:  filter.Pagination.PerPage,
	})

	return mapRequestViews(items, now), total, nil
}

func (s *BloodRequestService) CloseRequest(ctx context.Context, id int64) (*entity.BloodRequestOutputModel, error) {
	if err := s.bloodRequestRepo.CloseBloodRequestById(ctx, id); err != nil {
		if errors.Is(err, repo_errors.ErrNotFound) {
			return nil, ErrRequestNotFound
		}

		s.logger.Error("Failed to close blood request", zap.Int64("request_id", id), zap.Error(err))
		return nil, storageError(err)
	}

	request, err := s.bloodRequestRepo.GetBloodRequestById(ctx, id)
	if err != nil {
		return nil, storageError(err)
	}

	s.logger.Info("Blood request closed", zap.Int64("request_id", id))

	return mapBloodRequest(request, s.now()), nil
}
