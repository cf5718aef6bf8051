package service

import (
	"context"
	"time"

	"bloodmatch/internal/repo"

	"go.uber.org/zap"
)

type LifecycleService struct {
	bloodRequestRepo repo.BloodRequest
	logger           *zap.Logger
}

func NewLifecycleService(deps Deps) *LifecycleService {
	return &LifecycleService{
		bloodRequestRepo: deps.Repos.BloodRequest,
		logger:           deps.Logger,
	}
}

// ExpireStaleRequests closes every open request whose expiry is at or before now,
// in one all-or-nothing batch, and returns how many were closed.
func (s *LifecycleService) ExpireStaleRequests(ctx context.Context, now time.Time) (int, error) {
	closed, err := s.bloodRequestRepo.CloseExpiredBloodRequests(ctx, now.UTC())
	if err != nil {
		s.logger.Error("Expiry sweep failed", zap.Time("now", now), zap.Error(err))
		return 0, storageError(err)
	}

	if closed > 0 {
		s.logger.Info("Expired blood requests closed", zap.Int64("count", closed))
	}

	return int(closed), nil
}
