package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"bloodmatch/internal/common"
	"bloodmatch/internal/entity"
	"bloodmatch/internal/export"
	"bloodmatch/internal/repo"
	"bloodmatch/internal/repo/repo_errors"
	"bloodmatch/pkg/classifier"

	"go.uber.org/zap"
)

// Column widths of donor_optin.
const (
	maxDonorNameLen    = 100
	maxDonorContactLen = 120
)

type OptInInput struct {
	RequestId int64
	Donor     entity.DonorInfo
	// Image is classified when present.
	Image []byte
	// ReportedConfidence comes from an earlier /predict call made by the client.
	// It is used when no image is sent or the classifier fails.
	ReportedConfidence *float64
	// ProceedWithoutPrediction records the opt-in even when the classifier failed
	// and nothing was reported.
	ProceedWithoutPrediction bool
	IpAddress                string
}

type DonorService struct {
	bloodRequestRepo repo.BloodRequest
	donorRepo        repo.Donor
	classifier       classifier.Classifier
	threshold        float64
	audit            *predictionAudit
	logger           *zap.Logger
	now              func() time.Time
}

func NewDonorService(deps Deps) *DonorService {
	now := clock(deps.Now)
	return &DonorService{
		bloodRequestRepo: deps.Repos.BloodRequest,
		donorRepo:        deps.Repos.Donor,
		classifier:       deps.Classifier,
		threshold:        deps.Threshold,
		audit: &predictionAudit{
			predictionRepo: deps.Repos.Prediction,
			logger:         deps.Logger,
			now:            now,
		},
		logger: deps.Logger,
		now:    now,
	}
}

func validateDonor(donor *entity.DonorInfo) error {
	donor.Name = strings.TrimSpace(donor.Name)
	donor.Contact = strings.TrimSpace(donor.Contact)

	if donor.Name == "" {
		return required("donor_name")
	}
	if donor.Contact == "" {
		return required("donor_contact")
	}
	if utf8.RuneCountInString(donor.Name) > maxDonorNameLen {
		return tooLong("donor_name", maxDonorNameLen)
	}
	if utf8.RuneCountInString(donor.Contact) > maxDonorContactLen {
		return tooLong("donor_contact", maxDonorContactLen)
	}
	if donor.BloodGroup == "" {
		return required("donor_blood_group")
	}
	if !common.IsBloodGroup(donor.BloodGroup) {
		return &ValidationError{Field: "donor_blood_group", Message: "should have value in: " + strings.Join(common.BloodGroups, " ")}
	}

	return nil
}

func validateProbability(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &ValidationError{Field: field, Message: "should be between 0 and 1"}
	}

	return nil
}

// checkOpen loads the request and rejects it unless it takes donors right now.
func (s *DonorService) checkOpen(ctx context.Context, requestId int64) error {
	request, err := s.bloodRequestRepo.GetBloodRequestById(ctx, requestId)
	if err != nil {
		if errors.Is(err, repo_errors.ErrNotFound) {
			return ErrRequestNotFound
		}

		return storageError(err)
	}

	if !request.AcceptsDonorsAt(s.now()) {
		return ErrRequestClosed
	}

	return nil
}

// SubmitOptIn records donor interest in an open request. The opt-in is stored
// whether or not the confidence clears threshold; the decision is returned, not
// stored. A nil result records the opt-in with no decision.
func (s *DonorService) SubmitOptIn(ctx context.Context, requestId int64, donor entity.DonorInfo, result *classifier.Prediction, threshold float64) (*entity.OptInResult, error) {
	if err := validateDonor(&donor); err != nil {
		return nil, err
	}
	if err := validateProbability("threshold", threshold); err != nil {
		return nil, err
	}
	if err := s.checkOpen(ctx, requestId); err != nil {
		return nil, err
	}
	if result != nil {
		// only the confidence decides admission
		if err := validateProbability("confidence", result.Confidence); err != nil {
			return nil, classifierError(fmt.Errorf("%w: %w", classifier.ErrMalformedOutput, err))
		}
		if err := classifier.Validate(result); err != nil {
			s.logger.Warn("Recording opt-in despite malformed prediction",
				zap.Int64("request_id", requestId),
				zap.Error(err),
			)
		}
	}

	return s.record(ctx, requestId, donor, result, threshold)
}

// OptIn resolves the prediction for the donor, then records the opt-in against
// the configured threshold.
func (s *DonorService) OptIn(ctx context.Context, input *OptInInput) (*entity.OptInResult, error) {
	if err := validateDonor(&input.Donor); err != nil {
		return nil, err
	}
	if input.ReportedConfidence != nil {
		if err := validateProbability("confidence", *input.ReportedConfidence); err != nil {
			return nil, err
		}
	}
	if err := s.checkOpen(ctx, input.RequestId); err != nil {
		return nil, err
	}

	result, err := s.resolvePrediction(ctx, input)
	if err != nil {
		return nil, err
	}

	return s.record(ctx, input.RequestId, input.Donor, result, s.threshold)
}

func (s *DonorService) resolvePrediction(ctx context.Context, input *OptInInput) (*classifier.Prediction, error) {
	var reported *classifier.Prediction
	if input.ReportedConfidence != nil {
		reported = &classifier.Prediction{Confidence: *input.ReportedConfidence}
	}

	if len(input.Image) == 0 {
		return reported, nil
	}

	p, err := s.classifier.Predict(ctx, input.Image)
	if err == nil {
		s.audit.record(ctx, p, input.IpAddress)
		return p, nil
	}

	s.logger.Warn("Classifier failed during opt-in",
		zap.Int64("request_id", input.RequestId),
		zap.Bool("has_reported_confidence", reported != nil),
		zap.Error(err),
	)

	switch {
	case reported != nil:
		return reported, nil
	case input.ProceedWithoutPrediction:
		return nil, nil
	default:
		return nil, classifierError(err)
	}
}

func (s *DonorService) record(ctx context.Context, requestId int64, donor entity.DonorInfo, result *classifier.Prediction, threshold float64) (*entity.OptInResult, error) {
	input := &entity.CreateDonorOptInInput{
		RequestId:       requestId,
		DonorName:       donor.Name,
		DonorContact:    donor.Contact,
		DonorBloodGroup: donor.BloodGroup,
		CreatedAt:       s.now(),
	}
	if result != nil {
		input.PredictionConfidence = result.Confidence
	}

	optIn, err := s.donorRepo.CreateDonorOptIn(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, repo_errors.ErrNotFound):
			return nil, ErrRequestNotFound
		case errors.Is(err, repo_errors.ErrRequestClosed):
			return nil, ErrRequestClosed
		}

		s.logger.Error("Failed to record donor opt-in", zap.Int64("request_id", requestId), zap.Error(err))
		return nil, storageError(err)
	}

	out := &entity.OptInResult{
		DonorId:             optIn.Id,
		RequestId:           optIn.RequestId,
		CreatedAt:           optIn.CreatedAt,
		PredictionAvailable: result != nil,
		Threshold:           threshold,
	}
	if result != nil {
		confidence := result.Confidence
		allowed := confidence >= threshold
		out.Confidence = &confidence
		out.AllowedToDonate = &allowed
	}

	s.logger.Info("Donor opted in",
		zap.Int64("request_id", requestId),
		zap.Int64("donor_id", optIn.Id),
		zap.Bool("prediction_available", out.PredictionAvailable),
	)

	return out, nil
}

func (s *DonorService) GetRequestDonors(ctx context.Context, requestId int64) ([]entity.DonorOutputModel, error) {
	donors, err := s.requestDonors(ctx, requestId)
	if err != nil {
		return nil, err
	}

	return mapDonors(donors), nil
}

func (s *DonorService) ExportRequestDonors(ctx context.Context, requestId int64) ([]byte, error) {
	request, err := s.bloodRequestRepo.GetBloodRequestById(ctx, requestId)
	if err != nil {
		if errors.Is(err, repo_errors.ErrNotFound) {
			return nil, ErrRequestNotFound
		}

		return nil, storageError(err)
	}

	donors, err := s.donorRepo.GetDonorsByRequestId(ctx, requestId)
	if err != nil {
		return nil, storageError(err)
	}

	return export.DonorsWorkbook(request, donors)
}

func (s *DonorService) requestDonors(ctx context.Context, requestId int64) ([]entity.DonorOptIn, error) {
	if _, err := s.bloodRequestRepo.GetBloodRequestById(ctx, requestId); err != nil {
		if errors.Is(err, repo_errors.ErrNotFound) {
			return nil, ErrRequestNotFound
		}

		return nil, storageError(err)
	}

	donors, err := s.donorRepo.GetDonorsByRequestId(ctx, requestId)
	if err != nil {
		return nil, storageError(err)
	}

	return donors, nil
}
