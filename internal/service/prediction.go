package service

import (
	"context"
	"fmt"
	"time"

	"bloodmatch/internal/entity"
	"bloodmatch/internal/repo"
	"bloodmatch/pkg/classifier"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 1x1 PNG used to probe the predictor.
var healthProbeImage = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde" +
	"\x00\x00\x00\x0cIDATx\x9cc\xf8\x0f\x00\x00\x01\x01\x00\x05\x18\xd8N\x00\x00\x00\x00IEND\xaeB`\x82")

// predictionAudit appends prediction records. Failures are logged and dropped,
// they never fail the operation being audited.
type predictionAudit struct {
	predictionRepo repo.Prediction
	logger         *zap.Logger
	now            func() time.Time
}

func (a *predictionAudit) record(ctx context.Context, p *classifier.Prediction, ipAddress string) {
	record := &entity.PredictionRecord{
		Id:             uuid.New(),
		PredictedGroup: p.Label,
		Confidence:     p.Confidence,
		IpAddress:      ipAddress,
		CreatedAt:      a.now(),
	}

	if err := a.predictionRepo.CreatePredictionRecord(ctx, record); err != nil {
		a.logger.Warn("Failed to log prediction", zap.Error(err))
	}
}

type PredictionService struct {
	classifier classifier.Classifier
	threshold  float64
	audit      *predictionAudit
	logger     *zap.Logger
}

func NewPredictionService(deps Deps) *PredictionService {
	return &PredictionService{
		classifier: deps.Classifier,
		threshold:  deps.Threshold,
		audit: &predictionAudit{
			predictionRepo: deps.Repos.Prediction,
			logger:         deps.Logger,
			now:            clock(deps.Now),
		},
		logger: deps.Logger,
	}
}

func (s *PredictionService) Predict(ctx context.Context, image []byte, ipAddress string) (*entity.PredictionOutputModel, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	p, err := s.classifier.Predict(ctx, image)
	if err != nil {
		s.logger.Error("Model prediction error", zap.Error(err))
		return nil, classifierError(err)
	}

	s.audit.record(ctx, p, ipAddress)

	return &entity.PredictionOutputModel{
		PredictedGroup:       p.Label,
		Confidence:           round(p.Confidence, 4),
		ConfidencePercentage: round(p.Confidence*100, 2),
		AllowedToDonate:      p.Confidence >= s.threshold,
		Threshold:            s.threshold,
		Message:              fmt.Sprintf("Predicted blood group: %s with %.2f%% confidence", p.Label, p.Confidence*100),
	}, nil
}

func (s *PredictionService) Health(ctx context.Context) error {
	if _, err := s.classifier.Predict(ctx, healthProbeImage); err != nil {
		return classifierError(err)
	}

	return nil
}
