package service

import (
	"context"
	"time"

	"bloodmatch/internal/entity"
	"bloodmatch/internal/repo"
	"bloodmatch/pkg/classifier"

	"go.uber.org/zap"
)

type Diagnostics interface {
	Ping(ctx context.Context) error
}

type BloodRequest interface {
	CreateRequest(ctx context.Context, input *entity.CreateBloodRequestInput) (*entity.BloodRequestOutputModel, error)
	GetRequestById(ctx context.Context, id int64) (*entity.BloodRequestOutputModel, error)
	ListRequests(ctx context.Context, filter *entity.RequestFilter) ([]entity.BloodRequestOutputModel, int, error)
	CloseRequest(ctx context.Context, id int64) (*entity.BloodRequestOutputModel, error)
}

type Lifecycle interface {
	ExpireStaleRequests(ctx context.Context, now time.Time) (int, error)
}

type Donor interface {
	SubmitOptIn(ctx context.Context, requestId int64, donor entity.DonorInfo, result *classifier.Prediction, threshold float64) (*entity.OptInResult, error)
	OptIn(ctx context.Context, input *OptInInput) (*entity.OptInResult, error)
	GetRequestDonors(ctx context.Context, requestId int64) ([]entity.DonorOutputModel, error)
	ExportRequestDonors(ctx context.Context, requestId int64) ([]byte, error)
}

type Prediction interface {
	Predict(ctx context.Context, image []byte, ipAddress string) (*entity.PredictionOutputModel, error)
	Health(ctx context.Context) error
}

type Services struct {
	Diagnostics  Diagnostics
	BloodRequest BloodRequest
	Lifecycle    Lifecycle
	Donor        Donor
	Prediction   Prediction
}

type Deps struct {
	Repos      *repo.Repositories
	Classifier classifier.Classifier
	Threshold  float64
	Logger     *zap.Logger
	// Now defaults to the wall clock.
	Now func() time.Time
}

func NewServices(deps Deps) *Services {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Classifier == nil {
		deps.Classifier = classifier.Unavailable()
	}

	return &Services{
		Diagnostics:  NewDiagnosticsService(deps.Repos),
		BloodRequest: NewBloodRequestService(deps),
		Lifecycle:    NewLifecycleService(deps),
		Donor:        NewDonorService(deps),
		Prediction:   NewPredictionService(deps),
	}
}

// clock returns UTC at the precision postgres stores.
func clock(now func() time.Time) func() time.Time {
	return func() time.Time {
		return now().UTC().Truncate(time.Microsecond)
	}
}
