package repo

import (
	"context"
	"time"

	"bloodmatch/internal/entity"
	"bloodmatch/internal/repo/sqlrepo"
	"bloodmatch/pkg/sqldb"
)

type Diagnostics interface {
	Ping(ctx context.Context) error
}

type BloodRequest interface {
	CreateBloodRequest(ctx context.Context, input *entity.CreateBloodRequestInput) (int64, error)
	GetBloodRequestById(ctx context.Context, id int64) (*entity.BloodRequest, error)
	// GetOpenBloodRequests returns requests still open and not expired at now, newest first.
	GetOpenBloodRequests(ctx context.Context, bloodGroup string, now time.Time) ([]entity.BloodRequest, error)
	CloseBloodRequestById(ctx context.Context, id int64) error
	CloseExpiredBloodRequests(ctx context.Context, now time.Time) (int64, error)
}

type Donor interface {
	// CreateDonorOptIn fails with repo_errors.ErrNotFound or repo_errors.ErrRequestClosed
	// when the owning request cannot take donors at input.CreatedAt.
	CreateDonorOptIn(ctx context.Context, input *entity.CreateDonorOptInInput) (*entity.DonorOptIn, error)
	GetDonorsByRequestId(ctx context.Context, requestId int64) ([]entity.DonorOptIn, error)
}

type Prediction interface {
	CreatePredictionRecord(ctx context.Context, record *entity.PredictionRecord) error
}

type Repositories struct {
	Diagnostics
	BloodRequest
	Donor
	Prediction
}

func NewRepositories(db *sqldb.DB) *Repositories {
	return &Repositories{
		Diagnostics:  sqlrepo.NewDiagnosticsRepo(db),
		BloodRequest: sqlrepo.NewBloodRequestRepo(db),
		Donor:        sqlrepo.NewDonorRepo(db),
		Prediction:   sqlrepo.NewPredictionRepo(db),
	}
}
