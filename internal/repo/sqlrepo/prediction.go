package sqlrepo

import (
	"context"

	"bloodmatch/internal/entity"
	"bloodmatch/pkg/sqldb"
)

type PredictionRepo struct {
	*sqldb.DB
}

func NewPredictionRepo(db *sqldb.DB) *PredictionRepo {
	return &PredictionRepo{db}
}

func (r *PredictionRepo) CreatePredictionRecord(ctx context.Context, record *entity.PredictionRecord) error {
	insertSql, args, err := r.SqlBuilder.
		Insert("prediction_logs").
		Columns("id", "predicted_group", "confidence", "ip_address", "created_at").
		Values(record.Id, record.PredictedGroup, record.Confidence, record.IpAddress, record.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.Database.ExecContext(ctx, insertSql, args...)
	return err
}
