package sqlrepo

import (
	"context"
	"database/sql"
	"errors"

	"bloodmatch/internal/entity"
	"bloodmatch/internal/repo/repo_errors"
	"bloodmatch/pkg/sqldb"
)

type DonorRepo struct {
	*sqldb.DB
}

func NewDonorRepo(db *sqldb.DB) *DonorRepo {
	return &DonorRepo{db}
}

func (r *DonorRepo) CreateDonorOptIn(ctx context.Context, input *entity.CreateDonorOptInInput) (*entity.DonorOptIn, error) {
	tx, err := r.Database.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	lockBuilder := r.SqlBuilder.
		Select("is_open", "expires_at").
		From("blood_requests").
		Where("id = ?", input.RequestId)
	if r.SupportsRowLocks() {
		lockBuilder = lockBuilder.Suffix("FOR UPDATE")
	}
	lockSql, args, err := lockBuilder.ToSql()
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	request := entity.BloodRequest{Id: input.RequestId}
	var expiresAt sql.NullTime
	if err = tx.QueryRowContext(ctx, lockSql, args...).Scan(&request.IsOpen, &expiresAt); err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo_errors.ErrNotFound
		}

		return nil, err
	}
	if expiresAt.Valid {
		request.ExpiresAt = &expiresAt.Time
	}

	if !request.AcceptsDonorsAt(input.CreatedAt) {
		_ = tx.Rollback()
		return nil, repo_errors.ErrRequestClosed
	}

	insertSql, args, err := r.SqlBuilder.
		Insert("donor_optin").
		Columns("request_id", "donor_name", "donor_contact", "donor_blood_group", "prediction_confidence", "created_at").
		Values(input.RequestId, input.DonorName, input.DonorContact, input.DonorBloodGroup, input.PredictionConfidence, input.CreatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	var id int64
	if err = tx.QueryRowContext(ctx, insertSql, args...).Scan(&id); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &entity.DonorOptIn{
		Id:                   id,
		RequestId:            input.RequestId,
		DonorName:            input.DonorName,
		DonorContact:         input.DonorContact,
		DonorBloodGroup:      input.DonorBloodGroup,
		PredictionConfidence: input.PredictionConfidence,
		CreatedAt:            input.CreatedAt,
	}, nil
}

func (r *DonorRepo) GetDonorsByRequestId(ctx context.Context, requestId int64) ([]entity.DonorOptIn, error) {
	listSql, args, err := r.SqlBuilder.
		Select("id", "request_id", "donor_name", "donor_contact", "donor_blood_group", "prediction_confidence", "created_at").
		From("donor_optin").
		Where("request_id = ?", requestId).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.Database.QueryContext(ctx, listSql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	donors := make([]entity.DonorOptIn, 0)
	for rows.Next() {
		var d entity.DonorOptIn
		if err := rows.Scan(&d.Id, &d.RequestId, &d.DonorName, &d.DonorContact,
			&d.DonorBloodGroup, &d.PredictionConfidence, &d.CreatedAt); err != nil {
			return donors, err
		}
		d.CreatedAt = d.CreatedAt.UTC()
		donors = append(donors, d)
	}
	if err = rows.Err(); err != nil {
		return donors, err
	}

	return donors, nil
}
