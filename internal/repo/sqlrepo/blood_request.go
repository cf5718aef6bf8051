package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bloodmatch/internal/entity"
	"bloodmatch/internal/repo/repo_errors"
	"bloodmatch/pkg/sqldb"

	"github.com/Masterminds/squirrel"
)

const bloodRequestColumns = "blood_requests.id, blood_requests.title, blood_requests.blood_group, blood_requests.units_needed, " +
	"blood_requests.contact_name, blood_requests.contact_phone, blood_requests.contact_email, blood_requests.address, " +
	"blood_requests.lat, blood_requests.lng, blood_requests.created_at, blood_requests.expires_at, " +
	"blood_requests.is_open, blood_requests.description, " +
	"(SELECT COUNT(*) FROM donor_optin WHERE donor_optin.request_id = blood_requests.id) AS donor_count"

type BloodRequestRepo struct {
	*sqldb.DB
}

func NewBloodRequestRepo(db *sqldb.DB) *BloodRequestRepo {
	return &BloodRequestRepo{db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBloodRequest(row rowScanner) (*entity.BloodRequest, error) {
	var r entity.BloodRequest
	var lat, lng sql.NullFloat64
	var expiresAt sql.NullTime
	err := row.Scan(&r.Id, &r.Title, &r.BloodGroup, &r.UnitsNeeded,
		&r.ContactName, &r.ContactPhone, &r.ContactEmail, &r.Address,
		&lat, &lng, &r.CreatedAt, &expiresAt,
		&r.IsOpen, &r.Description, &r.DonorCount)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		r.Lat, r.Lng = &lat.Float64, &lng.Float64
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		r.ExpiresAt = &t
	}
	r.CreatedAt = r.CreatedAt.UTC()

	return &r, nil
}

func (r *BloodRequestRepo) CreateBloodRequest(ctx context.Context, input *entity.CreateBloodRequestInput) (int64, error) {
	createSql, args, err := r.SqlBuilder.
		Insert("blood_requests").
		Columns("title", "blood_group", "units_needed", "contact_name", "contact_phone", "contact_email",
			"address", "lat", "lng", "created_at", "expires_at", "is_open", "description").
		Values(input.Title, input.BloodGroup, input.UnitsNeeded, input.ContactName, input.ContactPhone, input.ContactEmail,
			input.Address, input.Lat, input.Lng, input.CreatedAt, input.ExpiresAt, true, input.Description).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int64
	if err := r.Database.QueryRowContext(ctx, createSql, args...).Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

func (r *BloodRequestRepo) GetBloodRequestById(ctx context.Context, id int64) (*entity.BloodRequest, error) {
	getSql, args, err := r.SqlBuilder.
		Select(bloodRequestColumns).
		From("blood_requests").
		Where("blood_requests.id = ?", id).
		ToSql()
	if err != nil {
		return nil, err
	}

	request, err := scanBloodRequest(r.Database.QueryRowContext(ctx, getSql, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repo_errors.ErrNotFound
		}

		return nil, err
	}

	return request, nil
}

func (r *BloodRequestRepo) GetOpenBloodRequests(ctx context.Context, bloodGroup string, now time.Time) ([]entity.BloodRequest, error) {
	builder := r.SqlBuilder.
		Select(bloodRequestColumns).
		From("blood_requests").
		Where(squirrel.Eq{"blood_requests.is_open": true}).
		Where(squirrel.Or{
			squirrel.Eq{"blood_requests.expires_at": nil},
			squirrel.Gt{"blood_requests.expires_at": now},
		})

	if bloodGroup != "" {
		builder = builder.Where(squirrel.Eq{"blood_requests.blood_group": bloodGroup})
	}

	listSql, args, err := builder.
		OrderBy("blood_requests.created_at DESC", "blood_requests.id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.Database.QueryContext(ctx, listSql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]entity.BloodRequest, 0)
	for rows.Next() {
		request, err := scanBloodRequest(rows)
		if err != nil {
			return requests, err
		}
		requests = append(requests, *request)
	}
	if err = rows.Err(); err != nil {
		return requests, err
	}

	return requests, nil
}

// CloseBloodRequestById is idempotent, closing a closed request still succeeds.
func (r *BloodRequestRepo) CloseBloodRequestById(ctx context.Context, id int64) error {
	closeSql, args, err := r.SqlBuilder.
		Update("blood_requests").
		Set("is_open", false).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return err
	}

	res, err := r.Database.ExecContext(ctx, closeSql, args...)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repo_errors.ErrNotFound
	}

	return nil
}

func (r *BloodRequestRepo) CloseExpiredBloodRequests(ctx context.Context, now time.Time) (int64, error) {
	tx, err := r.Database.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	expireSql, args, err := r.SqlBuilder.
		Update("blood_requests").
		Set("is_open", false).
		Where(squirrel.Eq{"is_open": true}).
		Where(squirrel.NotEq{"expires_at": nil}).
		Where(squirrel.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	res, err := tx.ExecContext(ctx, expireSql, args...)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	closed, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return closed, nil
}
