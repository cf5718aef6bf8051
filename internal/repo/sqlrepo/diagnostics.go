package sqlrepo

import (
	"context"

	"bloodmatch/pkg/sqldb"
)

type DiagnosticsRepo struct {
	*sqldb.DB
}

func NewDiagnosticsRepo(db *sqldb.DB) *DiagnosticsRepo {
	return &DiagnosticsRepo{db}
}

func (r *DiagnosticsRepo) Ping(ctx context.Context) error {
	return r.Database.PingContext(ctx)
}
