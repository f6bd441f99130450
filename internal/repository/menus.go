package repository

import (
	"context"
	"time"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// MenusRepository provides the read-only menu queries the eligibility
// strategies need.
type MenusRepository interface {
	CreatedSince(ctx context.Context, since time.Time, scope model.AudienceScope) ([]model.Menu, error)
	ClosingBefore(ctx context.Context, until time.Time, scope model.AudienceScope) ([]model.Menu, error)
}

type MenusRepositoryImpl struct {
	db *sqlx.DB
}

func NewMenusRepository(db *sqlx.DB) *MenusRepositoryImpl {
	return &MenusRepositoryImpl{db: db}
}

var _ MenusRepository = (*MenusRepositoryImpl)(nil)

const menuColumns = `
	id, title, active, role_id, permission_id, publication_date, max_order_date, created_at
`

func (r *MenusRepositoryImpl) CreatedSince(ctx context.Context, since time.Time, scope model.AudienceScope) ([]model.Menu, error) {
	return r.list(ctx, `created_at >= ?`, since, scope)
}

func (r *MenusRepositoryImpl) ClosingBefore(ctx context.Context, until time.Time, scope model.AudienceScope) ([]model.Menu, error) {
	return r.list(ctx, `max_order_date BETWEEN NOW() AND ?`, until, scope)
}

func (r *MenusRepositoryImpl) list(ctx context.Context, cond string, boundary time.Time, scope model.AudienceScope) ([]model.Menu, error) {
	q := `
		SELECT ` + menuColumns + `
		  FROM menus
		 WHERE active = 1 AND ` + cond
	args := []any{boundary}

	if len(scope.RoleIDs) > 0 {
		q += " AND role_id IN (?)"
		args = append(args, scope.RoleIDs)
	}
	if len(scope.PermissionIDs) > 0 {
		q += " AND permission_id IN (?)"
		args = append(args, scope.PermissionIDs)
	}
	q += " ORDER BY publication_date"

	query, inArgs, err := sqlx.In(q, args...)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var menus []model.Menu
	if err := r.db.SelectContext(ctx, &menus, query, inArgs...); err != nil {
		return nil, err
	}
	return menus, nil
}
