package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// OrdersRepository answers the closing-soon dedup question: does this
// recipient already have an order for every one of the given menu dates?
type OrdersRepository interface {
	BranchHasOrdersForDates(ctx context.Context, branchID int64, dates []string) (bool, error)
	CompanyHasOrdersForDates(ctx context.Context, companyID int64, dates []string) (bool, error)
}

type OrdersRepositoryImpl struct {
	db *sqlx.DB
}

func NewOrdersRepository(db *sqlx.DB) *OrdersRepositoryImpl {
	return &OrdersRepositoryImpl{db: db}
}

var _ OrdersRepository = (*OrdersRepositoryImpl)(nil)

func (r *OrdersRepositoryImpl) BranchHasOrdersForDates(ctx context.Context, branchID int64, dates []string) (bool, error) {
	return r.coversAllDates(ctx, `branch_id = ?`, branchID, dates)
}

func (r *OrdersRepositoryImpl) CompanyHasOrdersForDates(ctx context.Context, companyID int64, dates []string) (bool, error) {
	return r.coversAllDates(ctx, `company_id = ?`, companyID, dates)
}

func (r *OrdersRepositoryImpl) coversAllDates(ctx context.Context, ownerCond string, ownerID int64, dates []string) (bool, error) {
	if len(dates) == 0 {
		return true, nil
	}
	q := `
		SELECT COUNT(DISTINCT dispatch_date)
		  FROM orders
		 WHERE ` + ownerCond + ` AND status != 'cancelled' AND dispatch_date IN (?)
	`
	query, args, err := sqlx.In(q, ownerID, dates)
	if err != nil {
		return false, err
	}
	query = r.db.Rebind(query)

	var covered int
	if err := r.db.GetContext(ctx, &covered, query, args...); err != nil {
		return false, err
	}
	return covered >= len(uniqueDates(dates)), nil
}

func uniqueDates(dates []string) []string {
	seen := make(map[string]struct{}, len(dates))
	out := dates[:0:0]
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
