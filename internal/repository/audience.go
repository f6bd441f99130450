package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/feastly/reminder-gateway/internal/model"
	"github.com/feastly/reminder-gateway/internal/util"
	"github.com/jmoiron/sqlx"
)

// AudienceRepository resolves a campaign's audience scope into recipients and
// doubles as the phone directory for inbound attribution. Branch contact
// numbers win over the company number; one recipient per phone.
type AudienceRepository interface {
	Recipients(ctx context.Context, campaignID int64) ([]model.Recipient, error)
	Scope(ctx context.Context, campaignID int64) (model.AudienceScope, error)
	// ResolveOwner maps an inbound phone number to the company/branch it
	// belongs to, or nil for an unknown contact.
	ResolveOwner(ctx context.Context, phone string) (*model.Recipient, error)
}

type AudienceRepositoryImpl struct {
	db *sqlx.DB
}

func NewAudienceRepository(db *sqlx.DB) *AudienceRepositoryImpl {
	return &AudienceRepositoryImpl{db: db}
}

var _ AudienceRepository = (*AudienceRepositoryImpl)(nil)

type audienceRow struct {
	CompanyID    int64          `db:"company_id"`
	CompanyPhone sql.NullString `db:"company_phone"`
	BranchID     sql.NullInt64  `db:"branch_id"`
	BranchPhone  sql.NullString `db:"branch_phone"`
}

func (r *AudienceRepositoryImpl) Recipients(ctx context.Context, campaignID int64) ([]model.Recipient, error) {
	var rows []audienceRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT cc.company_id          AS company_id,
		       co.phone_number        AS company_phone,
		       b.id                   AS branch_id,
		       b.contact_phone_number AS branch_phone
		  FROM campaign_companies cc
		  JOIN companies co ON co.id = cc.company_id
		  LEFT JOIN branches b ON b.company_id = co.id
		   AND (NOT EXISTS (SELECT 1 FROM campaign_branches cb WHERE cb.campaign_id = cc.campaign_id)
		        OR EXISTS (SELECT 1 FROM campaign_branches cb
		                    WHERE cb.campaign_id = cc.campaign_id AND cb.branch_id = b.id))
		 WHERE cc.campaign_id = ?
		 ORDER BY cc.company_id, b.id
	`, campaignID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(rows))
	recipients := make([]model.Recipient, 0, len(rows))

	add := func(rec model.Recipient) {
		if rec.PhoneNumber == "" {
			return
		}
		if _, ok := seen[rec.PhoneNumber]; ok {
			return
		}
		seen[rec.PhoneNumber] = struct{}{}
		recipients = append(recipients, rec)
	}

	for _, row := range rows {
		// branch contact first, company number as fallback
		if row.BranchID.Valid && row.BranchPhone.String != "" {
			branchID := row.BranchID.Int64
			add(model.Recipient{
				PhoneNumber: util.NormalizePhone(row.BranchPhone.String),
				SourceType:  model.SourceBranch,
				CompanyID:   row.CompanyID,
				BranchID:    &branchID,
			})
			continue
		}
		add(model.Recipient{
			PhoneNumber: util.NormalizePhone(row.CompanyPhone.String),
			SourceType:  model.SourceCompany,
			CompanyID:   row.CompanyID,
		})
	}
	return recipients, nil
}

func (r *AudienceRepositoryImpl) Scope(ctx context.Context, campaignID int64) (model.AudienceScope, error) {
	var scope model.AudienceScope

	err := r.db.SelectContext(ctx, &scope.RoleIDs, `
		SELECT DISTINCT ur.role_id
		  FROM campaign_companies cc
		  JOIN users u ON u.company_id = cc.company_id
		  JOIN user_roles ur ON ur.user_id = u.id
		 WHERE cc.campaign_id = ?
	`, campaignID)
	if err != nil {
		return model.AudienceScope{}, err
	}

	err = r.db.SelectContext(ctx, &scope.PermissionIDs, `
		SELECT DISTINCT up.permission_id
		  FROM campaign_companies cc
		  JOIN users u ON u.company_id = cc.company_id
		  JOIN user_permissions up ON up.user_id = u.id
		 WHERE cc.campaign_id = ?
	`, campaignID)
	if err != nil {
		return model.AudienceScope{}, err
	}

	return scope, nil
}

func (r *AudienceRepositoryImpl) ResolveOwner(ctx context.Context, phone string) (*model.Recipient, error) {
	var row struct {
		CompanyID int64         `db:"company_id"`
		BranchID  sql.NullInt64 `db:"branch_id"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT b.company_id AS company_id, b.id AS branch_id
		  FROM branches b
		 WHERE b.contact_phone_number = ?
		 LIMIT 1
	`, phone)
	if err == nil {
		branchID := row.BranchID.Int64
		return &model.Recipient{
			PhoneNumber: phone,
			SourceType:  model.SourceBranch,
			CompanyID:   row.CompanyID,
			BranchID:    &branchID,
		}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var companyID int64
	err = r.db.GetContext(ctx, &companyID, `
		SELECT id FROM companies WHERE phone_number = ? LIMIT 1
	`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.Recipient{
		PhoneNumber: phone,
		SourceType:  model.SourceCompany,
		CompanyID:   companyID,
	}, nil
}
