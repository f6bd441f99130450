package model

import "time"

// Menu is the business entity reminders are about.
type Menu struct {
	ID              int64     `db:"id"`
	Title           string    `db:"title"`
	Active          bool      `db:"active"`
	RoleID          int64     `db:"role_id"`
	PermissionID    int64     `db:"permission_id"`
	PublicationDate time.Time `db:"publication_date"`
	MaxOrderDate    time.Time `db:"max_order_date"`
	CreatedAt       time.Time `db:"created_at"`
}

// Recipient is one resolved audience member: a phone number plus the
// organization/location identity it belongs to.
type Recipient struct {
	PhoneNumber string
	SourceType  SourceType
	CompanyID   int64
	BranchID    *int64
}

// AudienceScope is the role/permission filter derived from a campaign's
// companies, applied when selecting eligible menus.
type AudienceScope struct {
	RoleIDs       []int64
	PermissionIDs []int64
}
