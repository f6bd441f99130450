package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/feastly/reminder-gateway/internal/config"
	"github.com/feastly/reminder-gateway/internal/db"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with a demo campaign and audience",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo campaign...")

		if err := seedAudience(sqlDB); err != nil {
			return err
		}
		if err := seedMenus(sqlDB); err != nil {
			return err
		}
		if err := seedCampaign(sqlDB); err != nil {
			return err
		}

		log.Println(">> Seed completed ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedAudience inserts two demo companies with branches (idempotent on fixed ids).
func seedAudience(dbx *sqlx.DB) error {
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const companiesQ = `
INSERT INTO companies (id, name, phone_number, created_at, updated_at)
VALUES (?, ?, ?, NOW(), NOW())
ON DUPLICATE KEY UPDATE
    name         = VALUES(name),
    phone_number = VALUES(phone_number),
    updated_at   = NOW()
`
	companies := []struct {
		id    int64
		name  string
		phone string
	}{
		{1, "Casino Central", "+56911111111"},
		{2, "Cocina Andina", "+56922222222"},
	}
	for _, c := range companies {
		if _, err := tx.Exec(companiesQ, c.id, c.name, c.phone); err != nil {
			return fmt.Errorf("insert company %q: %w", c.name, err)
		}
	}

	const branchesQ = `
INSERT INTO branches (id, company_id, name, contact_phone_number, created_at, updated_at)
VALUES (?, ?, ?, ?, NOW(), NOW())
ON DUPLICATE KEY UPDATE
    name                 = VALUES(name),
    contact_phone_number = VALUES(contact_phone_number),
    updated_at           = NOW()
`
	branches := []struct {
		id        int64
		companyID int64
		name      string
		phone     string
	}{
		{1, 1, "Sucursal Providencia", "+56933333333"},
		{2, 1, "Sucursal Las Condes", "+56944444444"},
	}
	for _, b := range branches {
		if _, err := tx.Exec(branchesQ, b.id, b.companyID, b.name, b.phone); err != nil {
			return fmt.Errorf("insert branch %q: %w", b.name, err)
		}
	}

	const usersQ = `
INSERT INTO users (id, company_id, name, email, created_at, updated_at)
VALUES (?, ?, ?, ?, NOW(), NOW())
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    updated_at = NOW()
`
	if _, err := tx.Exec(usersQ, 1, int64(1), "Admin Central", "admin@casino-central.cl"); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if _, err := tx.Exec(`INSERT IGNORE INTO user_roles (user_id, role_id) VALUES (1, 1)`); err != nil {
		return fmt.Errorf("insert user role: %w", err)
	}
	if _, err := tx.Exec(`INSERT IGNORE INTO user_permissions (user_id, permission_id) VALUES (1, 1)`); err != nil {
		return fmt.Errorf("insert user permission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audience: %w", err)
	}
	return nil
}

// seedMenus inserts demo menus: one freshly published, one closing tomorrow.
func seedMenus(dbx *sqlx.DB) error {
	const q = `
INSERT INTO menus (id, title, active, role_id, permission_id, publication_date, max_order_date, created_at)
VALUES (?, ?, 1, 1, 1, ?, ?, NOW())
ON DUPLICATE KEY UPDATE
    title            = VALUES(title),
    publication_date = VALUES(publication_date),
    max_order_date   = VALUES(max_order_date)
`
	now := time.Now()
	menus := []struct {
		id          int64
		title       string
		publication time.Time
		maxOrder    time.Time
	}{
		{1, "Menú semana entrante", now.AddDate(0, 0, 3), now.AddDate(0, 0, 2)},
		{2, "Menú de mañana", now.AddDate(0, 0, 1), now.Add(20 * time.Hour)},
	}
	for _, m := range menus {
		if _, err := dbx.Exec(q, m.id, m.title, m.publication, m.maxOrder); err != nil {
			return fmt.Errorf("insert menu %q: %w", m.title, err)
		}
	}
	return nil
}

// seedCampaign inserts one active campaign with a trigger per event type.
func seedCampaign(dbx *sqlx.DB) error {
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const campaignQ = `
INSERT INTO campaigns (id, name, channel, status, content, created_at, updated_at)
VALUES (?, ?, 'whatsapp', 'active', ?, NOW(), NOW())
ON DUPLICATE KEY UPDATE
    name       = VALUES(name),
    status     = VALUES(status),
    content    = VALUES(content),
    updated_at = NOW()
`
	content := "Hola! Tienes {{menu_count}} menú(s) disponibles: {{menus}}. Haz tu pedido en {{shop_url}}"
	if _, err := tx.Exec(campaignQ, 1, "Recordatorio de menús", content); err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	if _, err := tx.Exec(`INSERT IGNORE INTO campaign_companies (campaign_id, company_id) VALUES (1, 1), (1, 2)`); err != nil {
		return fmt.Errorf("link campaign companies: %w", err)
	}

	const triggerQ = `
INSERT INTO campaign_triggers (id, campaign_id, event_type, hours_before, hours_after, is_active, created_at, updated_at)
VALUES (?, 1, ?, ?, ?, 1, NOW(), NOW())
ON DUPLICATE KEY UPDATE
    event_type   = VALUES(event_type),
    hours_before = VALUES(hours_before),
    hours_after  = VALUES(hours_after),
    is_active    = VALUES(is_active),
    updated_at   = NOW()
`
	triggers := []struct {
		id          int64
		eventType   string
		hoursBefore *int
		hoursAfter  *int
	}{
		{1, "menu_created", nil, intptr(24)},
		{2, "menu_closing", intptr(24), nil},
		{3, "initial_contact", nil, nil},
	}
	for _, t := range triggers {
		if _, err := tx.Exec(triggerQ, t.id, t.eventType, t.hoursBefore, t.hoursAfter); err != nil {
			return fmt.Errorf("insert trigger %q: %w", t.eventType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit campaign: %w", err)
	}
	return nil
}

func intptr(i int) *int { return &i }
