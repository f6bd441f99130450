package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/feastly/reminder-gateway/internal/config"
	"github.com/feastly/reminder-gateway/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations in order (dev: scripts DROP & CREATE)",
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
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		entries, err := os.ReadDir("migrations")
		if err != nil {
			return fmt.Errorf("read migrations dir: %w", err)
		}
		var scripts []string
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
				scripts = append(scripts, e.Name())
			}
		}
		sort.Strings(scripts)
		if len(scripts) == 0 {
			return fmt.Errorf("no .sql scripts in migrations/")
		}

		// scripts drop and recreate tables with FKs between them
		if _, err := sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			return fmt.Errorf("disable fk checks: %w", err)
		}
		defer func() { _, _ = sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 1") }()

		for _, name := range scripts {
			raw, err := os.ReadFile(filepath.Join("migrations", name))
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			if _, err := sqlDB.Exec(string(raw)); err != nil {
				return fmt.Errorf("apply %s: %w", name, err)
			}
			fmt.Printf(">> applied %s\n", name)
		}
		return nil
	},
}
