package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/feastly/reminder-gateway/internal/config"
	"github.com/feastly/reminder-gateway/internal/db"
	httpSrv "github.com/feastly/reminder-gateway/internal/http"
	"github.com/feastly/reminder-gateway/internal/kafka"
	"github.com/feastly/reminder-gateway/internal/logger"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server (webhook + operator API)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)

		mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer mysqlDB.Close()

		redisClient, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DSN, db.PoolOpts{
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() {
			_ = chDB.Close()
		}()

		var sender whatsapp.Sender
		cloud, err := whatsapp.NewCloudSender(cfg.WhatsApp)
		switch {
		case errors.Is(err, whatsapp.ErrNoIntegration):
			log.Printf("whatsapp integration not configured, sends will fail")
			sender = whatsapp.Disabled()
		case err != nil:
			return fmt.Errorf("whatsapp sender: %w", err)
		default:
			sender = cloud
		}

		events := kafka.NewProducer(cfg.Kafka)
		defer func() { _ = events.Close() }()

		server := httpSrv.NewServer(cfg, mysqlDB, chDB, redisClient, sender, events)

		errCh := make(chan error, 1)
		go func() {
			log.Printf("starting http on %s", cfg.HTTP.Addr)
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Printf("signal received: %s, shutting down...", sig)
		case err := <-errCh:
			if err != nil {
				log.Printf("http server exited: %v", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
