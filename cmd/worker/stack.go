package worker

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/feastly/reminder-gateway/internal/config"
	"github.com/feastly/reminder-gateway/internal/db"
	"github.com/feastly/reminder-gateway/internal/kafka"
	"github.com/feastly/reminder-gateway/internal/logger"
	"github.com/feastly/reminder-gateway/internal/metrics"
	"github.com/feastly/reminder-gateway/internal/reminder"
	"github.com/feastly/reminder-gateway/internal/repository"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
	"github.com/feastly/reminder-gateway/internal/window"
)

// stack is everything a worker loop needs, built once per process.
type stack struct {
	cfg       config.Config
	campaigns repository.CampaignsRepository
	executor  *reminder.Executor
	pending   *reminder.PendingStore

	mysqlDB *sqlx.DB
	rds     *redis.Client
	events  *kafka.Producer
}

func buildStack(cmd *cobra.Command) (*stack, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	mysqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOpts{
		MaxOpenConns:    cfg.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
		PingTimeout:     cfg.MySQL.PingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}

	rds, err := db.NewRedisClient(cfg.Redis)
	if err != nil {
		mysqlDB.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	var sender whatsapp.Sender
	cloud, err := whatsapp.NewCloudSender(cfg.WhatsApp)
	switch {
	case errors.Is(err, whatsapp.ErrNoIntegration):
		log.Printf("whatsapp integration not configured, sends will fail")
		sender = whatsapp.Disabled()
	case err != nil:
		mysqlDB.Close()
		_ = rds.Close()
		return nil, fmt.Errorf("whatsapp sender: %w", err)
	default:
		sender = cloud
	}

	events := kafka.NewProducer(cfg.Kafka)

	conversationsRepo := repository.NewConversationsRepository(mysqlDB)
	messagesRepo := repository.NewMessagesRepository(mysqlDB)
	campaignsRepo := repository.NewCampaignsRepository(mysqlDB)
	audienceRepo := repository.NewAudienceRepository(mysqlDB)
	notifiedRepo := repository.NewNotifiedRepository(mysqlDB)
	executionsRepo := repository.NewExecutionsRepository(mysqlDB)
	pendingRepo := repository.NewPendingRepository(mysqlDB)
	menusRepo := repository.NewMenusRepository(mysqlDB)
	ordersRepo := repository.NewOrdersRepository(mysqlDB)

	tracker := window.NewTracker(conversationsRepo, messagesRepo, cfg.Reminders.WindowHours)
	pendingStore := reminder.NewPendingStore(
		pendingRepo, notifiedRepo, conversationsRepo, messagesRepo,
		sender, tracker, cfg.Reminders.PendingTTLHours,
	)
	executor := reminder.NewExecutor(
		campaignsRepo, audienceRepo, notifiedRepo, executionsRepo, messagesRepo,
		tracker, pendingStore, sender,
		reminder.StrategyDeps{Menus: menusRepo, Orders: ordersRepo, Cfg: cfg.Reminders},
		reminder.NewRedisRunLock(rds, 10*time.Minute),
		events,
	)

	return &stack{
		cfg:       cfg,
		campaigns: campaignsRepo,
		executor:  executor,
		pending:   pendingStore,
		mysqlDB:   mysqlDB,
		rds:       rds,
		events:    events,
	}, nil
}

func (s *stack) Close() {
	_ = s.events.Close()
	_ = s.rds.Close()
	s.mysqlDB.Close()
}

func (s *stack) tick() time.Duration {
	if s.cfg.Reminders.Tick > 0 {
		return s.cfg.Reminders.Tick
	}
	return 5 * time.Minute
}
