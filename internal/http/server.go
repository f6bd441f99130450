// Package http exposes the webhook endpoint and the operator API.
package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/feastly/reminder-gateway/internal/chat"
	"github.com/feastly/reminder-gateway/internal/config"
	"github.com/feastly/reminder-gateway/internal/http/middleware"
	"github.com/feastly/reminder-gateway/internal/kafka"
	"github.com/feastly/reminder-gateway/internal/metrics"
	"github.com/feastly/reminder-gateway/internal/reminder"
	"github.com/feastly/reminder-gateway/internal/repository"
	"github.com/feastly/reminder-gateway/internal/whatsapp"
	"github.com/feastly/reminder-gateway/internal/window"
)

type Server struct{ e *echo.Echo }

func NewServer(cfg config.Config, mysqlDB, clickhouseDB *sqlx.DB, rds *redis.Client, sender whatsapp.Sender, events *kafka.Producer) *Server {
	// repos (MySQL)
	conversationsRepo := repository.NewConversationsRepository(mysqlDB)
	messagesRepo := repository.NewMessagesRepository(mysqlDB)
	campaignsRepo := repository.NewCampaignsRepository(mysqlDB)
	audienceRepo := repository.NewAudienceRepository(mysqlDB)
	notifiedRepo := repository.NewNotifiedRepository(mysqlDB)
	executionsRepo := repository.NewExecutionsRepository(mysqlDB)
	pendingRepo := repository.NewPendingRepository(mysqlDB)
	menusRepo := repository.NewMenusRepository(mysqlDB)
	ordersRepo := repository.NewOrdersRepository(mysqlDB)

	// repos (ClickHouse)
	chMessagesRepo := repository.NewCHMessagesRepository(clickhouseDB)

	// services
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
	processor := chat.NewProcessor(tracker, audienceRepo, messagesRepo, pendingStore)

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Use(echoMid.Recover(), echoMid.Logger())

	metrics.MustRegister(prometheus.DefaultRegisterer)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// webhook (provider-authenticated via verify token + signature)
	e.GET("/webhooks/whatsapp", verifyWebhookHandler(cfg.WhatsApp.VerifyToken))
	e.POST("/webhooks/whatsapp", receiveWebhookHandler(cfg.WhatsApp.AppSecret, processor))

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.HTTP.APIKey)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          rds,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:ip:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/triggers/:id/run", runTriggerHandler(executor))
	v1.POST("/pending/sweep", sweepPendingHandler(pendingStore))
	v1.GET("/conversations/:phone/window", conversationWindowHandler(tracker))
	v1.POST("/conversations/:phone/close", closeConversationHandler(tracker))
	v1.GET("/reports/messages", listMessagesHandler(chMessagesRepo))

	return &Server{e: e}
}

func (s *Server) Start(addr string) error {
	log.Printf("http: listening on %s", addr)
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
