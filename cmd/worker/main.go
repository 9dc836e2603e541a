package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"donna/internal/automation"
	"donna/internal/config"
	"donna/internal/integration"
	"donna/internal/mqhandler"
	"donna/internal/repository"
	"donna/internal/util"
	"donna/pkg/db"
	"donna/pkg/logger"
	"donna/pkg/mq"
	redisclient "donna/pkg/redis"
)

func main() {
	// Load config
	cfg := config.Load()

	// Init Redis
	rdb := redisclient.NewClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduper(rdb, time.Hour)

	zlog := logger.New()
	defer zlog.Sync()

	zlog.Info("Starting automation worker...")

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, zlog)
	if err != nil {
		zlog.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	zlog.Info("Database connection established")

	// Init Repositories
	ruleRepo := repository.NewRuleRepository(dbConn)
	taskRepo := repository.NewTaskRepository(dbConn)
	outcomeRepo := repository.NewOutcomeRepository(dbConn)
	userRepo := repository.NewUserRepository(dbConn)

	// Init collaborator clients
	mailer := integration.NewMailerClient(cfg.Integrations.Mailer)
	calendar := integration.NewCalendarClient(cfg.Integrations.Calendar)
	crm := integration.NewHubSpotClient(cfg.Integrations.HubSpot)

	// Init rule engine
	workflows := automation.NewWorkflows(mailer, calendar, crm, taskRepo, userRepo, zlog)
	engine := automation.NewEngine(ruleRepo, outcomeRepo, taskRepo, deduper, workflows, zlog)

	// Poison messages go to the DLQ instead of circulating forever
	dlqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		zlog.Fatal("failed to init DLQ publisher", zap.Error(err))
	}
	defer dlqPublisher.Close()

	retryCounter := util.NewRetryCounter(rdb, 24*time.Hour)

	triggerHandler := mqhandler.NewTriggerHandler(engine, dlqPublisher, retryCounter, zlog)

	// Expire parked tasks nobody completed within 30 days
	reaper := automation.NewReaper(taskRepo, 30*24*time.Hour, zlog)
	go reaper.Run(context.Background(), time.Hour)

	// (1) Consumer for email trigger events
	zlog.Info("Initializing email consumer", zap.String("queue", "email.received.automation.q"))
	consumerEmail, err := mq.NewConsumer(cfg.MQ.URL, "email.received.automation.q", "email.received", zlog)
	if err != nil {
		zlog.Fatal("failed to init email consumer", zap.Error(err))
	}
	consumerEmail.SetHandler(triggerHandler.HandleEmailReceived)
	go func() {
		zlog.Info("Starting email consumer")
		if err := consumerEmail.StartConsuming(); err != nil {
			zlog.Fatal("email consumer failed", zap.Error(err))
		}
	}()
	defer consumerEmail.Close()

	// (2) Consumer for calendar trigger events
	zlog.Info("Initializing calendar consumer", zap.String("queue", "calendar.event.automation.q"))
	consumerCalendar, err := mq.NewConsumer(cfg.MQ.URL, "calendar.event.automation.q", "calendar.event", zlog)
	if err != nil {
		zlog.Fatal("failed to init calendar consumer", zap.Error(err))
	}
	consumerCalendar.SetHandler(triggerHandler.HandleCalendarEvent)
	go func() {
		zlog.Info("Starting calendar consumer")
		if err := consumerCalendar.StartConsuming(); err != nil {
			zlog.Fatal("calendar consumer failed", zap.Error(err))
		}
	}()
	defer consumerCalendar.Close()

	// (3) Consumer for CRM trigger events
	zlog.Info("Initializing crm consumer", zap.String("queue", "crm.contact.automation.q"))
	consumerCRM, err := mq.NewConsumer(cfg.MQ.URL, "crm.contact.automation.q", "crm.contact", zlog)
	if err != nil {
		zlog.Fatal("failed to init crm consumer", zap.Error(err))
	}
	consumerCRM.SetHandler(triggerHandler.HandleCRMContact)
	go func() {
		zlog.Info("Starting crm consumer")
		if err := consumerCRM.StartConsuming(); err != nil {
			zlog.Fatal("crm consumer failed", zap.Error(err))
		}
	}()
	defer consumerCRM.Close()

	zlog.Info("All consumers started, worker is ready to process events")

	// Keep worker running
	select {}
}
