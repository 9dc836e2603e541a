package main

import (
	"log"

	"go.uber.org/zap"

	"donna/internal/action"
	"donna/internal/api"
	"donna/internal/automation"
	"donna/internal/config"
	"donna/internal/coordinator"
	"donna/internal/integration"
	"donna/internal/llm"
	"donna/internal/repository"
	"donna/internal/service/auth"
	"donna/pkg/db"
	"donna/pkg/logger"
	"donna/pkg/mq"
	redisclient "donna/pkg/redis"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	zlog := logger.New()
	defer zlog.Sync()

	// 2. Init DB
	dbConn, err := db.NewConnection(cfg.DB, zlog)
	if err != nil {
		zlog.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// 3. Init Redis (conversation history)
	rdb := redisclient.NewClient(cfg.Redis)
	defer rdb.Close()

	// 4. Init RabbitMQ publisher (simulated trigger events)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatalf("failed to init publisher: %v", err)
	}
	defer publisher.Close()

	// 5. Init repositories
	userRepo := repository.NewUserRepository(dbConn)
	ruleRepo := repository.NewRuleRepository(dbConn)

	// 6. Init collaborator clients
	mailer := integration.NewMailerClient(cfg.Integrations.Mailer)
	calendar := integration.NewCalendarClient(cfg.Integrations.Calendar)
	crm := integration.NewHubSpotClient(cfg.Integrations.HubSpot)
	lookup := integration.NewContextClient(cfg.Integrations.Context, zlog)

	// 7. Init provider chain
	clients, err := llm.NewClients(cfg.Providers)
	if err != nil {
		zlog.Fatal("provider configuration invalid", zap.Error(err))
	}
	router := llm.NewRouter(clients, zlog)
	zlog.Info("Provider chain ready", zap.Strings("providers", router.Providers()))

	// 8. Init services
	authService := auth.NewService(userRepo, cfg.JWT.Secret)
	matcher := automation.NewMatcher()
	automations := automation.NewService(matcher, ruleRepo, zlog)
	dispatcher := action.NewDispatcher(mailer, calendar, crm, automations, zlog)
	history := coordinator.NewHistory(rdb, zlog)
	coord := coordinator.New(router, dispatcher, automations, matcher, lookup, history, cfg.Capabilities, zlog)

	// 9. Init handlers
	authHandler := api.NewAuthHandler(authService)
	chatHandler := api.NewChatHandler(coord)
	ruleHandler := api.NewRuleHandler(automations)
	eventHandler := api.NewEventHandler(publisher)

	// 10. Init router and run
	r := api.NewRouter(authHandler, chatHandler, ruleHandler, eventHandler, cfg.JWT.Secret, dbConn)
	if err := r.Run(cfg.Server.Port); err != nil {
		zlog.Fatal("server start failed", zap.Error(err))
	}
}
