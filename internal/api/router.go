package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *AuthHandler,
	chatHandler *ChatHandler,
	ruleHandler *RuleHandler,
	eventHandler *EventHandler,
	jwtSecret string,
	db *pgxpool.Pool,
) *Router {
	r := gin.Default()
	r.Use(MetricsMiddleware())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/chat", chatHandler.Chat)
		auth.GET("/rules", ruleHandler.ListRules)
		auth.POST("/rules", ruleHandler.CreateRule)
		auth.POST("/rules/:id/activate", ruleHandler.ActivateRule)
		auth.POST("/rules/:id/deactivate", ruleHandler.DeactivateRule)
		auth.POST("/events/simulate", eventHandler.SimulateEvent)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
