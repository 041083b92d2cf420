package router

import (
	"net/http"

	"dex-backend/internal/app"
	"dex-backend/internal/config"
	"dex-backend/internal/handlers"
	"dex-backend/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// SetupRouter registers every route on a new gin engine
func SetupRouter(c *app.ServiceContainer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestMetrics(), middleware.RequestLogger(c.Logger))

	cfg := c.Config
	auth := middleware.NewAuthMiddleware(c.Sessions, c.Logger)
	watchTower := middleware.NewWatchTowerAuth(cfg.WatchTower.Secret, cfg.TimestampWindow(), c.Logger)
	localhostOnly := middleware.NewLocalhostOnly(c.Logger, cfg.Admin.AllowedIPs)
	if len(cfg.Admin.AllowedIPs) == 0 {
		c.Logger.Info("No admin.allowedIPs configured, /metrics is localhost-only")
	}

	accountHandler := handlers.NewAccountHandler(c.Accounts, c.Logger)
	orderHandler := handlers.NewOrderHandler(c.Orders, c.Logger)
	watchTowerHandler := handlers.NewWatchTowerHandler(c.Fills, c.Staking, c.Logger)
	stakingHandler := handlers.NewStakingHandler(c.Staking, c.Logger)
	wsHandler := handlers.NewWebSocketHandler(c.Hub, c.Logger)
	healthHandler := handlers.NewHealthHandler(c.Store, c.Hub)

	// ============ Check ============
	r.GET("/ping", handlers.PingHandler)
	r.GET("/health", healthHandler.Health)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", localhostOnly.Restrict(), gin.WrapH(promhttp.Handler()))

	// ============ Accounts ============
	r.POST("/account", accountHandler.CreateAccount)
	r.POST("/auth", accountHandler.Login)

	// ============ Order book ============
	r.GET("/orders", orderHandler.ListPairMakers)
	r.POST("/order", auth.RequireAuth(), orderHandler.CreateMaker)
	r.GET("/order", auth.RequireAuth(), orderHandler.ListUserMakers)
	r.POST("/bot", auth.RequireAuth(), orderHandler.CreateBot)
	r.GET("/bot", auth.RequireAuth(), orderHandler.ListUserBots)

	// ============ Watch tower ============
	wt := watchTower.Require()
	r.POST("/wt-orders", wt, watchTowerHandler.ApplyFills)
	r.DELETE("/wt-orders", wt, watchTowerHandler.CancelMaker)
	r.POST("/stacking", wt, watchTowerHandler.ApplyStake)
	r.POST("/stacking-fees", wt, watchTowerHandler.ApplyFees)
	r.POST("/fees-withdrawal", wt, watchTowerHandler.MarkWithdrawal)

	// ============ Staking views ============
	r.GET("/stacking", auth.RequireAuth(), stakingHandler.UserStakes)
	r.GET("/stacking-fees", stakingHandler.Fees)
	r.GET("/fees-withdrawal", auth.RequireAuth(), stakingHandler.UserWithdrawals)
	r.GET("/global-stacking", stakingHandler.GlobalStakes)

	// ============ WebSocket ============
	r.GET("/ws", wsHandler.HandleWebSocket)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
	})

	return r
}

// WithCORS wraps the engine with the configured CORS policy. No configured
// origins means every origin is allowed.
func WithCORS(handler http.Handler, cfg config.CORSConfig, logger *logrus.Logger) http.Handler {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	logger.WithField("allowed_origins", origins).Info("CORS configured")

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Signature", "Timestamp"},
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}).Handler(handler)
}
