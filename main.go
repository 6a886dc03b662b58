package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slatrack/backend/internal/client"
	"github.com/slatrack/backend/internal/config"
	"github.com/slatrack/backend/internal/db"
	"github.com/slatrack/backend/internal/handler"
	"github.com/slatrack/backend/internal/model"
	"github.com/slatrack/backend/internal/scheduler"
	"github.com/slatrack/backend/internal/service"
)

const shutdownTimeout = 15 * time.Second

// @title slatrack API
// @version 1.0
// @description IT asset registry, SLA compliance metrics and alerting.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg := config.Load()
	if err := config.LoadFile(&cfg, os.Getenv("CONFIG_FILE")); err != nil {
		slog.Error("failed to load config file", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		slog.Error("invalid APP_TIMEZONE", "timezone", cfg.Scheduler.Timezone, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	store := db.NewPostgres(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	// Notification channels
	var channels []service.NotificationChannel
	if mailer := client.NewMailer(cfg.SMTP); mailer.IsConfigured() {
		channels = append(channels, mailer)
	} else {
		slog.Warn("SMTP not configured, email notifications disabled")
	}
	if slack := client.NewSlackClient(cfg.Slack); slack.IsConfigured() {
		channels = append(channels, slack)
	}
	channels = append(channels, service.NewWebhookDeliveryService(store))
	dispatcher := service.NewNotificationDispatcher(cfg.Notify, channels...)

	// Services
	engine := service.NewComplianceEngine(store, dispatcher, loc)
	itemService := service.NewItemService(store)
	reportService := service.NewReportService(store)
	webhookService := service.NewWebhookService(store)
	authService, err := service.NewAuthService(store, cfg.Auth)
	if err != nil {
		slog.Error("failed to configure auth", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.AdminUsername != "" {
		if err := authService.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword, cfg.Auth.AdminEmail); err != nil {
			slog.Error("failed to ensure admin user", "error", err)
			os.Exit(1)
		}
	}

	// Scheduler
	var sched *scheduler.Service
	if cfg.Scheduler.Enabled {
		sched, err = scheduler.New(cfg.Scheduler, engine)
		if err != nil {
			slog.Error("failed to configure scheduler", "error", err)
			os.Exit(1)
		}
		// in-flight runs are bounded by Stop's deadline, not by the signal
		sched.Start(context.Background())
	}

	router := newRouter(cfg, routes{
		auth:      handler.NewAuthHandler(authService),
		items:     handler.NewItemHandler(itemService),
		incidents: handler.NewIncidentHandler(engine, cfg.Server.UploadDir),
		alerts:    handler.NewAlertHandler(engine),
		metrics:   handler.NewMetricHandler(engine),
		reports:   handler.NewReportHandler(reportService, loc),
		scheduler: handler.NewSchedulerHandler(engine),
		webhooks:  handler.NewWebhookSettingsHandler(webhookService),
		tokens:    authService,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	dispatcher.Stop()
}

type routes struct {
	auth      *handler.AuthHandler
	items     *handler.ItemHandler
	incidents *handler.IncidentHandler
	alerts    *handler.AlertHandler
	metrics   *handler.MetricHandler
	reports   *handler.ReportHandler
	scheduler *handler.SchedulerHandler
	webhooks  *handler.WebhookSettingsHandler
	tokens    interface {
		ParseAccessToken(tokenStr string) (*model.AuthUser, error)
	}
}

func newRouter(cfg config.Config, r routes) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.MetricsMiddleware())
	router.Use(handler.CORSMiddleware(cfg.Server.CORSAllowedOrigins, cfg.Server.CORSAllowCredentials))

	router.GET("/", handler.Root)
	router.GET("/ping", handler.Ping)
	router.GET("/openapi.json", handler.OpenAPIDoc)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/api/v1/auth")
	auth.POST("/register", r.auth.Register)
	auth.POST("/login", r.auth.Login)
	auth.POST("/refresh", r.auth.Refresh)
	auth.POST("/logout", r.auth.Logout)
	auth.GET("/config", r.auth.Config)

	leads := handler.RequireRoles(model.RoleITLead, model.RoleManager)

	api := router.Group("/api/v1")
	api.Use(handler.AuthMiddleware(r.tokens))
	api.GET("/auth/me", r.auth.Me)
	api.GET("/users", leads, r.auth.ListUsers)
	api.PUT("/users/:id/role", leads, r.auth.UpdateRole)

	api.GET("/items", r.items.ListItems)
	api.POST("/items", r.items.CreateItem)
	api.GET("/items/:id", r.items.GetItem)
	api.PUT("/items/:id", r.items.UpdateItem)
	api.POST("/items/:id/approval", leads, r.items.DecideApproval)
	api.GET("/items/:id/chain", r.items.GetChain)
	api.GET("/items/:id/sla", r.items.GetSLA)
	api.PUT("/items/:id/sla", leads, r.items.UpsertSLA)

	api.GET("/incidents", r.incidents.ListIncidents)
	api.POST("/incidents", r.incidents.ReportIncident)
	api.GET("/incidents/:id", r.incidents.GetIncident)
	api.POST("/incidents/:id/start", r.incidents.StartIncident)
	api.POST("/incidents/:id/resolve", r.incidents.ResolveIncident)

	api.GET("/alerts", r.alerts.ListAlerts)
	api.GET("/alerts/recent", r.alerts.RecentAlerts)
	api.POST("/alerts/manual", leads, r.alerts.TriggerManualAlert)
	api.GET("/alerts/:id", r.alerts.GetAlert)
	api.GET("/alerts/:id/incidents", r.alerts.AlertIncidents)
	api.POST("/alerts/:id/resolve", r.alerts.ResolveAlert)

	api.GET("/metrics", r.metrics.ListMetrics)
	api.POST("/metrics", r.metrics.GenerateMetric)
	api.POST("/metrics/:id/recalculate", r.metrics.RecalculateMetric)

	api.GET("/reports/compliance", r.reports.ComplianceReport)
	api.POST("/scheduler/run", leads, r.scheduler.RunBatch)
	api.Static("/uploads", cfg.Server.UploadDir)

	settings := api.Group("/settings", leads)
	settings.GET("/webhooks", r.webhooks.ListWebhookConfigs)
	settings.POST("/webhooks", r.webhooks.CreateWebhookConfig)
	settings.GET("/webhooks/events", r.webhooks.WebhookEvents)
	settings.GET("/webhooks/:id", r.webhooks.GetWebhookConfig)
	settings.GET("/webhooks/:id/preview", r.webhooks.PreviewWebhookConfig)
	settings.PUT("/webhooks/:id", r.webhooks.UpdateWebhookConfig)
	settings.DELETE("/webhooks/:id", r.webhooks.DeleteWebhookConfig)

	return router
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}
