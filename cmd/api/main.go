package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telecaller-platform/internal/assignment"
	"telecaller-platform/internal/audit"
	"telecaller-platform/internal/auth"
	"telecaller-platform/internal/calls"
	"telecaller-platform/internal/config"
	"telecaller-platform/internal/httpapi"
	"telecaller-platform/internal/metrics"
	"telecaller-platform/internal/notify"
	"telecaller-platform/internal/scheduler"
	"telecaller-platform/internal/store/postgres"
	"telecaller-platform/internal/telephony"
	"telecaller-platform/internal/workers"
	"telecaller-platform/pkg/logger"
	"telecaller-platform/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

const reassignLockKey = "telecaller:lock:reassign"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{StatementTimeout: 15 * time.Second})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(rootCtx, db); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Storage
	leadRepo := postgres.NewLeadRepo(db)
	workerRepo := postgres.NewWorkerRepo(db)
	callRepo := postgres.NewCallRepo(db)
	auditRepo := postgres.NewAuditRepo(db)

	bus := notify.NewRedisBus(rdb, cfg.Redis.NotifyPrefix)

	// Assignment
	engine := assignment.NewEngine(leadRepo, workerRepo, workers.NewDirectory(workerRepo, leadRepo))
	engine.Audit = audit.NewService(auditRepo)
	engine.Bus = bus
	engine.Metrics = m
	engine.Log = log
	engine.MaxReassignments = cfg.Assignment.MaxReassignments

	// Call sessions
	twilio := telephony.NewTwilioClient(telephony.TwilioOptions{
		AccountSID:    cfg.Twilio.AccountSID,
		AuthToken:     cfg.Twilio.AuthToken,
		FromNumber:    cfg.Twilio.FromNumber,
		PublicBaseURL: cfg.App.PublicBaseURL,
		Region:        cfg.Twilio.Region,
		Edge:          cfg.Twilio.Edge,
	})
	manager := calls.NewManager(callRepo, leadRepo, workerRepo, twilio)
	manager.Bus = bus
	manager.Metrics = m
	manager.Log = log
	manager.PhoneRegion = cfg.Twilio.PhoneRegion

	// Background jobs
	reassigner := scheduler.NewReassigner(leadRepo, engine, cfg.Assignment.MaxReassignments)
	reassigner.Interval = cfg.Assignment.ReassignInterval
	reassigner.Staleness = cfg.Assignment.Staleness
	reassigner.Locker = scheduler.NewRedisLocker(rdb, reassignLockKey, cfg.Assignment.LockTTL)
	reassigner.Metrics = m
	reassigner.Log = log

	housekeeper := scheduler.NewHousekeeper(workerRepo, leadRepo)
	housekeeper.ArchiveAfter = cfg.Assignment.ArchiveAfter
	housekeeper.Metrics = m
	housekeeper.Log = log
	crons := cron.New(cron.WithLocation(time.UTC))
	if _, err := housekeeper.Schedule(crons, cfg.Assignment.HousekeepingSpec); err != nil {
		log.Error("housekeeping schedule invalid", "err", err)
		os.Exit(1)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log, "/healthz", "/metrics"))
	r.Use(m.Middleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	webhookLimiter := httpapi.NewIPRateLimiter(webhookRate, webhookBurst)

	registerPublicRoutes(r, db, reg)
	registerWebhookRoutes(r, webhookDeps{
		Handler:   telephony.TwilioWebhookHandler{Calls: manager, Metrics: m},
		Limiter:   webhookLimiter,
		AuthToken: cfg.Twilio.AuthToken,
		BaseURL:   cfg.App.PublicBaseURL,
	})
	registerProtectedRoutes(r,
		auth.RequireAccessToken(authManager),
		httpapi.NewHandlers(engine, manager, workerRepo, auditRepo),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		reassigner.Run(ctx)
		return nil
	})
	g.Go(func() error {
		scheduler.RunCron(ctx, crons)
		return nil
	})
	g.Go(func() error {
		sweepLimiter(ctx, webhookLimiter)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("api stopped with error", "err", err)
		os.Exit(1)
	}
	log.Info("api stopped")
}

func sweepLimiter(ctx context.Context, l *httpapi.IPRateLimiter) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep()
		}
	}
}
