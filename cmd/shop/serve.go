package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/api"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/async"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/bootstrap"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/cache"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/config"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/job"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/migrations"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/notifier"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository/sqlite"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/service"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/support/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the shop server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:     cfg.Log.SlogLevel(),
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})

	db, err := bootstrap.OpenSQLite(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return err
	}

	store := sqlite.NewStore(db)

	gateway, err := zalopay.New(zalopay.Config{
		AppID:           cfg.ZaloPay.AppID,
		Key1:            cfg.ZaloPay.Key1,
		Key2:            cfg.ZaloPay.Key2,
		Endpoint:        cfg.ZaloPay.Endpoint,
		CreatePath:      cfg.ZaloPay.CreatePath,
		QueryPath:       cfg.ZaloPay.QueryPath,
		RefundPath:      cfg.ZaloPay.RefundPath,
		QueryRefundPath: cfg.ZaloPay.QueryRefundPath,
		CallbackURL:     cfg.ZaloPay.CallbackURL,
		RedirectURL:     cfg.ZaloPay.RedirectURL,
	}, zalopay.WithLogger(logger))
	if err != nil {
		return err
	}

	notificationQueue := async.NewNotificationQueue()
	queuedNotifier := async.NewQueueNotifier(notificationQueue)
	cooldownCache := cache.NewStore(cache.Options{
		DefaultTTL: cfg.Reconcile.Cooldown,
		Prefix:     "reconcile",
	})

	paymentService := service.NewPaymentService(store.Orders(), queuedNotifier, cfg.Shop.Name, logger)
	reconcileService := service.NewReconcileService(store.Orders(), gateway, paymentService, cooldownCache, cfg.Reconcile.Cooldown, logger)
	checkoutService := service.NewCheckoutService(store.Orders(), gateway, logger)

	scheduler := job.NewScheduler(logger)

	sweepJob := job.NewReconcileSweepJob(store.Orders(), reconcileService, cfg.Reconcile.PendingAge, logger)
	if _, err := scheduler.Register(cfg.Reconcile.SweepSpec, sweepJob); err != nil {
		return err
	}
	emailJob := job.NewSendEmailJob(notificationQueue, notifier.NewLoggerService(logger), logger)
	if _, err := scheduler.Register("@every 10s", emailJob); err != nil {
		return err
	}
	scheduler.Start()

	router := api.NewRouter(logger, api.Services{
		Orders:     store.Orders(),
		Checkout:   checkoutService,
		Payment:    paymentService,
		Reconciler: reconcileService,
		Verifier:   gateway,
		Classifier: zalopay.DefaultClassifier,
	}, cfg.Metrics)

	server := bootstrap.NewHTTPServer(cfg.HTTP, router)

	go func() {
		logger.Info("http server starting", "addr", cfg.HTTP.Addr, "version", Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	shutdownTimeout := cfg.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("shutting down http server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server exited cleanly")
	return nil
}
