package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/berniyo/paycollect/internal/app"
	"github.com/berniyo/paycollect/internal/config"
	"github.com/berniyo/paycollect/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logging.Init(config.AppName)

	// 1) Config
	cfg, err := config.Load()
	if err != nil {
		logging.Logger.WithError(err).Fatal("invalid configuration")
	}

	// 2) Core application (client, store, mailer, engine)
	application, err := app.NewApp(cfg)
	if err != nil {
		logging.Logger.WithError(err).Fatal("failed to initialize app")
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3) Session sweeper
	go application.RunSweeper(ctx)

	// 4) Router + server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           application.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Logger.Infof("Starting %s on :%s", config.AppName, cfg.Port)
		logging.Logger.Infof("Callback URL: %s", application.Links.CallbackURL())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	logging.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.WithError(err).Warn("graceful shutdown failed")
	}
}
