package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notetube/internal/config"
	"notetube/internal/diagnostics"
	"notetube/internal/domain"
	"notetube/internal/httpapi"
	"notetube/internal/logging"
	"notetube/internal/pipeline"
	"notetube/internal/render"
	"notetube/internal/session"
)

func main() {
	addr := flag.String("addr", envOr("NOTETUBE_ADDR", ":8080"), "Listen address")
	settingsPath := flag.String("settings", "", "Settings file (default ~/.notetube/settings.json)")
	origins := flag.String("origins", "*", "Allowed CORS origins")
	flag.Parse()

	settings, err := config.Load(*settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(settings.LogLevel, "json", os.Stdout)

	if err := config.Validate(settings); err != nil {
		log.WithError(err).Fatal("invalid settings")
	}

	orchestrator, err := pipeline.NewFromSettings(settings, log)
	if err != nil {
		log.WithError(err).Fatal("build pipeline")
	}
	sess := session.New(orchestrator, log)

	format, err := render.ParseFormat(settings.Format)
	if err != nil {
		log.WithError(err).Fatal("invalid default format")
	}

	checker := diagnostics.NewChecker()
	app := httpapi.New(httpapi.Deps{
		Session:       sess,
		Diagnostics:   func() domain.DiagnosticReport { return checker.Run(settings) },
		DefaultFormat: format,
		Logger:        log,
		AllowOrigins:  *origins,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":     *addr,
			"provider": orchestrator.Provider(),
		}).Info("starting notetube server")
		errCh <- app.Listen(*addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Fatal("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		_ = sess.Cancel()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
