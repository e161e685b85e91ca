// Package main initializes and starts the puppy class server, setting up
// configuration, logging, filesystem repositories, services and handlers.
package main

import (
	"cmp"
	"fmt"
	"path/filepath"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/kpisonic1/puppyclass/internal/config"
	"github.com/kpisonic1/puppyclass/internal/logger"
	"github.com/kpisonic1/puppyclass/internal/repository"
	"github.com/kpisonic1/puppyclass/internal/server/handler/http"
	"github.com/kpisonic1/puppyclass/internal/service"
)

const pushContact = "mailto:karla.pisonic@fer.hr"

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize filesystem repositories for sessions and subscriptions.
	sessionRepo, err := repository.NewFileSessionRepository(
		filepath.Join(options.DataDir, "sessions"),
		filepath.Join(options.DataDir, "puppyClass"),
	)
	if err != nil {
		zapLogger.Fatal("cannot init session repository", zap.Error(err))
	}
	subscriptionRepo, err := repository.NewFileSubscriptionRepository(
		filepath.Join(options.DataDir, "subscriptions.json"),
	)
	if err != nil {
		zapLogger.Fatal("cannot init subscription repository", zap.Error(err))
	}

	// Initialize business-logic services.
	pushService := service.NewPushService(
		subscriptionRepo,
		options.VapidPublicKey,
		options.VapidPrivateKey,
		pushContact,
		zapLogger,
	)
	sessionService := service.NewSessionService(sessionRepo, pushService, zapLogger)

	// Create HTTP handlers for sessions and push endpoints.
	sessionHandler := &http.SessionHandler{SessionService: sessionService}
	pushHandler := &http.PushHandler{PushService: pushService}

	// Build the router with middleware, routes and static files.
	router := http.NewRouter(sessionHandler, pushHandler, options.WebRoot, sessionRepo.PhotosDir(), zapLogger)

	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
