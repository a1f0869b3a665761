// Package main initializes and starts the ASR data collection server,
// setting up configuration, logging, database connections, audio storage,
// repositories, services, handlers, and TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/asrcollect/internal/certgen"
	"github.com/atinyakov/asrcollect/internal/claims"
	"github.com/atinyakov/asrcollect/internal/config"
	"github.com/atinyakov/asrcollect/internal/db"
	"github.com/atinyakov/asrcollect/internal/logger"
	"github.com/atinyakov/asrcollect/internal/repository"
	"github.com/atinyakov/asrcollect/internal/server/handler/http"
	"github.com/atinyakov/asrcollect/internal/service"
	"github.com/atinyakov/asrcollect/internal/session"
	"github.com/atinyakov/asrcollect/internal/storage"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options, err := config.Parse("server", os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize the database and apply migrations.
	conn, err := db.Init(ctx, options.DatabaseDriver, options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer conn.Close()

	// Audio storage: local directory or S3 bucket.
	store, err := storage.FromOptions(ctx, options)
	if err != nil {
		zapLogger.Fatal("cannot init audio storage", zap.Error(err))
	}

	// Reclaim audio whose database insert never happened.
	db.StartOrphanSweeper(ctx, conn, store, options.SweepInterval, options.SweepGrace, zapLogger)

	// Labeling claims are only enforced when Redis is configured.
	var claimer service.Claimer = claims.Noop{}
	if options.RedisAddr != "" {
		rc, err := claims.NewRedis(ctx, options.RedisAddr, options.RedisPassword, options.RedisDB, options.ClaimTTL)
		if err != nil {
			zapLogger.Fatal("cannot connect to redis", zap.Error(err))
		}
		defer rc.Close()
		claimer = rc
	}

	// Initialize repositories and business-logic services.
	authService := service.NewAuthService(repository.NewSQLUserRepository(conn))
	sampleService := service.NewSampleService(
		repository.NewSQLSampleRepository(conn),
		storage.NewIngester(store, options.MaxUploadBytes),
		claimer,
		zapLogger,
	)

	useTLS := options.TLSSelfSigned || options.TLSCert != ""
	if options.SessionSecret == "" {
		zapLogger.Warn("no session secret configured, sessions will not survive a restart")
	}
	sessions, err := session.NewManager(options.SessionSecret, options.SessionTTL, useTLS)
	if err != nil {
		zapLogger.Fatal("cannot init sessions", zap.Error(err))
	}

	// Create HTTP handlers and build the router.
	authHandler := &http.AuthHandler{AuthService: authService, Sessions: sessions, Log: zapLogger}
	sampleHandler := &http.SampleHandler{SampleService: sampleService, MaxUploadBytes: options.MaxUploadBytes, Log: zapLogger}
	pageHandler := &http.PageHandler{
		AuthService:    authService,
		SampleService:  sampleService,
		Sessions:       sessions,
		MaxUploadBytes: options.MaxUploadBytes,
		Log:            zapLogger,
	}
	router := http.NewRouter(authHandler, sampleHandler, pageHandler, sessions.TokenAuth(), zapLogger)

	server := &nethttp.Server{
		Addr:              options.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if useTLS {
		tlsConfig, err := serverTLS(options)
		if err != nil {
			zapLogger.Fatal("failed to load TLS certificate", zap.Error(err))
		}
		server.TLSConfig = tlsConfig
	}

	go func() {
		var err error
		if useTLS {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Addr))
			err = server.ListenAndServeTLS("", "")
		} else {
			zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
	}
}

// serverTLS loads the configured certificate or generates a self-signed one
// for the listen address.
func serverTLS(o *config.Options) (*tls.Config, error) {
	var (
		cert tls.Certificate
		err  error
	)
	if o.TLSCert != "" {
		cert, err = tls.LoadX509KeyPair(o.TLSCert, o.TLSKey)
	} else {
		cert, err = certgen.SelfSignedTLS(certgen.HostsFromAddr(o.Addr), 365*24*time.Hour)
	}
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
