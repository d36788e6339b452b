package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/auth"
	"github.com/MarcoPoloResearchLab/unipilot/internal/config"
	"github.com/MarcoPoloResearchLab/unipilot/internal/database"
	"github.com/MarcoPoloResearchLab/unipilot/internal/deadline"
	"github.com/MarcoPoloResearchLab/unipilot/internal/server"
	"github.com/MarcoPoloResearchLab/unipilot/internal/store"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the backend API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func newTokenIssuer(appConfig config.AppConfig) (*auth.TokenIssuer, error) {
	return auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        config.TokenIssuer,
		Audience:      config.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
}

func runServer(ctx context.Context) error {
	appConfig, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenManager, err := newTokenIssuer(appConfig)
	if err != nil {
		return err
	}

	backendStore, err := store.New(store.Config{
		Database: db,
		Clock:    time.Now,
		Deadlines: deadline.New(deadline.Config{
			Location:  appConfig.Location,
			WeekStart: appConfig.WeekStart,
			Logger:    logger,
		}),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Store:        backendStore,
		TokenManager: tokenManager,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
