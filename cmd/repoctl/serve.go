package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leafsii/repokit/internal/api"
	"github.com/leafsii/repokit/internal/db/entities"
	"github.com/leafsii/repokit/internal/metrics"
	"github.com/leafsii/repokit/pkg/repository"
)

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the repository introspection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default RPK_HTTP_ADDR)")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	metricsObj, metricsHandler, err := metrics.Setup("repokit")
	if err != nil {
		return fmt.Errorf("setup metrics: %w", err)
	}

	s, err := openSession(ctx, metricsObj)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.logger

	if _, err := repository.Get[entities.UserRepository](s.rc); err != nil {
		return err
	}
	if _, err := repository.Get[entities.ProductRepository](s.rc); err != nil {
		return err
	}

	if addr == "" {
		addr = s.cfg.HTTPAddr
	}
	handler := api.NewHandler(s.rc, s.db, logger)
	router := handler.Routes(api.NewMiddleware(logger, metricsObj), api.RouteOptions{
		CORSOrigins:  s.cfg.Security.CORSAllowedOrigins,
		RateLimitRPM: s.cfg.Security.RateLimitRPM,
		Metrics:      metricsHandler,
	})
	logger.Infow("CORS configured", "allowed_origins", s.cfg.Security.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr, "backend", s.db.Backend)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server startup failed: %w", err)
	case <-ctx.Done():
		logger.Infow("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("Graceful shutdown failed", "error", err)
			server.Close()
		}
		logger.Infow("Server stopped")
		return nil
	}
}
