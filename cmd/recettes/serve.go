package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cognicore/recettes/internal/httpapi"
	"github.com/cognicore/recettes/internal/logging"
	"github.com/cognicore/recettes/pkg/recettes/internalerr"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServer()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.Join(internalerr.ErrInvalidConfig, errors.New("RECETTES_JWT_SECRET is required"))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			engine, err := openEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer engine.Close()

			api := httpapi.NewServer(engine, httpapi.NewAuthenticator(cfg.JWTSecret), logging.With("http"))
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				logging.Info().Str("addr", cfg.Addr).Str("store", cfg.Store).Msg("listening")
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logging.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
