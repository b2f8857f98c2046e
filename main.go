package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/missingalert/missing-alert-api/api/handlers"
	"github.com/missingalert/missing-alert-api/auth"
	"github.com/missingalert/missing-alert-api/config"
	"github.com/missingalert/missing-alert-api/databases"
)

const shutdownGrace = 15 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:          "missing-alert-api",
		Short:        "Missing Alert reporting API",
		SilenceUsage: true,
		RunE:         serve,
	}
	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, live feed and digest scheduler",
			RunE:  serve,
		},
		&cobra.Command{
			Use:   "ensure-indexes",
			Short: "Create the collection indexes and exit",
			RunE:  ensureIndexes,
		},
		&cobra.Command{
			Use:   "hash-password <password>",
			Short: "Print the bcrypt hash of a password",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				hash, err := auth.HashPassword(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hash)
				return nil
			},
		},
	)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := handlers.App{}
	a.Config = *config.New()
	defer func() { _ = zap.L().Sync() }()

	//initialize database and router
	if err := a.Initialize(ctx); err != nil {
		zap.S().Errorw("failed to initialize", "error", err)
		return err
	}

	srv := &http.Server{
		Addr:              ":" + a.Config.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		zap.S().Infow("missing-alert-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
			"environment", a.Config.Env,
		)
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if !errors.Is(err, http.ErrServerClosed) {
			zap.S().Errorw("server stopped", "error", err)
			return err
		}
	case <-ctx.Done():
		zap.S().Info("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		zap.S().Warnw("http shutdown", "error", err)
	}
	return a.Shutdown(sctx)
}

func ensureIndexes(cmd *cobra.Command, _ []string) error {
	conf := config.New()
	if err := conf.Validate(); err != nil {
		return err
	}
	client, err := databases.NewClient(conf)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	if err := databases.EnsureIndexes(ctx, databases.NewDatabase(conf, client)); err != nil {
		return err
	}
	zap.S().Infow("indexes ensured", "database", conf.DatabaseName)
	return nil
}
