package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"chatclone/internal/api"
	"chatclone/internal/auth"
	"chatclone/internal/config"
	"chatclone/internal/logging"
	"chatclone/internal/service/ai"
	"chatclone/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chat web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.NewViper(configPath)
			if err != nil {
				return err
			}
			if err := bindFlags(v, cmd); err != nil {
				return err
			}
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	flags := cmd.Flags()
	flags.String("address", "", "listen address (server.address)")
	flags.String("model", "", "model identifier (provider.model)")
	flags.String("provider", "", "completion provider: openai, claude or gemini (provider.name)")
	flags.String("log-level", "", "log level (log.level)")
	flags.String("log-format", "", "log format: text or json (log.format)")
	return cmd
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	keys := map[string]string{
		"address":    "server.address",
		"model":      "provider.model",
		"provider":   "provider.name",
		"log-level":  "log.level",
		"log-format": "log.format",
	}
	for flag, key := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return errors.Wrapf(err, "bind flag %s", flag)
		}
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		WithCaller: cfg.Log.WithCaller,
	}); err != nil {
		return err
	}

	completer, err := ai.NewAiService(ctx, cfg.Provider)
	if err != nil {
		return err
	}
	manager := worker.NewManager(completer, worker.Config{
		Temperature:       cfg.Provider.Temperature,
		CompletionTimeout: cfg.Server.CompletionTimeout,
		IdleTTL:           cfg.Server.SessionIdleTTL,
	})
	defer manager.Stop()

	gin.SetMode(gin.ReleaseMode)
	authService := auth.NewService(auth.WithSecureCookies(cfg.Server.SecureCookies))
	router := api.NewRouter(api.NewHandler(manager, authService, cfg.Examples))

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Address).Str("provider", cfg.Provider.Name).Str("model", cfg.Provider.Model).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
