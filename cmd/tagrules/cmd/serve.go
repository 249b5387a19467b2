package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/solatis/tagrules/internal/core/api"
	"github.com/solatis/tagrules/internal/core/auth"
	"github.com/solatis/tagrules/internal/core/config"
	"github.com/solatis/tagrules/internal/core/db"
	"github.com/solatis/tagrules/internal/core/server"
	"github.com/solatis/tagrules/internal/core/watch"
	"github.com/solatis/tagrules/internal/metrics"
	"github.com/solatis/tagrules/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC rule service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSourceFlags(serveCmd.Flags())
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics listen address (empty disables)")
	serveCmd.Flags().Bool("skip-invalid", false, "publish valid rules when some are invalid")
	serveCmd.Flags().Bool("watch", false, "reload when tag or rule files change")
	serveCmd.Flags().Int("workers", 4, "concurrent evaluations per batch")
	serveCmd.Flags().Bool("from-db", false, "load vocabulary and rules from --db-url instead of files")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fromDB, _ := cmd.Flags().GetBool("from-db")

	var store *db.Store
	if cfg.DBURL != "" {
		database, s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()
		store = s
	} else if fromDB {
		return fmt.Errorf("--from-db requires --db-url")
	}

	var source api.Source = api.FileSource{Dir: cfg.Rules.Dir, TagsGlob: cfg.Rules.TagsGlob, RulesGlob: cfg.Rules.RulesGlob}
	if fromDB {
		source = api.StoreSource{Store: store}
	}

	engine := rules.NewEngine(cfg.Eval.Workers)
	reloader := api.NewReloader(engine, source, cfg.Rules.SkipInvalid)
	if _, err := reloader.Reload(ctx, metrics.TriggerStartup); err != nil {
		return fmt.Errorf("initial rule load failed: %w", err)
	}

	keys, err := config.APIKeys()
	if err != nil {
		return fmt.Errorf("failed to load API keys: %w", err)
	}
	authenticator := auth.NewAuthenticator(keys)
	if !authenticator.Enabled() {
		log.Warn().Msg("No API keys configured (set TR_API_KEY), authentication disabled")
	}

	service, err := api.NewRuleService(reloader, store, cfg.Server.MaxBatchSize)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg.Server, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Server.MetricsAddr != "" {
		metricsServer, err := server.StartMetricsServer(cfg.Server.MetricsAddr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Rules.Watch && !fromDB {
		w, err := watch.New(cfg.Rules.Dir, []string{cfg.Rules.TagsGlob, cfg.Rules.RulesGlob}, func(ctx context.Context) error {
			_, err := reloader.Reload(ctx, metrics.TriggerWatch)
			return err
		})
		if err != nil {
			return err
		}
		go w.Run(ctx)
	}

	log.Info().
		Str("version", Version).
		Str("addr", cfg.Server.Addr()).
		Str("source", source.String()).
		Bool("auth", authenticator.Enabled()).
		Bool("record_matches", store != nil).
		Msg("Starting tagrules rule service")

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutting down gracefully...")
		return grpcServer.Shutdown(context.Background())
	}
}
