package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/creatorboard/internal/adapters/http/api"
	service "github.com/okian/creatorboard/internal/app"
	"github.com/okian/creatorboard/internal/config"
	"github.com/okian/creatorboard/internal/domain/announce"
	"github.com/okian/creatorboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 90 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "creatorboard",
		Short: "Campaign bot: ingest posts and nominations, publish leaderboards",
		Long: `creatorboard polls the feed for campaign posts and for replies that
mention the bot, records nominations and the creator of the day, and
publishes leaderboard and highlight posts on a schedule.

Configuration comes from defaults, an optional YAML file
(CREATORBOARD_CONFIG or --config) and CREATORBOARD_* variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				if err := os.Setenv("CREATORBOARD_CONFIG", configPath); err != nil {
					return err
				}
			}
			return logger.InitWithWriter(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(newServeCmd(), newCycleCmd(), newLeaderboardCmd(), newHighlightsCmd(), newSimfeedCmd())
	return root
}

// setup loads configuration and builds the service.
func setup(ctx context.Context) (*config.Config, *service.Service, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	svc, err := service.New(ctx, cfg, service.WithLogger(log))
	if err != nil {
		return nil, nil, fmt.Errorf("build service: %w", err)
	}
	return cfg, svc, nil
}

func stopService(svc *service.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		logger.Get().Error(ctx, "service shutdown failed", logger.Error(err))
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the polling loop and the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, svc, err := setup(ctx)
			if err != nil {
				return err
			}
			defer stopService(svc)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			log := logger.Get()

			handler := api.NewServer(svc,
				api.WithMaxLimit(cfg.MaxLeaderboardLimit),
				api.WithLogger(log.Named("http")),
			).Handler()
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           handler,
				ReadTimeout:       readTimeout,
				WriteTimeout:      writeTimeout,
				IdleTimeout:       idleTimeout,
				ReadHeaderTimeout: readHeaderTimeout,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				err := svc.Run(gctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info(gctx, "shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func newCycleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run one ingestion pass, publish what it queued and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, svc, err := setup(ctx)
			if err != nil {
				return err
			}
			if err := svc.Start(ctx); err != nil {
				stopService(svc)
				return err
			}
			report, cycleErr := svc.RunIngestionCycle(ctx)
			stopService(svc)
			if cycleErr != nil {
				return cycleErr
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newLeaderboardCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the current nomination leaderboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, svc, err := setup(ctx)
			if err != nil {
				return err
			}
			defer stopService(svc)
			entries, err := svc.GetLeaderboard(ctx, limit)
			if err != nil {
				return err
			}
			f := announce.NewFormatter(announce.WithBotHandle(cfg.BotHandle), announce.WithMaxLength(0))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), f.Leaderboard(entries))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "entries to show (0 uses leaderboard_size)")
	return cmd
}

func newHighlightsCmd() *cobra.Command {
	var (
		limit  int
		window time.Duration
	)
	cmd := &cobra.Command{
		Use:   "highlights",
		Short: "Print the most engaging recent posts and today's creator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			_, svc, err := setup(ctx)
			if err != nil {
				return err
			}
			defer stopService(svc)
			out := cmd.OutOrStdout()

			h, ok, err := svc.DailyWinner(ctx, "")
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(out, "Creator of the day (%s): @%s\n", h.Winner.Day, h.Post.AuthorHandle)
			}
			posts, err := svc.GetHighlights(ctx, time.Now().Add(-window), limit)
			if err != nil {
				return err
			}
			for i, p := range posts {
				fmt.Fprintf(out, "%d. @%s %d likes %s\n", i+1, p.AuthorHandle, p.Engagement, p.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "posts to show")
	cmd.Flags().DurationVar(&window, "since", 24*time.Hour, "how far back to look")
	return cmd
}
