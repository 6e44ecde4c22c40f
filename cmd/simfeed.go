package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/creatorboard/internal/simfeed"
	"github.com/okian/creatorboard/pkg/logger"
)

func newSimfeedCmd() *cobra.Command {
	sim := simfeed.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "simfeed",
		Short: "Serve a synthetic campaign and check the bot's leaderboard against it",
		Long: `simfeed generates a deterministic campaign from --seed and serves it on
the feed API paths the bot polls. Point feed_base_url at it, let the bot
run, then use "simfeed verify" with the same flags to compare the bot's
leaderboard with the one the dataset implies.`,
	}
	flags := cmd.PersistentFlags()
	flags.Uint64Var(&sim.Seed, "seed", sim.Seed, "dataset seed")
	flags.IntVar(&sim.Users, "users", sim.Users, "accounts in the campaign")
	flags.IntVar(&sim.Posts, "posts", sim.Posts, "top-level posts")
	flags.IntVar(&sim.Mentions, "mentions", sim.Mentions, "nominating replies")
	flags.Float64Var(&sim.Tagged, "tagged", sim.Tagged, "share of posts carrying the tag")
	flags.StringVar(&sim.Tag, "tag", sim.Tag, "campaign tag")
	flags.Int64Var(&sim.BotFID, "bot-fid", sim.BotFID, "bot account id")
	flags.StringVar(&sim.BotHandle, "bot-handle", sim.BotHandle, "bot handle used in mentions")

	cmd.AddCommand(newSimfeedServeCmd(&sim), newSimfeedVerifyCmd(&sim))
	return cmd
}

func newSimfeedServeCmd(sim *simfeed.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the synthetic feed until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ds, err := simfeed.Generate(*sim)
			if err != nil {
				return err
			}
			log := logger.Get().Named("simfeed")
			fake := simfeed.NewServer(ds)
			srv := &http.Server{
				Addr:              addr,
				Handler:           fake.Handler(),
				ReadHeaderTimeout: readHeaderTimeout,
			}
			log.Info(ctx, "serving synthetic feed",
				logger.String("addr", addr),
				logger.Int("posts", len(ds.Posts)),
				logger.Int("mentions", len(ds.Mentions)),
				logger.Int64("bot_fid", sim.BotFID))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("simfeed server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			if err := g.Wait(); err != nil {
				return err
			}
			log.Info(context.Background(), "synthetic feed stopped", logger.Int("published", len(fake.Published())))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9090", "listen address")
	return cmd
}

func newSimfeedVerifyCmd(sim *simfeed.Config) *cobra.Command {
	var (
		apiURL string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare the bot's leaderboard with the synthetic campaign",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := simfeed.Generate(*sim)
			if err != nil {
				return err
			}
			if err := simfeed.Verify(cmd.Context(), &http.Client{Timeout: readTimeout}, apiURL, ds, limit); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "leaderboard matches (%d entries)\n", len(ds.ExpectedLeaderboard(limit)))
			return err
		},
	}
	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:9080", "bot API base URL")
	cmd.Flags().IntVar(&limit, "limit", 100, "entries to compare")
	return cmd
}
