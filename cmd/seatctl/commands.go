package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/iliyamo/event-seat-manager/internal/app"
	"github.com/iliyamo/event-seat-manager/internal/config"
	"github.com/iliyamo/event-seat-manager/internal/database"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
	"github.com/iliyamo/event-seat-manager/internal/utils"
)

type cli struct {
	envFile string
	dryRun  bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "seatctl",
		Short:         "Maintenance commands for the event seat manager",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if c.envFile != "" {
				return godotenv.Load(c.envFile)
			}
			_ = godotenv.Load()
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "load environment from this file instead of .env")

	root.AddCommand(c.migrateCmd(), c.sweepCmd(), c.redistributeCmd(), c.tokenCmd())
	return root
}

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded MySQL schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.dryRun {
				for _, stmt := range database.Statements() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n\n", stmt)
				}
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			s := cfg.Store
			db, err := database.Open(cmd.Context(), s)
			if err != nil {
				return fmt.Errorf("connect mysql: %w", err)
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&c.dryRun, "dry-run", false, "print the statements instead of executing them")
	return cmd
}

func (c *cli) sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire lapsed locks and offers and promote the waitlist once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withManager(cmd.Context(), func(ctx context.Context, m *reservation.Manager) error {
				res, err := m.Sweep(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func (c *cli) redistributeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redistribute <event-id> <slots>",
		Short: "Offer free slots of an event to the head of its waitlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || eventID == 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}
			slots, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid slot count %q", args[1])
			}
			return c.withManager(cmd.Context(), func(ctx context.Context, m *reservation.Manager) error {
				notified, err := m.RedistributeSlots(ctx, eventID, slots)
				if err != nil {
					return fmt.Errorf("%s: %w", reservation.Code(err), err)
				}
				return printJSON(cmd, notified)
			})
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <email>",
		Short: "Mint a development bearer token signed with JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := utils.NewAccessToken(cfg.Auth.JWTSecret, args[0], roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role to grant; repeatable")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

// withManager builds the application against the configured store and
// runs fn with its manager.  Notifications produced by fn are published
// like in the server.
func (c *cli) withManager(ctx context.Context, fn func(context.Context, *reservation.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := app.NewLogger(cfg.Log)
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("close", slog.Any("error", err))
		}
	}()
	return fn(ctx, a.Manager())
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
