// Command arenactl - административный CLI match-arena.
//
// Использование:
//
//	arenactl disputes list
//	arenactl disputes resolve <dispute-id> --resolution upheld --winner <user-id>
//	arenactl matchmaking stats
//	arenactl schema print
//	arenactl schema apply
//	arenactl token --user <user-id> --role admin --ttl 24h
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dosada05/match-arena/config"
	"github.com/Dosada05/match-arena/db"
	"github.com/Dosada05/match-arena/events"
	"github.com/Dosada05/match-arena/middleware"
	"github.com/Dosada05/match-arena/models"
	"github.com/Dosada05/match-arena/repositories"
	"github.com/Dosada05/match-arena/scheduler"
	"github.com/Dosada05/match-arena/services"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "arenactl",
		Short:        "match-arena administration CLI",
		SilenceUsage: true,
	}
	root.AddCommand(disputesCmd())
	root.AddCommand(matchmakingCmd())
	root.AddCommand(schemaCmd())
	root.AddCommand(tokenCmd())
	return root
}

// --------------------------------------------------------------------------
// disputes: споры
// --------------------------------------------------------------------------

func disputesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disputes",
		Short: "Inspect and resolve match disputes",
	}
	cmd.AddCommand(disputesListCmd())
	cmd.AddCommand(disputesResolveCmd())
	return cmd
}

func disputesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending disputes, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, _ *config.Config, conn *sql.DB) error {
				disputes, err := repositories.NewPostgresDisputeRepository(conn).ListPending(ctx)
				if err != nil {
					return err
				}
				return printDisputes(cmd.OutOrStdout(), disputes)
			})
		},
	}
}

func disputesResolveCmd() *cobra.Command {
	var (
		resolution string
		winnerID   string
	)
	cmd := &cobra.Command{
		Use:   "resolve <dispute-id>",
		Short: "Resolve a pending dispute and complete its match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, _ *config.Config, conn *sql.DB) error {
				sched, err := scheduler.New(logger)
				if err != nil {
					return err
				}
				defer sched.Shutdown()

				bus := events.NewBus()
				matchRepo := repositories.NewPostgresMatchRepository(conn)
				coordinator := services.NewMatchLifecycleCoordinator(
					matchRepo,
					repositories.NewPostgresDisputeRepository(conn),
					services.NewScoreReconciler(bus),
					services.NewMatchTimer(sched, bus, logger),
					nil,
					nil,
					bus,
					logger,
				)
				defer coordinator.Close()

				var winner *string
				if winnerID != "" {
					winner = &winnerID
				}
				match, err := coordinator.ResolveDispute(ctx, args[0], models.DisputeStatus(resolution), winner)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), match)
			})
		},
	}
	cmd.Flags().StringVar(&resolution, "resolution", "", "Resolution (upheld, rejected)")
	cmd.Flags().StringVar(&winnerID, "winner", "", "Winner user ID for an upheld dispute")
	_ = cmd.MarkFlagRequired("resolution")
	return cmd
}

// --------------------------------------------------------------------------
// matchmaking: статистика подбора
// --------------------------------------------------------------------------

func matchmakingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matchmaking",
		Short: "Matchmaking reports",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Average wait time and match quality over the last 24 hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, _ *config.Config, conn *sql.DB) error {
				// Живая очередь принадлежит серверу, здесь она всегда пуста.
				queue := services.NewMatchmakingQueue(
					repositories.NewPostgresMatchRepository(conn),
					repositories.NewPostgresPlayerStatsRepository(conn),
					nil,
					logger,
				)
				stats, err := queue.GetMatchmakingStats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), jsonStats{
					AverageWaitTime: stats.AverageWaitTime,
					MatchQuality:    stats.MatchQuality,
				})
			})
		},
	})
	return cmd
}

type jsonStats struct {
	AverageWaitTime float64 `json:"average_wait_time"`
	MatchQuality    float64 `json:"match_quality"`
}

// --------------------------------------------------------------------------
// schema: DDL базы
// --------------------------------------------------------------------------

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the DDL",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), db.Schema)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Create missing tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, _ *config.Config, conn *sql.DB) error {
				if err := db.EnsureSchema(ctx, conn); err != nil {
					return err
				}
				logger.Info("schema applied")
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// token: выпуск JWT
// --------------------------------------------------------------------------

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token (local testing and operators)",
		RunE: func(cmd *cobra.Command, args []string) error {
			userRole := models.UserRole(role)
			if !userRole.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := middleware.IssueToken([]byte(cfg.JWTSecretKey), userID, userRole, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID (user_id claim)")
	cmd.Flags().StringVar(&role, "role", string(models.RolePlayer), "Role (player, admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// --------------------------------------------------------------------------
// Общая подготовка
// --------------------------------------------------------------------------

// withDB загружает конфигурацию, открывает БД и отменяет контекст по Ctrl+C.
func withDB(fn func(ctx context.Context, cfg *config.Config, conn *sql.DB) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	conn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer conn.Close()

	return fn(ctx, cfg, conn)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printDisputes(w io.Writer, disputes []*models.MatchDispute) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMATCH\tREPORTER\tCREATED\tREASON")
	for _, d := range disputes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.MatchID, d.ReporterID, d.CreatedAt.Format(time.RFC3339), d.Reason)
	}
	return tw.Flush()
}
