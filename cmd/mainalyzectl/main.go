// Command mainalyzectl runs operator tasks against the Mainalyze database:
// schema migration, admin role changes and one-off maintenance passes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fairyhunter13/mainalyze/internal/adapter/observability"
	"github.com/fairyhunter13/mainalyze/internal/adapter/repo/postgres"
	"github.com/fairyhunter13/mainalyze/internal/config"
	"github.com/fairyhunter13/mainalyze/internal/domain"
	"github.com/fairyhunter13/mainalyze/internal/usecase"
)

// backend is what the commands need from the database.
type backend struct {
	Migrate  func(ctx context.Context) ([]string, error)
	Profiles domain.ProfileRepository
	Jobs     domain.EvaluationRepository
	Audit    interface {
		domain.AuditRepository
		postgres.Pruner
	}
	Close func()
}

type opener func(ctx context.Context, cfg config.Config) (*backend, error)

func openPostgres(ctx context.Context, cfg config.Config) (*backend, error) {
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	return &backend{
		Migrate:  func(ctx context.Context) ([]string, error) { return postgres.Migrate(ctx, pool) },
		Profiles: postgres.NewProfileRepo(pool),
		Jobs:     postgres.NewEvaluationRepo(pool),
		Audit:    postgres.NewAuditRepo(pool),
		Close:    pool.Close,
	}, nil
}

func main() {
	if err := newRootCmd(config.Load, openPostgres).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(load func() (config.Config, error), open opener) *cobra.Command {
	var (
		cfg     config.Config
		be      *backend
		timeout time.Duration
	)
	root := &cobra.Command{
		Use:          "mainalyzectl",
		Short:        "Operator tasks for the Mainalyze backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = load(); err != nil {
				return err
			}
			slog.SetDefault(observability.SetupLogger(cfg))
			be, err = open(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if be != nil && be.Close != nil {
				be.Close()
			}
		},
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "Deadline for the whole command")

	withTimeout := func(cmd *cobra.Command) (context.Context, context.CancelFunc) {
		return context.WithTimeout(cmd.Context(), timeout)
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			applied, err := be.Migrate(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				cmd.Println("schema is up to date")
				return nil
			}
			for _, v := range applied {
				cmd.Printf("applied %s\n", v)
			}
			return nil
		},
	}

	var actor string
	role := func(use string, grant bool) *cobra.Command {
		short := "Grant admin rights to a user"
		if !grant {
			short = "Revoke admin rights from a user"
		}
		return &cobra.Command{
			Use:   use + " <user-id>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("user id must be a UUID: %w", err)
				}
				ctx, cancel := withTimeout(cmd)
				defer cancel()
				p, err := setRole(ctx, be, actor, id.String(), grant)
				if err != nil {
					return err
				}
				cmd.Printf("%s is_admin=%t\n", p.ID, p.IsAdmin)
				return nil
			},
		}
	}
	grantCmd, revokeCmd := role("grant-admin", true), role("revoke-admin", false)
	for _, c := range []*cobra.Command{grantCmd, revokeCmd} {
		c.Flags().StringVar(&actor, "as", "", "Admin user id to act as; the change is then checked and audited like an API call")
	}

	sweep := &cobra.Command{
		Use:   "sweep-stuck",
		Short: "Fail evaluations pending longer than STUCK_EVALUATION_AGE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			n, err := usecase.StuckSweeper{Jobs: be.Jobs, Age: cfg.StuckEvaluationAge, FailPolicy: cfg.FailWritePolicy()}.SweepOnce(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("failed %d stuck evaluation(s)\n", n)
			return nil
		},
	}

	prune := &cobra.Command{
		Use:   "prune-audit",
		Short: "Delete audit entries older than AUDIT_RETENTION_DAYS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()
			return postgres.NewCleanupService(be.Audit, cfg.AuditRetentionDays).CleanupOldData(ctx)
		},
	}

	root.AddCommand(migrate, grantCmd, revokeCmd, sweep, prune)
	return root
}

// setRole changes a user's admin flag. With an acting admin it goes through
// the same checks and audit trail as the API; without one it is the
// bootstrap path for the first admin.
func setRole(ctx context.Context, be *backend, actor, id string, grant bool) (domain.Profile, error) {
	if actor != "" {
		if _, err := uuid.Parse(actor); err != nil {
			return domain.Profile{}, fmt.Errorf("--as must be a UUID: %w", err)
		}
		return usecase.NewAdminService(be.Profiles, be.Audit).SetAdmin(ctx, usecase.Actor{ID: actor, IP: "cli"}, id, grant)
	}
	p, err := be.Profiles.SetAdmin(ctx, id, grant)
	if err != nil {
		return domain.Profile{}, err
	}
	slog.Info("audit",
		slog.String("admin_id", "cli"),
		slog.String("action", usecase.ActionUpdateUserRole),
		slog.String("resource_id", id),
		slog.Bool("is_admin", grant))
	return p, nil
}
