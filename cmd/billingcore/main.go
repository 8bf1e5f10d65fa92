package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/billingcore/internal/analytics"
	"github.com/railzwaylabs/billingcore/internal/apikey"
	apikeydomain "github.com/railzwaylabs/billingcore/internal/apikey/domain"
	"github.com/railzwaylabs/billingcore/internal/authorization"
	"github.com/railzwaylabs/billingcore/internal/bootstrap"
	"github.com/railzwaylabs/billingcore/internal/clock"
	"github.com/railzwaylabs/billingcore/internal/config"
	"github.com/railzwaylabs/billingcore/internal/country"
	"github.com/railzwaylabs/billingcore/internal/customer"
	"github.com/railzwaylabs/billingcore/internal/entitlement"
	"github.com/railzwaylabs/billingcore/internal/integration"
	"github.com/railzwaylabs/billingcore/internal/migration"
	"github.com/railzwaylabs/billingcore/internal/observability"
	"github.com/railzwaylabs/billingcore/internal/order"
	"github.com/railzwaylabs/billingcore/internal/organization"
	"github.com/railzwaylabs/billingcore/internal/orgcontext"
	"github.com/railzwaylabs/billingcore/internal/payment"
	"github.com/railzwaylabs/billingcore/internal/ppp"
	"github.com/railzwaylabs/billingcore/internal/pricing"
	"github.com/railzwaylabs/billingcore/internal/product"
	"github.com/railzwaylabs/billingcore/internal/promotion"
	"github.com/railzwaylabs/billingcore/internal/redis"
	"github.com/railzwaylabs/billingcore/internal/scheduler"
	"github.com/railzwaylabs/billingcore/internal/security/vault"
	"github.com/railzwaylabs/billingcore/internal/seed"
	"github.com/railzwaylabs/billingcore/internal/server"
	"github.com/railzwaylabs/billingcore/internal/subscription"
	"github.com/railzwaylabs/billingcore/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const commandTimeout = 2 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "billingcore",
		Short:        "Multi-tenant billing core",
		Version:      readVersionFromEnv(),
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd(), newAPIKeyCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and webhook receiver",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(serviceOptions(), seed.Module, bootstrap.Module, scheduler.Module, server.Module)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conn *gorm.DB
				log  *zap.Logger
			)
			return runOnce(cmd.Context(), infraOptions(), fx.Populate(&conn, &log), func(ctx context.Context) error {
				state, err := migration.Run(ctx, conn)
				if err != nil {
					return fmt.Errorf("migrate failed: %w", err)
				}
				log.Info("schema migrated", zap.String("schema_version", state.SchemaVersion))
				return nil
			})
		},
	}
}

func newSeedCmd() *cobra.Command {
	var opts seed.Options
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap organization and admin API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seeder *seed.Seeder
			return runOnce(cmd.Context(), fx.Options(serviceOptions(), seed.Module), fx.Populate(&seeder), func(ctx context.Context) error {
				res, err := seeder.Run(ctx, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "organization %s (%s)\n", res.Org.Name, res.Org.ID)
				if res.AdminKey != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "admin api key: %s\n", res.AdminKey)
					fmt.Fprintln(cmd.OutOrStdout(), "store it now, it will not be shown again")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.OrgName, "org-name", "", "organization name (defaults to BOOTSTRAP_ORG_NAME)")
	cmd.Flags().StringVar(&opts.AdminKey, "admin-key", "", "use this admin key instead of generating one")
	cmd.Flags().BoolVar(&opts.Sample, "sample", false, "also create a sample product, PPP rule and promotion")
	return cmd
}

func newAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}

	var (
		orgID string
		req   apikeydomain.CreateAPIKeyRequest
		role  string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue an API key for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(strings.TrimSpace(orgID))
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid --org-id %q", orgID)
			}
			req.Role = apikeydomain.Role(role)

			var keys apikeydomain.Service
			return runOnce(cmd.Context(), fx.Options(infraOptions(), apikey.Module), fx.Populate(&keys), func(ctx context.Context) error {
				issued, err := keys.Create(orgcontext.WithOrgID(ctx, id), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n", issued.Key, issued.Name, issued.Role)
				return nil
			})
		},
	}
	create.Flags().StringVar(&orgID, "org-id", "", "organization id")
	create.Flags().StringVar(&req.Name, "name", "", "key name")
	create.Flags().StringVar(&role, "role", string(apikeydomain.RoleMember), "admin or member")
	_ = create.MarkFlagRequired("org-id")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}

// infraOptions is what every command needs: config, logging, ids and the
// database.
func infraOptions() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(newSnowflakeNode),
		clock.Module,
		db.Module,
	)
}

func serviceOptions() fx.Option {
	return fx.Options(
		infraOptions(),
		migration.Module,
		redis.Module,
		vault.Module,
		authorization.Module,
		organization.Module,
		country.Module,
		product.Module,
		apikey.Module,
		customer.Module,
		ppp.Module,
		promotion.Module,
		pricing.Module,
		order.Module,
		subscription.Module,
		integration.Module,
		entitlement.Module,
		analytics.Module,
		payment.Module,
	)
}

// runOnce starts the app, runs fn and stops it again.
func runOnce(parent context.Context, opts fx.Option, populate fx.Option, fn func(context.Context) error) error {
	if parent == nil {
		parent = context.Background()
	}
	app := fx.New(opts, populate)
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(parent, commandTimeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx)
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
