package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	adminEmail    string
	adminPassword string
	adminName     string
)

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "admin email (required)")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "admin password, defaults to $BUILDEA_ADMIN_PASSWORD")
	createAdminCmd.Flags().StringVar(&adminName, "name", "Admin", "display name for a new account")
	_ = createAdminCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(createAdminCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and indexes, then exit",
	Long: `Apply pending Postgres migrations (or create MongoDB indexes) for the
configured store driver.

Examples:
  # Migrate using environment configuration
  buildea-api migrate

  # Migrate with a config file
  buildea-api migrate --config ./buildea.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd)
		rt, err := buildRuntime(ctx, configPath, true)
		if err != nil {
			return err
		}
		defer rt.Close()
		rt.logger.Info(ctx, "migrations applied", zap.String("store", rt.cfg.StoreDriver))
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Push every idea to the search engine",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd)
		rt, err := buildRuntime(ctx, configPath, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		if rt.cfg.MeiliURL == "" {
			return errors.New("reindex needs BUILDEA_MEILI_URL")
		}
		count, err := rt.service.ReindexIdeas(ctx)
		if err != nil {
			return fmt.Errorf("reindex ideas: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d ideas\n", count)
		return nil
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account or promote an existing one",
	Long: `Create an admin account, or promote the account that already uses the
given email.

Examples:
  buildea-api create-admin --email staff@example.com --password 'long-secret'`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := commandContext(cmd)
		password := adminPassword
		if password == "" {
			password = os.Getenv("BUILDEA_ADMIN_PASSWORD")
		}
		if password == "" {
			return errors.New("a password is required")
		}
		rt, err := buildRuntime(ctx, configPath, false)
		if err != nil {
			return err
		}
		defer rt.Close()
		user, err := rt.service.EnsureAdmin(ctx, adminEmail, password, adminName)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin %s (%s) ready\n", user.Email, user.ID)
		return nil
	},
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
