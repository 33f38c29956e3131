package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AtharvaWandhare/synapse/internal/auth"
	"github.com/AtharvaWandhare/synapse/internal/config"
	"github.com/AtharvaWandhare/synapse/internal/db"
	"github.com/AtharvaWandhare/synapse/internal/model"
	"github.com/AtharvaWandhare/synapse/internal/store/postgres"
)

func newMigrateCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := r.load()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs storage.driver=%s", config.DriverPostgres)
			}
			ctx := commandContext(cmd)
			pool, err := db.NewPostgresPool(ctx, cfg.Database.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := postgres.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info("schema migrated")
			return nil
		},
	}
}

func newBackfillCommand(r *root) *cobra.Command {
	return &cobra.Command{
		Use:   "backfill",
		Short: "Score unscored matches and open missing conversations once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := r.load()
			if err != nil {
				return err
			}
			rt, err := build(commandContext(cmd), cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			for _, t := range rt.tasks() {
				if err := t.Run(commandContext(cmd)); err != nil {
					return fmt.Errorf("%s: %w", t.Name, err)
				}
			}
			return nil
		},
	}
}

func newTokenCommand(r *root) *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token for local testing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := r.load()
			if err != nil {
				return err
			}
			parsed, err := model.ParseRole(role)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt-secret (%s) is required to issue tokens", config.EnvName("auth.jwt-secret"))
			}
			tokens, err := auth.NewJWTAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(model.Identity{UserID: userID, Role: parsed})
			if err != nil {
				return err
			}
			log.Debug("token issued", zap.String("user_id", userID), zap.String("role", role))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&role, "role", string(model.RoleJobSeeker), "job_seeker or company")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", app, version)
		},
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
