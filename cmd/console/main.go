package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/matka-backoffice/app"
	"github.com/jrsteele09/matka-backoffice/internal/config"
	"github.com/jrsteele09/matka-backoffice/internal/logging"
	"github.com/jrsteele09/matka-backoffice/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "console",
		Short:        "Back-office console for the matka admin API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")
	root.AddCommand(serveCmd(), loginCmd(), logoutCmd(), statusCmd())
	return root
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg, cfg.GetEnv())
	return cfg, nil
}

// offlineContext builds an app context for the one-shot commands. The guard is not started;
// only the persisted session is loaded.
func offlineContext(ctx context.Context) (*app.Context, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	appCtx, err := app.FromConfig(cfg, nil, nil)
	if err != nil {
		return nil, err
	}
	appCtx.Store.Rehydrate(ctx)
	return appCtx, nil
}

func loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session for the console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			appCtx, err := offlineContext(ctx)
			if err != nil {
				return err
			}
			defer appCtx.Close()

			user, err := appCtx.Login(ctx, username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", user.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "operator username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "operator password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCtx, err := offlineContext(cmd.Context())
			if err != nil {
				return err
			}
			defer appCtx.Close()

			if appCtx.Logout(cmd.Context()) {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "No session was held")
			}
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	var verify bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the persisted session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			appCtx, err := offlineContext(ctx)
			if err != nil {
				return err
			}
			defer appCtx.Close()

			out := cmd.OutOrStdout()
			current := appCtx.Store.Current()
			if !current.IsLoggedIn {
				fmt.Fprintln(out, "Not logged in")
				return nil
			}
			fmt.Fprintf(out, "Operator: %s\n", current.User.DisplayName())
			if claims, ok := session.TokenClaims(current.Token); ok && !claims.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Token expires: %s (%s)\n", claims.ExpiresAt.Local().Format(time.RFC1123),
					time.Until(claims.ExpiresAt).Round(time.Second))
			}
			if !verify {
				return nil
			}
			if err := appCtx.API.CheckSession(ctx); err != nil {
				log.Debug().Err(err).Msg("session check failed")
				fmt.Fprintf(out, "Backend: %v\n", err)
				return nil
			}
			fmt.Fprintln(out, "Backend: session valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "ask the backend whether the token is still valid")
	return cmd
}
