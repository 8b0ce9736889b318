package cli

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophqms/internal/common"
	"github.com/dmitrijs2005/gophqms/internal/logging"
	"github.com/dmitrijs2005/gophqms/internal/server/auth"
	serverconfig "github.com/dmitrijs2005/gophqms/internal/server/config"
	"github.com/dmitrijs2005/gophqms/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophqms/internal/server/services"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// newTokenCmd mints an actor token with the server's secret, for scripts
// and integration tests. The secret defaults to QMS_SECRET_KEY.
func newTokenCmd(lookup func(string) (string, bool)) *cobra.Command {
	var (
		actor  string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an actor id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = serverconfig.LoadEnvConfig(lookup).SecretKey
			}
			token, err := auth.GenerateToken(actor, []byte(secret), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id carried by the token")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret (default: QMS_SECRET_KEY)")
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "token lifetime")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newActorCmd(lookup func(string) (string, bool)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "Manage actors directly in the server database",
	}
	cmd.AddCommand(newActorAddCmd(lookup))
	return cmd
}

func newActorAddCmd(lookup func(string) (string, bool)) *cobra.Command {
	var (
		userName    string
		displayName string
		scheme      string
		dsn         string
		generate    bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register an actor (reads QMS_DATABASE_DSN)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := serverconfig.LoadEnvConfig(lookup)
			if dsn != "" {
				cfg.DatabaseDSN = dsn
			}

			if userName == "" {
				var err error
				userName, err = promptLine(cmd, "User name")
				if err != nil {
					return err
				}
			}
			var (
				password  []byte
				generated string
			)
			if generate {
				var err error
				if generated, err = common.MakeRandHexString(12); err != nil {
					return err
				}
				password = []byte(generated)
			} else {
				var err error
				password, err = promptPassword(cmd, "Password for "+userName)
				if err != nil {
					return err
				}
			}

			log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}
			db, err := sql.Open("pgx", cfg.DatabaseDSN)
			if err != nil {
				return fmt.Errorf("db open error: %w", err)
			}
			defer db.Close()

			svc := services.NewActorService(db, repomanager.NewPostgresRepositoryManager(), cfg, log)
			a, err := svc.Register(ctx, services.RegisterActorInput{
				UserName:    userName,
				DisplayName: displayName,
				Password:    password,
				Scheme:      scheme,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "actor %s registered as %s\n", a.UserName, a.ID)
			if generated != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "initial password: %s\n", generated)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userName, "user", "u", "", "login name")
	cmd.Flags().StringVar(&displayName, "name", "", "display name shown on signatures")
	cmd.Flags().StringVar(&scheme, "scheme", "", "password scheme: argon2id (default) or bcrypt")
	cmd.Flags().BoolVar(&generate, "generate-password", false, "generate a random initial password and print it")
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN, overrides QMS_DATABASE_DSN")
	return cmd
}
