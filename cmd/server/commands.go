package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrijs2005/daybook/internal/buildinfo"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/server"
	"github.com/dmitrijs2005/daybook/internal/server/auth"
	"github.com/dmitrijs2005/daybook/internal/server/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "daybook-server",
		Short:        "Sync server for encrypted daybook notes and images",
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd(), newTokenCmd(), newVersionCmd())
	return root
}

// newServeCmd leaves flag parsing to the config package, which reads the
// short flags documented there straight from os.Args.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "serve [-c config.json] [-a addr] [-d dsn] ...",
		Short:              "Run the gRPC sync endpoint",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			buildinfo.PrintBuildData(cmd.OutOrStdout())

			cfg := config.LoadConfig()
			logger := logging.NewJSON(os.Stdout, slog.LevelInfo)

			app, err := server.NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token --user <id>",
		Short: "Issue an access token for a user",
		Args:  cobra.ArbitraryArgs,
		// server config flags such as -s may follow
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			if ttl <= 0 {
				ttl = cfg.AccessTokenValidityDuration
			}

			tok, err := auth.GenerateToken(userID, []byte(cfg.SecretKey), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id the token is issued for")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to the configured validity)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
