// Package server builds the cobra command tree for the gateway binary:
// "serve" runs the HTTP server, "scrub" walks the BlobStore recomputing
// digests offline.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/forgehost/lfs-gateway/pkg/api"
	"github.com/forgehost/lfs-gateway/pkg/blobstore"
	"github.com/forgehost/lfs-gateway/pkg/config"
	"github.com/forgehost/lfs-gateway/pkg/log"
	"github.com/forgehost/lfs-gateway/pkg/oracle"
	"github.com/forgehost/lfs-gateway/pkg/token"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "serve <config>",
		Aliases:      []string{"serve"},
		Short:        "serve accepts and serves Git LFS blob transfers",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.New()
			if err := config.LoadConfiguration(conf, args[0]); err != nil {
				return err
			}

			logger := log.NewLogger(conf.Log.Level, conf.Log.Output)

			var audit *log.Logger
			if conf.Log.Audit != "" {
				audit = log.NewAuditLogger(conf.Log.Level, conf.Log.Audit)
			}

			store := blobstore.New(conf.Storage.RootDirectory, conf.Repositories, logger)
			store.SetPerms(os.FileMode(conf.Storage.DirPerms), os.FileMode(conf.Storage.FilePerms))

			tokens := token.New(conf.Token.Directory, conf.Token.TTL, logger)
			if conf.Token.FilePerms != 0 {
				tokens.SetFilePerms(os.FileMode(conf.Token.FilePerms))
			}

			accessOracle := oracle.NewGitolite(conf.Oracle.BinaryPath, logger)
			if conf.Oracle.Timeout > 0 {
				accessOracle.SetTimeout(conf.Oracle.Timeout)
			}

			srv := api.New(conf, store, tokens, accessOracle, logger, audit)
			srv.SetupRoutes()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reaper := token.NewReaper(tokens, conf.Token.TTL)
			go reaper.Run(ctx)

			go func() {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("server: error during shutdown")
				}
			}()

			logger.Info().Msg("server: starting")

			if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("server: exited with error")

				return err
			}

			return nil
		},
	}
}

func newScrubCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "scrub <config> <repo> <oid>",
		Short:        "scrub recomputes a blob's digest and reports mismatches",
		Args:         cobra.ExactArgs(3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.New()
			if err := config.LoadConfiguration(conf, args[0]); err != nil {
				return err
			}

			logger := log.NewLogger(conf.Log.Level, conf.Log.Output)
			store := blobstore.New(conf.Storage.RootDirectory, conf.Repositories, logger)

			repoStore, err := store.Repo(args[1])
			if err != nil {
				return err
			}

			if err := repoStore.VerifyDigest(args[2]); err != nil {
				return fmt.Errorf("scrub: %s/%s: %w", args[1], args[2], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s/%s: ok\n", args[1], args[2])

			return nil
		},
	}
}

const shutdownTimeout = 30 * time.Second

// NewServerRootCmd returns the top-level "lfs-gateway" command with its
// serve and scrub subcommands attached.
func NewServerRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lfs-gateway",
		Short: "lfs-gateway serves the Git LFS batch and transfer protocol",
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newScrubCmd())

	return rootCmd
}
