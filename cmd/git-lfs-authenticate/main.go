package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forgehost/lfs-gateway/pkg/authenticator"
	"github.com/forgehost/lfs-gateway/pkg/config"
	"github.com/forgehost/lfs-gateway/pkg/log"
	"github.com/forgehost/lfs-gateway/pkg/oracle"
	"github.com/forgehost/lfs-gateway/pkg/token"
)

const (
	userEnvVar = "GL_USER"
)

func main() {
	cmd := newAuthenticateCmd()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAuthenticateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "git-lfs-authenticate <repo> <action>",
		Short:        "mint or refresh a bearer token for a Git LFS HTTP session",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("LFS_GATEWAY_CONFIG"), "path to the gateway config file")

	return cmd
}

func run(configPath, repo, action string) error {
	user := os.Getenv(userEnvVar)
	if user == "" {
		return fmt.Errorf("%s is not set in the environment", userEnvVar)
	}

	if configPath == "" {
		return fmt.Errorf("no config path given (set --config or LFS_GATEWAY_CONFIG)")
	}

	conf := config.New()
	if err := config.LoadConfiguration(conf, configPath); err != nil {
		return err
	}

	logger := log.NewLogger(conf.Log.Level, conf.Log.Output)

	accessOracle := oracle.NewGitolite(conf.Oracle.BinaryPath, logger)
	if conf.Oracle.Timeout > 0 {
		accessOracle.SetTimeout(conf.Oracle.Timeout)
	}

	tokens := token.New(conf.Token.Directory, conf.Token.TTL, logger)
	if conf.Token.FilePerms != 0 {
		tokens.SetFilePerms(os.FileMode(conf.Token.FilePerms))
	}

	auth := authenticator.New(tokens, accessOracle, conf.Repositories, logger)

	cred, err := auth.Authorize(user, repo, action)
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(cred)
}
