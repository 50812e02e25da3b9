package main

import (
	"os"

	cli "github.com/forgehost/lfs-gateway/pkg/cli/server"
)

func main() {
	if err := cli.NewServerRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
