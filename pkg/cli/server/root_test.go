package server_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cli "github.com/forgehost/lfs-gateway/pkg/cli/server"
)

func TestNewServerRootCmdHasServeAndScrub(t *testing.T) {
	root := cli.NewServerRootCmd()

	serve, _, err := root.Find([]string{"serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", serve.Name())

	scrub, _, err := root.Find([]string{"scrub"})
	require.NoError(t, err)
	assert.Equal(t, "scrub", scrub.Name())
}

func TestServeRejectsMissingConfigArg(t *testing.T) {
	root := cli.NewServerRootCmd()
	root.SetArgs([]string{"serve"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	assert.Error(t, root.Execute())
}

func TestScrubReportsOkForMatchingDigest(t *testing.T) {
	dataRoot := t.TempDir()
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	writeScrubFixture(t, configPath, dataRoot)

	repoDir := filepath.Join(dataRoot, "org/p", "b9", "4d", "27", "b9", "93")
	require.NoError(t, os.MkdirAll(repoDir, 0o755))

	oidStr := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, oidStr), []byte("hello world"), 0o644))

	root := cli.NewServerRootCmd()
	root.SetArgs([]string{"scrub", configPath, "org/p", oidStr})

	require.NoError(t, root.Execute())
}

func writeScrubFixture(t *testing.T, configPath, dataRoot string) {
	t.Helper()

	contents := "storage:\n  rootDirectory: " + dataRoot + "\n" +
		"repositories:\n  - org/p\n" +
		"token:\n  directory: " + t.TempDir() + "\n  ttl: 1h\n" +
		"oracle:\n  binaryPath: /bin/true\n"

	require.NoError(t, os.WriteFile(configPath, []byte(contents), 0o644))
}
