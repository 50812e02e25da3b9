package oracle

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/forgehost/lfs-gateway/pkg/log"
)

// actionFlag maps the two privilege-bearing verbs this system knows about
// onto the single-letter flags the bridged access-control tool expects.
var actionFlag = map[string]string{
	"download": "R",
	"upload":   "W",
}

// Gitolite bridges AccessOracle to an external "access"-style binary,
// invoked as:
//
//	<binaryPath> access -q <repo> <user> <R|W>
//
// Exit status 0 means allowed; any non-zero status, or a binary that
// cannot be found or executed, means denied. The oracle never fails
// open: an unreachable binary is logged and treated as a denial.
type Gitolite struct {
	binaryPath string
	timeout    time.Duration
	log        log.Logger
}

const defaultTimeout = 5 * time.Second

// NewGitolite returns a Gitolite oracle invoking binaryPath. An empty
// binaryPath is accepted at construction time -- every HasAccess call
// will then fail closed and log why.
func NewGitolite(binaryPath string, logger log.Logger) *Gitolite {
	return &Gitolite{
		binaryPath: binaryPath,
		timeout:    defaultTimeout,
		log:        logger,
	}
}

// SetTimeout overrides the default per-invocation timeout.
func (g *Gitolite) SetTimeout(d time.Duration) {
	g.timeout = d
}

func (g *Gitolite) PrepareRepoName(raw string) string {
	name := strings.TrimSuffix(raw, ".git")
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.Trim(name, "/")

	return name
}

func (g *Gitolite) HasAccess(repo, user, action string) bool {
	flag, ok := actionFlag[action]
	if !ok {
		g.log.Error().Str("action", action).Msg("oracle: unrecognized action, denying")

		return false
	}

	if g.binaryPath == "" {
		g.log.Error().Msg("oracle: no binary configured, denying")

		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	// argv-form spawn: repo/user never pass through a shell, so neither
	// can carry shell metacharacters into the invocation.
	cmd := exec.CommandContext(ctx, g.binaryPath, "access", "-q", repo, user, flag)

	err := cmd.Run()
	if err != nil {
		g.log.Info().
			Str("repo", repo).
			Str("user", user).
			Str("action", action).
			Err(err).
			Msg("oracle: access denied")

		return false
	}

	return true
}
