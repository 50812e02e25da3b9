package log_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/forgehost/lfs-gateway/pkg/log"
)

func TestNewLoggerStdout(t *testing.T) {
	logger := log.NewLogger(zerolog.DebugLevel.String(), "")
	assert.NotNil(t, logger)
}

func TestNewLoggerInvalidLevel(t *testing.T) {
	assert.Panics(t, func() { _ = log.NewLogger("not-a-level", "") })
}

func TestNewLoggerBadOutput(t *testing.T) {
	dir := t.TempDir()
	badPath := filepath.Join(dir, "nested", "does", "not", "exist.log")

	assert.Panics(t, func() { _ = log.NewLogger(zerolog.DebugLevel.String(), badPath) })
}

func TestNewLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "gateway.log")

	logger := log.NewLogger(zerolog.InfoLevel.String(), outPath)
	logger.Info().Msg("hello")

	content, err := os.ReadFile(outPath)
	assert.NoError(t, err)
	assert.Contains(t, string(content), "hello")
}

func TestNewAuditLogger(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.log")

	audit := log.NewAuditLogger(zerolog.InfoLevel.String(), auditPath)
	audit.AccessDecision("alice", "org/project", "upload", true)

	content, err := os.ReadFile(auditPath)
	assert.NoError(t, err)
	assert.Contains(t, string(content), "access decision")
	assert.Contains(t, string(content), "alice")
}

func TestNewAuditLoggerInvalidLevel(t *testing.T) {
	assert.Panics(t, func() { _ = log.NewAuditLogger("bogus", "") })
}

func TestGoroutineID(t *testing.T) {
	assert.GreaterOrEqual(t, log.GoroutineID(), 0)
}
