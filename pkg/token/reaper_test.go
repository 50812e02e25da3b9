package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgehost/lfs-gateway/pkg/log"
	"github.com/forgehost/lfs-gateway/pkg/token"
)

func TestReaperSweepsExpiredTokensAndSparesFresh(t *testing.T) {
	dir := t.TempDir()
	store := token.New(dir, time.Hour, log.NewLogger("error", ""))

	expired, err := token.NewToken("expired-user", -time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.Save(expired))

	fresh, err := store.LoadOrCreate("fresh-user")
	require.NoError(t, err)
	require.NotNil(t, fresh)

	reaper := token.NewReaper(store, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	reaper.Run(ctx)

	_, err = store.Load("expired-user", expired.Password)
	assert.Error(t, err)

	_, err = store.Load("fresh-user", fresh.Password)
	assert.NoError(t, err)
}
