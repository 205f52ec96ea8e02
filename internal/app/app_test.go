package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huntwise/regwatch/internal/app"
	"github.com/huntwise/regwatch/internal/config"
)

func TestNewWithMemoryBackends(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Sources = map[string]config.SourceConfig{
		"co-cpw": {URLs: map[string]string{"fees": "https://cpw.example/fees"}},
	}

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.LKG)
	require.NotNil(t, a.Alerts)
	require.NotNil(t, a.Backoffs)
	require.NotNil(t, a.Archive)
	require.NotNil(t, a.Pub)
	require.NotNil(t, a.Runner)

	contexts, err := a.Provider.Contexts(context.Background())
	require.NoError(t, err)
	require.Len(t, contexts, 1)
}

func TestNewWithLocalArchive(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Archive.Backend = "local"
	cfg.Archive.LocalDir = t.TempDir()

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.Archive)
}
