package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"example.com/stravasync/internal/config"
	"example.com/stravasync/internal/dispatch"
	"example.com/stravasync/internal/oauthstate"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.FromViper(config.New())
	cfg.Store = config.StoreMemory
	return cfg
}

func TestNewEngineWiresComponents(t *testing.T) {
	cfg := testConfig(t)
	store, release, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer release()

	engine := NewEngine(cfg, store, zap.NewNop())

	require.NotNil(t, engine.Syncer)
	require.NotNil(t, engine.Webhooks)
	require.NotNil(t, engine.Runner)
	require.Equal(t, 200, engine.Client.PageSize())
}

func TestOpenStoreSQLite(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = config.StoreSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "sync.db")

	store, release, err := OpenStore(context.Background(), cfg)
	require.NoError(t, err)
	defer release()

	cred, err := store.GetCredential(context.Background(), 1)
	require.NoError(t, err)
	require.Nil(t, cred)
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = "mongo"

	_, _, err := OpenStore(context.Background(), cfg)
	require.Error(t, err)
}

func TestOpenStateStoreFallsBackToMemory(t *testing.T) {
	store, release, err := OpenStateStore(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer release()

	require.IsType(t, &oauthstate.MemoryStore{}, store)
}

func TestNewDispatcherModes(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	d, release, err := NewDispatcher(ctx, cfg, dispatch.NewRunner(nil, nil, nil), zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &dispatch.Pool{}, d)
	release()

	cfg.DispatchMode = config.DispatchKafka
	d, release, err = NewDispatcher(ctx, cfg, nil, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, &dispatch.KafkaDispatcher{}, d)
	release()

	cfg.DispatchMode = config.DispatchPool
	cfg.QueuePolicy = "lifo"
	_, _, err = NewDispatcher(ctx, cfg, nil, zap.NewNop())
	require.Error(t, err)
}
