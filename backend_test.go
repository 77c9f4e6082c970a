package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bootjp/wholesale/driver"
	"github.com/bootjp/wholesale/internal/config"
	"github.com/bootjp/wholesale/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMemoryBackendExportsAndReloads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.Memory = config.Memory{Seed: true, ExportPath: filepath.Join(dir, "state.db")}

	st, closeStore, err := openStore(ctx, cfg, quiet)
	require.NoError(t, err)
	ok, err := st.Apply(ctx, &model.Batch{Mutations: []model.Mutation{
		&model.SetDistrictYTD{Warehouse: 1, District: 1, YTD: decimal.RequireFromString("1234.5"), Level: model.One},
	}})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, closeStore(ctx))

	cfg.Memory = config.Memory{SnapshotPath: filepath.Join(dir, "state.db")}
	st, closeStore, err = openStore(ctx, cfg, quiet)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeStore(ctx)) }()

	stats, err := st.CustomerStats(ctx, model.CustomerKey{Warehouse: 1, District: 1, Customer: 1}, model.One)
	require.NoError(t, err)
	require.Equal(t, "1234.5", stats.DistrictYTD.String())
}

func TestRunMemoryShard(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Shard = 1
	cfg.PoolSize = 2
	cfg.Backend = config.BackendMemory
	cfg.Memory.Seed = true
	cfg.TransactionDir = filepath.Join(dir, "tx")
	cfg.MetricsDir = filepath.Join(dir, "metrics")
	require.NoError(t, os.MkdirAll(cfg.TransactionDir, 0o755))
	require.NoError(t, os.WriteFile(driver.ScriptPath(cfg.TransactionDir, 0), []byte("T\nS,1,1,50,3\n"), 0o600))

	require.NoError(t, run(context.Background(), cfg, quiet))

	_, err := os.Stat(filepath.Join(cfg.MetricsDir, driver.ClientsFile(1)))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.MetricsDir, driver.ThroughputFile(1)))
	require.NoError(t, err)
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Backend = "etcd"
	_, _, err := openStore(context.Background(), cfg, quiet)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestMemoryBackendResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := config.Default()
	cfg.Backend = config.BackendMemory
	cfg.Memory = config.Memory{Seed: true, CheckpointPath: filepath.Join(t.TempDir(), "state.ckpt")}
	key := model.CustomerKey{Warehouse: 1, District: 1, Customer: 1}

	st, closeStore, err := openStore(ctx, cfg, quiet)
	require.NoError(t, err)
	before, err := st.CustomerStats(ctx, key, model.One)
	require.NoError(t, err)
	ok, err := st.Apply(ctx, &model.Batch{Mutations: []model.Mutation{
		&model.UpdateCustomerPayment{
			Key: key, Balance: decimal.NewFromInt(-5), YTDPayment: before.YTDPayment + 5,
			PaymentCount: before.PaymentCount + 1, Guarded: true, ExpectedPaymentCount: before.PaymentCount,
		},
	}})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, closeStore(ctx))

	// Seed stays set; the checkpoint wins over reseeding.
	st, closeStore, err = openStore(ctx, cfg, quiet)
	require.NoError(t, err)
	defer func() { require.NoError(t, closeStore(ctx)) }()

	after, err := st.CustomerStats(ctx, key, model.One)
	require.NoError(t, err)
	require.Equal(t, before.PaymentCount+1, after.PaymentCount)
	require.InDelta(t, before.YTDPayment+5, after.YTDPayment, 1e-6)

	// Commits after the restore sort above the restored versions.
	ok, err = st.Apply(ctx, &model.Batch{Mutations: []model.Mutation{
		&model.SetDistrictYTD{Warehouse: 1, District: 1, YTD: decimal.NewFromInt(7)},
	}})
	require.NoError(t, err)
	require.True(t, ok)
	after, err = st.CustomerStats(ctx, key, model.One)
	require.NoError(t, err)
	require.Equal(t, "7", after.DistrictYTD.String())
}
