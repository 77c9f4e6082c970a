package main

import (
	"context"
	"log/slog"

	"github.com/bootjp/wholesale/cql"
	"github.com/bootjp/wholesale/internal/config"
	"github.com/bootjp/wholesale/internal/fixture"
	"github.com/bootjp/wholesale/kv"
	"github.com/bootjp/wholesale/store"
	"github.com/bootjp/wholesale/txn"
	"github.com/cockroachdb/errors"
)

type closeFunc func(ctx context.Context) error

// openStore builds the configured backend. The returned close func flushes
// the memory backend to its export and checkpoint files before releasing it.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (txn.Store, closeFunc, error) {
	switch cfg.Backend {
	case config.BackendCQL:
		s, err := cql.Open(cql.Config{
			Hosts:             cfg.CQL.Hosts,
			Keyspace:          cfg.CQL.Keyspace,
			Consistency:       cfg.CQL.Consistency,
			SerialConsistency: cfg.CQL.SerialConsistency,
			Timeout:           cfg.CQL.Timeout(),
			NumConns:          cfg.CQL.NumConns,
		}, cql.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, func(context.Context) error { return s.Close() }, nil
	case config.BackendMemory:
		c, err := openMemory(ctx, cfg.Memory, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, func(ctx context.Context) error {
			var err error
			if cfg.Memory.ExportPath != "" {
				err = c.Export(ctx, cfg.Memory.ExportPath)
			}
			if cfg.Memory.CheckpointPath != "" {
				err = errors.CombineErrors(err, c.Checkpoint(ctx, cfg.Memory.CheckpointPath))
			}
			return errors.CombineErrors(err, c.Close())
		}, nil
	default:
		return nil, nil, errors.Wrapf(config.ErrInvalidConfig, "backend %q", cfg.Backend)
	}
}

func openMemory(ctx context.Context, cfg config.Memory, logger *slog.Logger) (*kv.Cluster, error) {
	c := kv.NewCluster(store.NewMVCCStore(store.WithLogger(logger)), kv.WithLogger(logger))
	if cfg.CheckpointPath != "" {
		restored, err := c.RestoreCheckpoint(ctx, cfg.CheckpointPath)
		if err != nil {
			return nil, errors.CombineErrors(err, c.Close())
		}
		if restored {
			return c, nil
		}
	}
	switch {
	case cfg.SnapshotPath != "":
		if err := c.Import(ctx, cfg.SnapshotPath); err != nil {
			return nil, errors.CombineErrors(err, c.Close())
		}
		logger.Info("memory backend loaded", slog.String("path", cfg.SnapshotPath))
	case cfg.Seed:
		if err := fixture.Seed(ctx, c); err != nil {
			return nil, errors.CombineErrors(err, c.Close())
		}
		logger.Info("memory backend seeded with sample data")
	}
	return c, nil
}
