package kv

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
)

// Checkpoint writes the full version history of the store to path. Unlike
// Export the file keeps every committed version and the commit clock.
func (c *Cluster) Checkpoint(ctx context.Context, path string) error {
	snap, err := c.st.Snapshot()
	if err != nil {
		return errors.WithStack(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := io.Copy(tmp, snap); err != nil {
		return errors.CombineErrors(errors.WithStack(err), cleanup(tmp))
	}
	if err := tmp.Close(); err != nil {
		return errors.CombineErrors(errors.WithStack(err), os.Remove(tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.WithStack(err)
	}
	c.log.InfoContext(ctx, "checkpoint written",
		slog.String("path", path),
		slog.Time("as_of", c.CommitTime()),
	)
	return nil
}

func cleanup(f *os.File) error {
	return errors.CombineErrors(f.Close(), os.Remove(f.Name()))
}

// RestoreCheckpoint replaces the store contents with a file written by
// Checkpoint. It reports false when path does not exist.
func (c *Cluster) RestoreCheckpoint(ctx context.Context, path string) (bool, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.WithStack(err)
	}
	if err := c.st.Restore(bytes.NewReader(b)); err != nil {
		return false, errors.Wrapf(err, "restore %s", path)
	}
	c.clock.Observe(c.st.LastCommitTS())
	c.log.InfoContext(ctx, "checkpoint restored",
		slog.String("path", path),
		slog.Time("as_of", c.CommitTime()),
	)
	return true, nil
}

// CommitTime is the wall clock time of the newest commit timestamp issued
// or observed by the cluster.
func (c *Cluster) CommitTime() time.Time {
	return WallTime(c.clock.Current())
}
