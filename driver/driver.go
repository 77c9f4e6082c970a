// Package driver replays transaction scripts with a pool of workers and
// aggregates their latency and throughput.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

const filePerm = 0o644

// Options places a driver process in the cluster of drivers. Shard n runs
// workers (n-1)*PoolSize .. n*PoolSize-1.
type Options struct {
	Shard          int
	PoolSize       int
	TransactionDir string
	MetricsDir     string
}

// Driver fans a fixed pool of workers out over their scripts.
type Driver struct {
	opts     Options
	exec     Executor
	log      *slog.Logger
	dispOpts []DispatcherOption
}

func New(opts Options, exec Executor, log *slog.Logger, dispOpts ...DispatcherOption) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{opts: opts, exec: exec, log: log, dispOpts: dispOpts}
}

// WorkerRange returns the first and one-past-last worker index of a shard.
func WorkerRange(shard, poolSize int) (int, int) {
	return (shard - 1) * poolSize, shard * poolSize
}

// ScriptPath is the script replayed by the worker with the given index.
func ScriptPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%d.txt", index))
}

// Report is the aggregated outcome of one driver run.
type Report struct {
	Shard      int
	Clients    []Summary
	Throughput ThroughputSummary
}

// Run replays every script of the shard concurrently and summarizes the
// results in worker index order.
func (d *Driver) Run(ctx context.Context) *Report {
	first, last := WorkerRange(d.opts.Shard, d.opts.PoolSize)
	results := make([]Measurement, last-first)

	var eg errgroup.Group
	for i := first; i < last; i++ {
		w := NewWorker(i, ScriptPath(d.opts.TransactionDir, i), NewDispatcher(d.exec, d.workerOpts(i)...), d.log)
		eg.Go(func() error {
			results[i-first] = w.Run(ctx)
			return nil
		})
	}
	_ = eg.Wait()

	rep := &Report{Shard: d.opts.Shard, Clients: make([]Summary, 0, len(results))}
	for _, m := range results {
		s := Summarize(m)
		d.log.InfoContext(ctx, "client metrics", slog.Int("worker", m.Index), slog.String("row", s.Row()))
		rep.Clients = append(rep.Clients, s)
	}
	rep.Throughput = SummarizeThroughput(rep.Clients, d.opts.PoolSize)
	return rep
}

func (d *Driver) workerOpts(index int) []DispatcherOption {
	opts := append([]DispatcherOption{WithDispatcherLogger(d.log.With(slog.Int("worker", index)))}, d.dispOpts...)
	return opts
}

// ClientsFile and ThroughputFile name the report files of a shard.
func ClientsFile(shard int) string    { return fmt.Sprintf("clients_%d.csv", shard) }
func ThroughputFile(shard int) string { return fmt.Sprintf("throughput_%d.csv", shard) }

// Write stores the report as clients_<shard>.csv and throughput_<shard>.csv
// under dir.
func (r *Report) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	var b strings.Builder
	for _, c := range r.Clients {
		b.WriteString(c.Row())
		b.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(dir, ClientsFile(r.Shard)), []byte(b.String()), filePerm); err != nil {
		return errors.WithStack(err)
	}
	err := os.WriteFile(filepath.Join(dir, ThroughputFile(r.Shard)), []byte(r.Throughput.Row()+"\n"), filePerm)
	return errors.WithStack(err)
}
