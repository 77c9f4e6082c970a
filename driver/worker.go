package driver

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
)

// progressEvery is how many records pass between progress log lines.
const progressEvery = 1000

// Measurement is what a worker yields: the records it executed and their
// latencies in milliseconds. Err is set when the run ended early.
type Measurement struct {
	Index     int
	Executed  int
	Latencies []int64
	Err       error
}

// Worker replays one script through its own dispatcher.
type Worker struct {
	index      int
	path       string
	dispatcher *Dispatcher
	log        *slog.Logger
}

func NewWorker(index int, path string, d *Dispatcher, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{index: index, path: path, dispatcher: d, log: log.With(slog.Int("worker", index))}
}

// Run replays the script to the end. A missing file, a read error or a
// malformed record stops the run and is reported in the measurement along
// with everything executed up to that point.
func (w *Worker) Run(ctx context.Context) Measurement {
	m := Measurement{Index: w.index}
	f, err := os.Open(w.path)
	if err != nil {
		m.Err = errors.WithStack(err)
		w.log.ErrorContext(ctx, "open script", slog.String("path", w.path), slog.Any("error", err))
		return m
	}
	defer f.Close()

	w.log.DebugContext(ctx, "started processing", slog.String("path", w.path))
	m = w.replay(ctx, NewScript(f))
	if m.Err != nil {
		w.log.ErrorContext(ctx, "script aborted", slog.Any("error", m.Err), slog.Int("executed", m.Executed))
	}
	w.log.DebugContext(ctx, "completed", slog.Int("executed", m.Executed))
	return m
}

func (w *Worker) replay(ctx context.Context, s *Script) Measurement {
	m := Measurement{Index: w.index}
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			m.Err = errors.WithStack(err)
			return m
		}
		rec, err := s.Next()
		if errors.Is(err, io.EOF) {
			return m
		}
		if err != nil {
			m.Err = err
			return m
		}
		elapsed, ok := w.dispatcher.Dispatch(ctx, rec)
		if ok {
			m.Executed++
			m.Latencies = append(m.Latencies, elapsed.Milliseconds())
		}
		processed++
		if processed%progressEvery == 0 {
			w.log.DebugContext(ctx, "progress", slog.Int("processed", processed))
		}
	}
}
