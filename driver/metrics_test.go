package driver

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type failFirst struct{ calls int }

func (f *failFirst) Execute(context.Context, Record) (bool, error) {
	f.calls++
	return f.calls > 2, nil
}

func TestMetricsCountOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	d := NewDispatcher(&failFirst{}, WithMetrics(m),
		WithSleep(func(context.Context, time.Duration) error { return nil }))

	rec := Record{Tag: TagDelivery}
	ctx := context.Background()
	_, ok := d.Dispatch(ctx, rec)
	require.False(t, ok)
	_, ok = d.Dispatch(ctx, rec)
	require.True(t, ok)

	require.InDelta(t, 3, testutil.ToFloat64(m.attempts.WithLabelValues(TagDelivery)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.transactions.WithLabelValues(TagDelivery, outcomeExecuted)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.transactions.WithLabelValues(TagDelivery, outcomeExhausted)), 0)
	require.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestMetricsWithoutRegistererAreInert(t *testing.T) {
	t.Parallel()

	var nilMetrics *Metrics
	require.NotPanics(t, func() {
		nilMetrics.attempt(TagPayment)
		nilMetrics.executed(TagPayment, time.Second)
		NewMetrics(nil).exhausted(TagPayment)
	})
}
