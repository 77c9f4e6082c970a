package kv_test

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bootjp/wholesale/internal/fixture"
	"github.com/bootjp/wholesale/kv"
	"github.com/bootjp/wholesale/model"
	"github.com/bootjp/wholesale/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newSeededCluster(t *testing.T) *kv.Cluster {
	t.Helper()
	c := kv.NewCluster(store.NewMVCCStore())
	require.NoError(t, fixture.Seed(context.Background(), c))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

var cust111 = model.CustomerKey{Warehouse: 1, District: 1, Customer: 1}

func TestClusterPointReads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newSeededCluster(t)

	p, err := c.CustomerProfile(ctx, cust111, model.One)
	require.NoError(t, err)
	require.Equal(t, fixture.CustomerName(cust111), p.Name)
	require.Equal(t, "warehouse-1", p.Warehouse.Name)
	require.True(t, decimal.RequireFromString("0.1").Equal(p.Warehouse.Tax))
	require.True(t, decimal.RequireFromString("0.05").Equal(p.District.Tax))

	s, err := c.CustomerStats(ctx, cust111, model.Default)
	require.NoError(t, err)
	require.True(t, fixture.Balance(cust111).Equal(s.Balance))
	require.True(t, decimal.NewFromInt(1000).Equal(s.DistrictYTD))
	require.Equal(t, 1, s.PaymentCount)

	next, err := c.NextOrderID(ctx, 1, 1, model.One)
	require.NoError(t, err)
	require.Equal(t, 4, next)

	st, err := c.Stock(ctx, 1, 5, model.One)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(12).Equal(st.Quantity))

	it, err := c.Item(ctx, 5, model.One)
	require.NoError(t, err)
	require.Equal(t, "item-5", it.Name)

	_, err = c.CustomerProfile(ctx, model.CustomerKey{Warehouse: 9, District: 9, Customer: 9}, model.One)
	require.ErrorIs(t, err, model.ErrNotFound)
	_, err = c.NextOrderID(ctx, 9, 9, model.One)
	require.ErrorIs(t, err, model.ErrNotFound)
}

func TestClusterOrderScans(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newSeededCluster(t)

	latest, err := c.LatestOrder(ctx, cust111, model.One)
	require.NoError(t, err)
	require.Equal(t, 3, latest.Key.Order)

	_, err = c.LatestOrder(ctx, model.CustomerKey{Warehouse: 1, District: 1, Customer: 3}, model.One)
	require.ErrorIs(t, err, model.ErrNotFound)

	recent, err := c.RecentOrders(ctx, 1, 1, 2, model.One)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, 3, recent[0].Key.Order)
	require.Equal(t, 2, recent[1].Key.Order)

	all, err := c.AllRecentOrders(ctx, model.One)
	require.NoError(t, err)
	require.Len(t, all, 5)

	oc, err := c.OrderCarrier(ctx, model.OrderKey{Warehouse: 1, District: 1, Order: 1, Customer: 1}, model.One)
	require.NoError(t, err)
	require.Equal(t, fixture.DeliveredCarrier, oc.CarrierID)
}

func TestClusterUndeliveredOnePerDistrict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newSeededCluster(t)

	rows, err := c.UndeliveredOrders(ctx, 1, model.Default)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, rows[0].Key.District)
	require.Equal(t, 2, rows[0].Key.Order)
	require.Equal(t, 2, rows[1].Key.District)
	require.Equal(t, 1, rows[1].Key.Order)
}

func TestClusterTopBalancesPerPartition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newSeededCluster(t)

	rows, err := c.TopBalances(ctx, 2, model.One)
	require.NoError(t, err)
	// two warehouse partitions, capped at two rows each
	require.Len(t, rows, 4)
	perWarehouse := map[int][]model.BalanceEntry{}
	for _, r := range rows {
		perWarehouse[r.Key.Warehouse] = append(perWarehouse[r.Key.Warehouse], r)
	}
	require.Len(t, perWarehouse[1], 2)
	require.True(t, perWarehouse[1][0].Balance.GreaterThanOrEqual(perWarehouse[1][1].Balance))
	require.Equal(t, model.CustomerKey{Warehouse: 1, District: 2, Customer: 3}, perWarehouse[1][0].Key)
}

func TestClusterApplyGuardedPayment(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newSeededCluster(t)

	stale := &model.Batch{}
	stale.Add(
		&model.UpdateCustomerPayment{Key: cust111, Balance: decimal.NewFromInt(1), PaymentCount: 9, Guarded: true, ExpectedPaymentCount: 0},
		&model.SetDistrictYTD{Warehouse: 1, District: 1, YTD: decimal.NewFromInt(5)},
	)
	ok, err := c.Apply(ctx, stale)
	require.NoError(t, err)
	require.False(t, ok)

	s, err := c.CustomerStats(ctx, cust111, model.Default)
	require.NoError(t, err)
	require.Equal(t, 1, s.PaymentCount)
	require.True(t, decimal.NewFromInt(1000).Equal(s.DistrictYTD), "rejected guard must not apply the batch")

	fresh := &model.Batch{}
	fresh.Add(
		&model.UpdateCustomerPayment{Key: cust111, Balance: decimal.NewFromInt(1), YTDPayment: 11, PaymentCount: 2, Guarded: true, ExpectedPaymentCount: 1},
		&model.SetDistrictYTD{Warehouse: 1, District: 1, YTD: decimal.NewFromInt(5)},
	)
	ok, err = c.Apply(ctx, fresh)
	require.NoError(t, err)
	require.True(t, ok)

	s, err = c.CustomerStats(ctx, cust111, model.Default)
	require.NoError(t, err)
	require.Equal(t, 2, s.PaymentCount)
	require.True(t, decimal.NewFromInt(1).Equal(s.Balance))
	require.True(t, decimal.NewFromInt(5).Equal(s.DistrictYTD))
	require.Equal(t, fixture.CustomerName(cust111), s.Name)
}

func TestClusterConcurrentGuardedPayments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newSeededCluster(t)

	const writers = 8
	var wg sync.WaitGroup
	errCh := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				s, err := c.CustomerStats(ctx, cust111, model.Default)
				if err != nil {
					errCh <- err
					return
				}
				b := &model.Batch{}
				b.Add(&model.UpdateCustomerPayment{
					Key:                  cust111,
					Balance:              s.Balance.Sub(decimal.NewFromInt(1)),
					PaymentCount:         s.PaymentCount + 1,
					Guarded:              true,
					ExpectedPaymentCount: s.PaymentCount,
				})
				ok, err := c.Apply(ctx, b)
				if err != nil {
					errCh <- err
					return
				}
				if ok {
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	s, err := c.CustomerStats(ctx, cust111, model.Default)
	require.NoError(t, err)
	require.Equal(t, 1+writers, s.PaymentCount)
	require.True(t, fixture.Balance(cust111).Sub(decimal.NewFromInt(writers)).Equal(s.Balance))
}

// racingStore commits a competing payment the first time a row is read
// once armed, between the writer's snapshot and its read.
type racingStore struct {
	store.MVCCStore
	armed atomic.Bool
	race  func(ctx context.Context)
}

func (s *racingStore) GetAt(ctx context.Context, key []byte, ts uint64) ([]byte, error) {
	if s.armed.CompareAndSwap(true, false) {
		s.race(ctx)
	}
	return s.MVCCStore.GetAt(ctx, key, ts)
}

func TestClusterRowCommittedAfterSnapshotRestages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rs := &racingStore{MVCCStore: store.NewMVCCStore()}
	c := kv.NewCluster(rs)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, fixture.Seed(ctx, c))

	payment := func(expected int) *model.Batch {
		b := &model.Batch{}
		b.Add(&model.UpdateCustomerPayment{
			Key: cust111, Balance: decimal.NewFromInt(int64(expected)), PaymentCount: expected + 1,
			Guarded: true, ExpectedPaymentCount: expected,
		})
		return b
	}
	rs.race = func(ctx context.Context) {
		ok, err := c.Apply(ctx, payment(1))
		require.NoError(t, err)
		require.True(t, ok)
	}
	rs.armed.Store(true)

	// The competing payment lands after the snapshot, so the restaged
	// attempt sees count 2 and the guard rejects the stale writer.
	ok, err := c.Apply(ctx, payment(1))
	require.NoError(t, err)
	require.False(t, ok)

	s, err := c.CustomerStats(ctx, cust111, model.Default)
	require.NoError(t, err)
	require.Equal(t, 2, s.PaymentCount)
}

func TestClusterInsertOrderMaintainsView(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newSeededCluster(t)

	key := model.OrderKey{Warehouse: 1, District: 1, Order: 4, Customer: 2}
	b := &model.Batch{}
	b.Add(
		&model.InsertOrder{Order: model.Order{Key: key, ItemIDs: []int{7}}, NextOrderID: 5, Level: model.All},
		&model.InsertOrderCarrier{Carrier: model.OrderCarrier{Key: key, CarrierID: model.UndeliveredCarrier}},
	)
	ok, err := c.Apply(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)

	next, err := c.NextOrderID(ctx, 1, 1, model.One)
	require.NoError(t, err)
	require.Equal(t, 5, next)

	recent, err := c.RecentOrders(ctx, 1, 1, 1, model.One)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, key, recent[0].Key)

	latest, err := c.LatestOrder(ctx, key.CustomerKey(), model.One)
	require.NoError(t, err)
	require.Equal(t, []int{7}, latest.ItemIDs)
}

func TestClusterDeliveryBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newSeededCluster(t)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	key := model.OrderKey{Warehouse: 1, District: 1, Order: 2, Customer: 2}
	b := &model.Batch{}
	b.Add(
		&model.MarkDelivered{Key: key, CarrierID: 7, DeliveredAt: now},
		&model.UpdateCustomerDelivery{Key: key.CustomerKey(), Balance: decimal.NewFromInt(42), DeliveryCount: 1},
	)
	ok, err := c.Apply(ctx, b)
	require.NoError(t, err)
	require.True(t, ok)

	oc, err := c.OrderCarrier(ctx, key, model.One)
	require.NoError(t, err)
	require.Equal(t, 7, oc.CarrierID)
	require.True(t, now.Equal(oc.DeliveredAt))
	require.True(t, fixture.OrderTotal(1, 1, 2).Equal(oc.TotalAmount))

	s, err := c.CustomerStats(ctx, key.CustomerKey(), model.One)
	require.NoError(t, err)
	require.Equal(t, 1, s.DeliveryCount)
	require.Equal(t, 1, s.PaymentCount)

	rows, err := c.UndeliveredOrders(ctx, 1, model.Default)
	require.NoError(t, err)
	require.Equal(t, 3, rows[0].Key.Order)
}

func TestClusterExportImport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	src := newSeededCluster(t)
	path := filepath.Join(t.TempDir(), "wholesale.db")
	require.NoError(t, src.Export(ctx, path))

	dst := kv.NewCluster(store.NewMVCCStore())
	require.NoError(t, dst.Import(ctx, path))

	p, err := dst.CustomerProfile(ctx, cust111, model.One)
	require.NoError(t, err)
	require.Equal(t, fixture.CustomerName(cust111), p.Name)

	all, err := dst.AllRecentOrders(ctx, model.One)
	require.NoError(t, err)
	require.Len(t, all, 5)
}
