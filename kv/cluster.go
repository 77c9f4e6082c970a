package kv

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"os"
	"sort"

	"github.com/bootjp/wholesale/model"
	"github.com/bootjp/wholesale/store"
	"github.com/cockroachdb/errors"
)

const defaultConflictRetries = 16

// Cluster serves the wholesale tables from a single MVCCStore. Every
// consistency level is satisfied trivially because there is one copy of
// each row; batches are applied atomically with optimistic concurrency.
type Cluster struct {
	st              store.MVCCStore
	clock           *HLC
	log             *slog.Logger
	conflictRetries int
}

type Option func(*Cluster)

func WithLogger(l *slog.Logger) Option {
	return func(c *Cluster) {
		if l != nil {
			c.log = l
		}
	}
}

// WithConflictRetries bounds how often Apply re-stages a batch after losing
// a write-write race.
func WithConflictRetries(n int) Option {
	return func(c *Cluster) {
		if n >= 0 {
			c.conflictRetries = n
		}
	}
}

func NewCluster(st store.MVCCStore, opts ...Option) *Cluster {
	c := &Cluster{
		st:              st,
		clock:           NewHLC(),
		log:             slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})),
		conflictRetries: defaultConflictRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.clock.Observe(st.LastCommitTS())
	return c
}

func (c *Cluster) Close() error {
	return errors.WithStack(c.st.Close())
}

func (c *Cluster) readTS() uint64 {
	return c.st.LastCommitTS()
}

func (c *Cluster) get(ctx context.Context, key []byte, ts uint64, v any) error {
	b, err := c.st.GetAt(ctx, key, ts)
	if errors.Is(err, store.ErrKeyNotFound) {
		return errors.Wrapf(model.ErrNotFound, "key %q", key)
	}
	if err != nil {
		return errors.WithStack(err)
	}
	return decodeRow(b, v)
}

func (c *Cluster) scan(ctx context.Context, prefix []byte, limit int, ts uint64) ([]*store.KVPair, error) {
	kvs, err := c.st.ScanAt(ctx, prefix, prefixEnd(prefix), limit, ts)
	return kvs, errors.WithStack(err)
}

func (c *Cluster) CustomerProfile(ctx context.Context, key model.CustomerKey, _ model.Consistency) (*model.CustomerProfile, error) {
	ts := c.readTS()
	var row customerRow
	if err := c.get(ctx, customerKey(key.Warehouse, key.District, key.Customer), ts, &row); err != nil {
		return nil, err
	}
	var static customerStatic
	if err := c.get(ctx, customerStaticKey(key.Warehouse, key.District), ts, &static); err != nil {
		return nil, err
	}
	return &model.CustomerProfile{
		Key:         key,
		Name:        row.Name,
		Address:     row.Address,
		Phone:       row.Phone,
		Since:       row.Since,
		Credit:      row.Credit,
		CreditLimit: row.CreditLimit,
		Discount:    row.Discount,
		Data:        row.Data,
		Warehouse:   static.Warehouse,
		District:    static.District,
	}, nil
}

func (c *Cluster) CustomerStats(ctx context.Context, key model.CustomerKey, _ model.Consistency) (*model.CustomerStats, error) {
	ts := c.readTS()
	var row statsRow
	if err := c.get(ctx, statsKey(key.Warehouse, key.District, key.Customer), ts, &row); err != nil {
		return nil, err
	}
	var static statsStatic
	if err := c.get(ctx, statsStaticKey(key.Warehouse), ts, &static); err != nil && !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	return &model.CustomerStats{
		Key:           key,
		Name:          row.Name,
		Balance:       row.Balance,
		YTDPayment:    row.YTDPayment,
		PaymentCount:  row.PaymentCount,
		DeliveryCount: row.DeliveryCount,
		DistrictYTD:   static.DistrictYTD[key.District],
	}, nil
}

func (c *Cluster) NextOrderID(ctx context.Context, warehouse, district int, _ model.Consistency) (int, error) {
	var static orderStatic
	if err := c.get(ctx, orderStaticKey(warehouse, district), c.readTS(), &static); err != nil {
		return 0, err
	}
	return static.NextOrderID, nil
}

func (c *Cluster) Stock(ctx context.Context, warehouse, item int, _ model.Consistency) (*model.Stock, error) {
	var s model.Stock
	if err := c.get(ctx, stockKey(warehouse, item), c.readTS(), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Cluster) Item(ctx context.Context, id int, _ model.Consistency) (*model.Item, error) {
	var it model.Item
	if err := c.get(ctx, itemKey(id), c.readTS(), &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// LatestOrder returns the customer's order with the highest id.
func (c *Cluster) LatestOrder(ctx context.Context, key model.CustomerKey, _ model.Consistency) (*model.Order, error) {
	kvs, err := c.scan(ctx, orderCustomerPrefix(key.Warehouse, key.District, key.Customer), 1, c.readTS())
	if err != nil {
		return nil, err
	}
	if len(kvs) == 0 {
		return nil, errors.Wrapf(model.ErrNotFound, "no order for customer %d/%d/%d", key.Warehouse, key.District, key.Customer)
	}
	var o model.Order
	if err := decodeRow(kvs[0].Value, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Cluster) OrderCarrier(ctx context.Context, key model.OrderKey, _ model.Consistency) (*model.OrderCarrier, error) {
	var oc model.OrderCarrier
	if err := c.get(ctx, carrierKey(key.Warehouse, key.District, key.Order, key.Customer), c.readTS(), &oc); err != nil {
		return nil, err
	}
	return &oc, nil
}

// RecentOrders returns up to limit orders of a district, newest first.
func (c *Cluster) RecentOrders(ctx context.Context, warehouse, district, limit int, _ model.Consistency) ([]*model.Order, error) {
	kvs, err := c.scan(ctx, rowPrefix(tableOrderView, warehouse, district), limit, c.readTS())
	if err != nil {
		return nil, err
	}
	return decodeOrders(kvs)
}

// AllRecentOrders scans the whole recent-orders view in token order.
func (c *Cluster) AllRecentOrders(ctx context.Context, _ model.Consistency) ([]*model.Order, error) {
	kvs, err := c.scan(ctx, []byte(tableOrderView), math.MaxInt, c.readTS())
	if err != nil {
		return nil, err
	}
	return decodeOrders(kvs)
}

func decodeOrders(kvs []*store.KVPair) ([]*model.Order, error) {
	orders := make([]*model.Order, 0, len(kvs))
	for _, kv := range kvs {
		var o model.Order
		if err := decodeRow(kv.Value, &o); err != nil {
			return nil, err
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

// UndeliveredOrders returns, per district of the warehouse, the
// undelivered carrier row with the smallest order id.
func (c *Cluster) UndeliveredOrders(ctx context.Context, warehouse int, _ model.Consistency) ([]*model.OrderCarrier, error) {
	kvs, err := c.scan(ctx, rowPrefix(tableCarrier, warehouse), math.MaxInt, c.readTS())
	if err != nil {
		return nil, err
	}
	var out []*model.OrderCarrier
	picked := make(map[int]struct{})
	for _, kv := range kvs {
		var oc model.OrderCarrier
		if err := decodeRow(kv.Value, &oc); err != nil {
			return nil, err
		}
		if oc.Delivered() {
			continue
		}
		if _, ok := picked[oc.Key.District]; ok {
			continue
		}
		picked[oc.Key.District] = struct{}{}
		out = append(out, &oc)
	}
	return out, nil
}

// TopBalances emulates the balance-ranked view: each warehouse partition
// ordered by descending balance and capped at perPartition rows.
func (c *Cluster) TopBalances(ctx context.Context, perPartition int, _ model.Consistency) ([]model.BalanceEntry, error) {
	kvs, err := c.scan(ctx, []byte(tableStats), math.MaxInt, c.readTS())
	if err != nil {
		return nil, err
	}
	partitions := make(map[int][]model.BalanceEntry)
	var order []int
	for _, kv := range kvs {
		key, ok := parseStatsKey(kv.Key)
		if !ok {
			continue
		}
		var row statsRow
		if err := decodeRow(kv.Value, &row); err != nil {
			return nil, err
		}
		if _, seen := partitions[key.Warehouse]; !seen {
			order = append(order, key.Warehouse)
		}
		partitions[key.Warehouse] = append(partitions[key.Warehouse], model.BalanceEntry{Key: key, Balance: row.Balance})
	}

	var out []model.BalanceEntry
	for _, w := range order {
		rows := partitions[w]
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].Balance.GreaterThan(rows[j].Balance)
		})
		if len(rows) > perPartition {
			rows = rows[:perPartition]
		}
		out = append(out, rows...)
	}
	return out, nil
}

// parseStatsKey decodes a clustered stats key; static keys report false.
func parseStatsKey(key []byte) (model.CustomerKey, bool) {
	rest, ok := bytes.CutPrefix(key, []byte(tableStats))
	if !ok {
		return model.CustomerKey{}, false
	}
	const want = 4 + intWidth + 1 + intWidth + intWidth
	if len(rest) != want || rest[4+intWidth] != rowMarker {
		return model.CustomerKey{}, false
	}
	return model.CustomerKey{
		Warehouse: decodeInt(rest[4:]),
		District:  decodeInt(rest[4+intWidth+1:]),
		Customer:  decodeInt(rest[4+intWidth+1+intWidth:]),
	}, true
}
