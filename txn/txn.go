// Package txn implements the wholesale business transactions on top of a
// wide-column Store. Each handler reads what it needs at the consistency it
// declares at construction, then submits at most one atomic write group.
package txn

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bootjp/wholesale/model"
)

// Store is the data access surface the handlers need. Point reads return an
// error wrapping model.ErrNotFound when the row is missing.
type Store interface {
	CustomerProfile(ctx context.Context, key model.CustomerKey, c model.Consistency) (*model.CustomerProfile, error)
	CustomerStats(ctx context.Context, key model.CustomerKey, c model.Consistency) (*model.CustomerStats, error)
	NextOrderID(ctx context.Context, warehouse, district int, c model.Consistency) (int, error)
	Stock(ctx context.Context, warehouse, item int, c model.Consistency) (*model.Stock, error)
	Item(ctx context.Context, id int, c model.Consistency) (*model.Item, error)
	LatestOrder(ctx context.Context, key model.CustomerKey, c model.Consistency) (*model.Order, error)
	OrderCarrier(ctx context.Context, key model.OrderKey, c model.Consistency) (*model.OrderCarrier, error)
	RecentOrders(ctx context.Context, warehouse, district, limit int, c model.Consistency) ([]*model.Order, error)
	AllRecentOrders(ctx context.Context, c model.Consistency) ([]*model.Order, error)
	UndeliveredOrders(ctx context.Context, warehouse int, c model.Consistency) ([]*model.OrderCarrier, error)
	TopBalances(ctx context.Context, perPartition int, c model.Consistency) ([]model.BalanceEntry, error)
	// Apply submits an atomic write group. It reports false when a guarded
	// mutation was rejected.
	Apply(ctx context.Context, b *model.Batch) (bool, error)
}

type env struct {
	st  Store
	out io.Writer
	now func() time.Time
	log *slog.Logger
}

type Option func(*env)

// WithClock replaces time.Now for entry and delivery timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *env) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *env) {
		if l != nil {
			e.log = l
		}
	}
}

// Handlers bundles one instance of every transaction. Handlers hold no
// per-call state and may be shared by concurrent workers.
type Handlers struct {
	NewOrder        *NewOrder
	Payment         *Payment
	Delivery        *Delivery
	OrderStatus     *OrderStatus
	StockLevel      *StockLevel
	PopularItems    *PopularItems
	RelatedCustomer *RelatedCustomer
	TopBalance      *TopBalance
}

// NewHandlers builds every handler over st. Receipts are written to out,
// one Write per transaction.
func NewHandlers(st Store, out io.Writer, opts ...Option) *Handlers {
	e := &env{
		st:  st,
		out: out,
		now: time.Now,
		log: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	for _, opt := range opts {
		opt(e)
	}
	return &Handlers{
		NewOrder:        newNewOrder(e),
		Payment:         newPayment(e),
		Delivery:        newDelivery(e),
		OrderStatus:     newOrderStatus(e),
		StockLevel:      newStockLevel(e),
		PopularItems:    newPopularItems(e),
		RelatedCustomer: newRelatedCustomer(e),
		TopBalance:      newTopBalance(e),
	}
}

func (e *env) print(s string) error {
	if e.out == nil {
		return nil
	}
	_, err := io.WriteString(e.out, s)
	return err
}
