// Package cql is the Cassandra/Scylla backend of the transaction handlers.
package cql

import (
	"context"
	"log/slog"
	"time"

	"github.com/bootjp/wholesale/model"
	"github.com/bootjp/wholesale/txn"
	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"
	"gopkg.in/inf.v0"
)

// Config describes how to reach the cluster.
type Config struct {
	Hosts             []string
	Keyspace          string
	Consistency       string
	SerialConsistency string
	Timeout           time.Duration
	NumConns          int
}

// Session implements the handlers' store over one shared gocql session.
type Session struct {
	s      *gocql.Session
	level  gocql.Consistency
	serial gocql.SerialConsistency
	log    *slog.Logger
}

var _ txn.Store = (*Session)(nil)

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Open connects to the cluster. The session level applies to statements
// issued at model.Default.
func Open(cfg Config, opts ...Option) (*Session, error) {
	level, err := ParseConsistency(cfg.Consistency)
	if err != nil {
		return nil, err
	}
	serial, err := ParseSerialConsistency(cfg.SerialConsistency)
	if err != nil {
		return nil, err
	}
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	if cluster.Keyspace == "" {
		cluster.Keyspace = DefaultKeyspace
	}
	cluster.Consistency = level
	cluster.SerialConsistency = serial
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	gs, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrapf(err, "connect %v", cfg.Hosts)
	}
	s := &Session{s: gs, level: level, serial: serial, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log.Info("cql session opened", slog.Any("hosts", cfg.Hosts), slog.String("keyspace", cluster.Keyspace))
	return s, nil
}

func (s *Session) Close() error {
	s.s.Close()
	return nil
}

func (s *Session) query(ctx context.Context, c model.Consistency, stmt string, args ...any) *gocql.Query {
	return s.s.Query(stmt, args...).WithContext(ctx).Consistency(consistency(c, s.level))
}

func (s *Session) CustomerProfile(ctx context.Context, key model.CustomerKey, c model.Consistency) (*model.CustomerProfile, error) {
	var (
		wName, dName, phone, credit, data string
		wAddr, dAddr, addr                addressUDT
		name                              nameUDT
		wTax, dTax, limit, discount       *inf.Dec
		since                             time.Time
	)
	err := s.query(ctx, c, selectProfile, key.Warehouse, key.District, key.Customer).Scan(
		&wName, &wAddr, &wTax, &dName, &dAddr, &dTax, &name, &addr, &phone, &since,
		&credit, &limit, &discount, &data)
	if err != nil {
		return nil, notFound(err, "customer %d/%d/%d", key.Warehouse, key.District, key.Customer)
	}
	return &model.CustomerProfile{
		Key:         key,
		Name:        name.model(),
		Address:     addr.model(),
		Phone:       phone,
		Since:       since,
		Credit:      credit,
		CreditLimit: infToDec(limit),
		Discount:    infToDec(discount),
		Data:        data,
		Warehouse:   model.Warehouse{ID: key.Warehouse, Name: wName, Address: wAddr.model(), Tax: infToDec(wTax)},
		District: model.District{
			Warehouse: key.Warehouse, ID: key.District, Name: dName, Address: dAddr.model(), Tax: infToDec(dTax),
		},
	}, nil
}

func (s *Session) CustomerStats(ctx context.Context, key model.CustomerKey, c model.Consistency) (*model.CustomerStats, error) {
	if key.District < 1 || key.District > maxDistricts {
		return nil, errors.Wrapf(model.ErrNotFound, "district %d", key.District)
	}
	var row statsRow
	if err := s.query(ctx, c, selectStats(key.District), key.Warehouse, key.District, key.Customer).Scan(row.dest()...); err != nil {
		return nil, notFound(err, "stats %d/%d/%d", key.Warehouse, key.District, key.Customer)
	}
	return row.model(key), nil
}

func (s *Session) NextOrderID(ctx context.Context, warehouse, district int, c model.Consistency) (int, error) {
	var next int
	if err := s.query(ctx, c, selectNextOrderID, warehouse, district).Scan(&next); err != nil {
		return 0, notFound(err, "next order id %d/%d", warehouse, district)
	}
	return next, nil
}

func (s *Session) Stock(ctx context.Context, warehouse, item int, c model.Consistency) (*model.Stock, error) {
	st := model.Stock{Warehouse: warehouse, Item: item}
	var (
		qty int
		ytd *inf.Dec
	)
	if err := s.query(ctx, c, selectStock, warehouse, item).Scan(&qty, &ytd, &st.OrderCount, &st.RemoteCount); err != nil {
		return nil, notFound(err, "stock %d/%d", warehouse, item)
	}
	st.Quantity = decimal.NewFromInt(int64(qty))
	st.YTD = infToDec(ytd)
	return &st, nil
}

func (s *Session) Item(ctx context.Context, id int, c model.Consistency) (*model.Item, error) {
	it := model.Item{ID: id}
	var price *inf.Dec
	if err := s.query(ctx, c, selectItem, id).Scan(&it.Name, &price); err != nil {
		return nil, notFound(err, "item %d", id)
	}
	it.Price = infToDec(price)
	return &it, nil
}

func (s *Session) LatestOrder(ctx context.Context, key model.CustomerKey, c model.Consistency) (*model.Order, error) {
	var row orderRow
	if err := s.query(ctx, c, selectLatestOrder, key.Warehouse, key.District, key.Customer).Scan(row.dest()...); err != nil {
		return nil, notFound(err, "latest order of %d/%d/%d", key.Warehouse, key.District, key.Customer)
	}
	return row.model(), nil
}

func (s *Session) OrderCarrier(ctx context.Context, key model.OrderKey, c model.Consistency) (*model.OrderCarrier, error) {
	oc := model.OrderCarrier{Key: key}
	var amount *inf.Dec
	err := s.query(ctx, c, selectCarrier, key.Warehouse, key.District, key.Order, key.Customer).
		Scan(&oc.CarrierID, &amount, &oc.DeliveredAt)
	if err != nil {
		return nil, notFound(err, "carrier of order %d/%d/%d", key.Warehouse, key.District, key.Order)
	}
	oc.TotalAmount = infToDec(amount)
	return &oc, nil
}

func (s *Session) RecentOrders(ctx context.Context, warehouse, district, limit int, c model.Consistency) ([]*model.Order, error) {
	return s.scanOrders(s.query(ctx, c, selectRecentOrders, warehouse, district, limit))
}

func (s *Session) AllRecentOrders(ctx context.Context, c model.Consistency) ([]*model.Order, error) {
	return s.scanOrders(s.query(ctx, c, selectAllRecentOrders))
}

func (s *Session) scanOrders(q *gocql.Query) ([]*model.Order, error) {
	iter := q.Iter()
	sc := iter.Scanner()
	var out []*model.Order
	for sc.Next() {
		var row viewRow
		if err := sc.Scan(row.dest()...); err != nil {
			_ = iter.Close()
			return nil, errors.WithStack(err)
		}
		out = append(out, row.model())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}

func (s *Session) UndeliveredOrders(ctx context.Context, warehouse int, c model.Consistency) ([]*model.OrderCarrier, error) {
	iter := s.query(ctx, c, selectUndelivered, warehouse, model.UndeliveredCarrier).Iter()
	sc := iter.Scanner()
	var out []*model.OrderCarrier
	for sc.Next() {
		var (
			oc     model.OrderCarrier
			amount *inf.Dec
		)
		k := &oc.Key
		if err := sc.Scan(&k.Warehouse, &k.District, &k.Order, &k.Customer, &oc.CarrierID, &amount); err != nil {
			_ = iter.Close()
			return nil, errors.WithStack(err)
		}
		oc.TotalAmount = infToDec(amount)
		out = append(out, &oc)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}

func (s *Session) TopBalances(ctx context.Context, perPartition int, c model.Consistency) ([]model.BalanceEntry, error) {
	iter := s.query(ctx, c, selectTopBalances, perPartition).Iter()
	sc := iter.Scanner()
	var out []model.BalanceEntry
	for sc.Next() {
		var (
			e       model.BalanceEntry
			balance *inf.Dec
		)
		if err := sc.Scan(&e.Key.Warehouse, &e.Key.District, &e.Key.Customer, &balance); err != nil {
			_ = iter.Close()
			return nil, errors.WithStack(err)
		}
		e.Balance = infToDec(balance)
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return out, nil
}

// Apply issues the batch as one LOGGED batch at the strongest level its
// mutations ask for. Guarded batches go through Paxos at the serial level
// and report whether the condition held.
func (s *Session) Apply(ctx context.Context, b *model.Batch) (bool, error) {
	stmts, err := compileBatch(b)
	if err != nil {
		return false, err
	}
	batch := s.s.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.SetConsistency(consistency(b.Consistency(), s.level))
	for _, st := range stmts {
		batch.Query(st.stmt, st.args...)
	}
	if !b.Conditional() {
		if err := s.s.ExecuteBatch(batch); err != nil {
			return false, errors.WithStack(err)
		}
		return true, nil
	}

	batch.SerialConsistency(s.serial)
	applied, iter, err := s.s.MapExecuteBatchCAS(batch, make(map[string]any))
	if iter != nil {
		if cerr := iter.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return false, errors.WithStack(err)
	}
	if !applied {
		s.log.DebugContext(ctx, "conditional batch rejected", slog.Int("statements", len(stmts)))
	}
	return applied, nil
}
