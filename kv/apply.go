package kv

import (
	"context"
	"log/slog"

	"github.com/bootjp/wholesale/model"
	"github.com/bootjp/wholesale/store"
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

var ErrUnknownMutation = errors.New("unknown mutation")

// writeSet stages row images read at startTS and rewritten by a batch.
type writeSet struct {
	c       *Cluster
	startTS uint64
	staged  map[string][]byte
	keys    [][]byte
}

func (c *Cluster) newWriteSet(startTS uint64) *writeSet {
	return &writeSet{c: c, startTS: startTS, staged: make(map[string][]byte)}
}

// load decodes the staged or stored image of key into v. It reports false
// when the row does not exist.
func (w *writeSet) load(ctx context.Context, key []byte, v any) (bool, error) {
	if b, ok := w.staged[string(key)]; ok {
		return true, decodeRow(b, v)
	}
	err := w.c.get(ctx, key, w.startTS, v)
	found := err == nil
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return false, err
	}
	// A row committed after startTS would be overwritten from a stale image.
	ts, ok, err := w.c.st.LatestCommitTS(ctx, key)
	if err != nil {
		return false, errors.WithStack(err)
	}
	if ok && ts > w.startTS {
		return false, errors.Wrapf(store.ErrWriteConflict, "key %q read at %d, committed at %d", key, w.startTS, ts)
	}
	return found, nil
}

func (w *writeSet) put(key []byte, v any) error {
	b, err := encodeRow(v)
	if err != nil {
		return err
	}
	if _, ok := w.staged[string(key)]; !ok {
		w.keys = append(w.keys, key)
	}
	w.staged[string(key)] = b
	return nil
}

func (w *writeSet) mutations() []*store.KVPairMutation {
	muts := make([]*store.KVPairMutation, 0, len(w.keys))
	for _, k := range w.keys {
		muts = append(muts, &store.KVPairMutation{Key: k, Value: w.staged[string(k)]})
	}
	return muts
}

// commit stages a write group with fn and applies it. fn returning false
// abandons the group without writing. Lost write-write races re-run fn
// against a fresh snapshot.
func (c *Cluster) commit(ctx context.Context, fn func(*writeSet) (bool, error)) (bool, error) {
	for attempt := 0; ; attempt++ {
		startTS := c.st.LastCommitTS()
		ws := c.newWriteSet(startTS)
		ok, err := fn(ws)
		switch {
		case errors.Is(err, store.ErrWriteConflict):
		case err != nil || !ok:
			return false, err
		case len(ws.keys) == 0:
			return true, nil
		default:
			err = c.st.ApplyMutations(ctx, ws.mutations(), startTS, c.clock.Next())
			if err == nil {
				return true, nil
			}
		}
		if !errors.Is(err, store.ErrWriteConflict) || attempt >= c.conflictRetries {
			return false, errors.WithStack(err)
		}
		c.log.DebugContext(ctx, "write conflict, restaging",
			slog.Int("attempt", attempt+1),
			slog.Any("error", err),
		)
	}
}

// Apply writes a batch atomically. It returns false without error when a
// guarded mutation finds a value other than the one it expects.
func (c *Cluster) Apply(ctx context.Context, b *model.Batch) (bool, error) {
	return c.commit(ctx, func(ws *writeSet) (bool, error) {
		for _, m := range b.Mutations {
			ok, err := ws.stage(ctx, m)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	})
}

func (w *writeSet) stage(ctx context.Context, m model.Mutation) (bool, error) {
	switch m := m.(type) {
	case *model.InsertOrder:
		k := m.Order.Key
		if err := w.put(orderKey(k.Warehouse, k.District, k.Customer, k.Order), &m.Order); err != nil {
			return false, err
		}
		if err := w.put(orderViewKey(k.Warehouse, k.District, k.Order, k.Customer), &m.Order); err != nil {
			return false, err
		}
		return true, w.put(orderStaticKey(k.Warehouse, k.District), &orderStatic{NextOrderID: m.NextOrderID})
	case *model.UpdateStock:
		return true, w.put(stockKey(m.Stock.Warehouse, m.Stock.Item), &m.Stock)
	case *model.InsertOrderCarrier:
		k := m.Carrier.Key
		return true, w.put(carrierKey(k.Warehouse, k.District, k.Order, k.Customer), &m.Carrier)
	case *model.UpdateCustomerPayment:
		return w.stagePayment(ctx, m)
	case *model.SetDistrictYTD:
		key := statsStaticKey(m.Warehouse)
		var static statsStatic
		if _, err := w.load(ctx, key, &static); err != nil {
			return false, err
		}
		if static.DistrictYTD == nil {
			static.DistrictYTD = make(map[int]decimal.Decimal)
		}
		static.DistrictYTD[m.District] = m.YTD
		return true, w.put(key, &static)
	case *model.MarkDelivered:
		k := m.Key
		key := carrierKey(k.Warehouse, k.District, k.Order, k.Customer)
		oc := model.OrderCarrier{Key: k}
		if _, err := w.load(ctx, key, &oc); err != nil {
			return false, err
		}
		oc.CarrierID = m.CarrierID
		oc.DeliveredAt = m.DeliveredAt
		return true, w.put(key, &oc)
	case *model.UpdateCustomerDelivery:
		k := m.Key
		key := statsKey(k.Warehouse, k.District, k.Customer)
		var row statsRow
		if _, err := w.load(ctx, key, &row); err != nil {
			return false, err
		}
		row.Balance = m.Balance
		row.DeliveryCount = m.DeliveryCount
		return true, w.put(key, &row)
	default:
		return false, errors.Wrapf(ErrUnknownMutation, "%T", m)
	}
}

// stagePayment evaluates the payment count guard before staging. A guarded
// update of a missing row is rejected like a failed comparison.
func (w *writeSet) stagePayment(ctx context.Context, m *model.UpdateCustomerPayment) (bool, error) {
	k := m.Key
	key := statsKey(k.Warehouse, k.District, k.Customer)
	var row statsRow
	exists, err := w.load(ctx, key, &row)
	if err != nil {
		return false, err
	}
	if m.Guarded && (!exists || row.PaymentCount != m.ExpectedPaymentCount) {
		w.c.log.DebugContext(ctx, "payment guard rejected",
			slog.Int("expected", m.ExpectedPaymentCount),
			slog.Int("actual", row.PaymentCount),
		)
		return false, nil
	}
	row.Balance = m.Balance
	row.YTDPayment = m.YTDPayment
	row.PaymentCount = m.PaymentCount
	return true, w.put(key, &row)
}
