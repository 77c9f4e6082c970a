package kv

import (
	"context"

	"github.com/bootjp/wholesale/model"
	"github.com/bootjp/wholesale/store"
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// The Load methods are the interface used by reference-data loaders. They
// write whole rows the way the transactions never do.

// LoadDistrict writes the static attributes of a (warehouse, district)
// partition: warehouse and district columns, next order id and the
// district's year-to-date counter.
func (c *Cluster) LoadDistrict(ctx context.Context, wh model.Warehouse, d model.District, ytd decimal.Decimal, nextOrderID int) error {
	_, err := c.commit(ctx, func(ws *writeSet) (bool, error) {
		if err := ws.put(customerStaticKey(wh.ID, d.ID), &customerStatic{Warehouse: wh, District: d}); err != nil {
			return false, err
		}
		if err := ws.put(orderStaticKey(wh.ID, d.ID), &orderStatic{NextOrderID: nextOrderID}); err != nil {
			return false, err
		}
		return ws.stage(ctx, &model.SetDistrictYTD{Warehouse: wh.ID, District: d.ID, YTD: ytd})
	})
	return err
}

// LoadCustomer writes both customer projections. Warehouse and district
// attributes of p are ignored; they belong to LoadDistrict.
func (c *Cluster) LoadCustomer(ctx context.Context, p *model.CustomerProfile, s *model.CustomerStats) error {
	k := p.Key
	_, err := c.commit(ctx, func(ws *writeSet) (bool, error) {
		err := ws.put(customerKey(k.Warehouse, k.District, k.Customer), &customerRow{
			Name:        p.Name,
			Address:     p.Address,
			Phone:       p.Phone,
			Since:       p.Since,
			Credit:      p.Credit,
			CreditLimit: p.CreditLimit,
			Discount:    p.Discount,
			Data:        p.Data,
		})
		if err != nil {
			return false, err
		}
		return true, ws.put(statsKey(k.Warehouse, k.District, k.Customer), &statsRow{
			Name:          s.Name,
			Balance:       s.Balance,
			YTDPayment:    s.YTDPayment,
			PaymentCount:  s.PaymentCount,
			DeliveryCount: s.DeliveryCount,
		})
	})
	return err
}

// LoadItem writes an item row directly. Items are never rewritten by a
// transaction, so no conflict check is needed.
func (c *Cluster) LoadItem(ctx context.Context, it *model.Item) error {
	b, err := encodeRow(it)
	if err != nil {
		return err
	}
	return errors.WithStack(c.st.PutAt(ctx, itemKey(it.ID), b, c.clock.Next()))
}

func (c *Cluster) LoadStock(ctx context.Context, s *model.Stock) error {
	_, err := c.commit(ctx, func(ws *writeSet) (bool, error) {
		return ws.stage(ctx, &model.UpdateStock{Stock: *s})
	})
	return err
}

// LoadOrder writes a historical order with its carrier row. The district's
// next order id is left untouched.
func (c *Cluster) LoadOrder(ctx context.Context, o *model.Order, oc *model.OrderCarrier) error {
	k := o.Key
	_, err := c.commit(ctx, func(ws *writeSet) (bool, error) {
		if err := ws.put(orderKey(k.Warehouse, k.District, k.Customer, k.Order), o); err != nil {
			return false, err
		}
		if err := ws.put(orderViewKey(k.Warehouse, k.District, k.Order, k.Customer), o); err != nil {
			return false, err
		}
		return ws.stage(ctx, &model.InsertOrderCarrier{Carrier: *oc})
	})
	return err
}

// Export writes every row to a bolt file that Import can preload.
func (c *Cluster) Export(ctx context.Context, path string) error {
	return errors.WithStack(store.ExportBolt(ctx, c.st, path))
}

// Import preloads rows from a bolt file written by Export.
func (c *Cluster) Import(ctx context.Context, path string) error {
	if err := store.ImportBolt(ctx, c.st, path); err != nil {
		return errors.WithStack(err)
	}
	c.clock.Observe(c.st.LastCommitTS())
	return nil
}
