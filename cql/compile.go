package cql

import (
	"github.com/bootjp/wholesale/model"
	"github.com/cockroachdb/errors"
)

var ErrUnsupportedMutation = errors.New("unsupported mutation")

// statement is one bound entry of a LOGGED batch.
type statement struct {
	stmt string
	args []any
}

func compileBatch(b *model.Batch) ([]statement, error) {
	out := make([]statement, 0, len(b.Mutations))
	for _, m := range b.Mutations {
		st, err := compile(m)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func compile(m model.Mutation) (statement, error) {
	switch m := m.(type) {
	case *model.InsertOrder:
		o := m.Order
		k := o.Key
		return statement{insertOrder, []any{
			k.Warehouse, k.District, k.Order, k.Customer, m.NextOrderID, o.EntryDate,
			decToInf(o.LineCount), boolToInf(o.AllLocal), o.TotalQuantity, o.ItemIDs, toLineUDTs(o.Lines),
		}}, nil
	case *model.UpdateStock:
		s := m.Stock
		return statement{updateStock, []any{
			int(s.Quantity.IntPart()), decToInf(s.YTD), s.OrderCount, s.RemoteCount, s.Warehouse, s.Item,
		}}, nil
	case *model.InsertOrderCarrier:
		k := m.Carrier.Key
		return statement{insertCarrier, []any{
			k.Warehouse, k.District, k.Order, k.Customer, m.Carrier.CarrierID, decToInf(m.Carrier.TotalAmount),
		}}, nil
	case *model.UpdateCustomerPayment:
		k := m.Key
		st := statement{updatePayment, []any{
			decToInf(m.Balance), m.YTDPayment, m.PaymentCount, k.Warehouse, k.District, k.Customer,
		}}
		if m.Guarded {
			st.stmt += paymentGuard
			st.args = append(st.args, m.ExpectedPaymentCount)
		}
		return st, nil
	case *model.SetDistrictYTD:
		if m.District < 1 || m.District > maxDistricts {
			return statement{}, errors.Wrapf(ErrUnsupportedMutation, "district %d has no YTD column", m.District)
		}
		return statement{updateDistrictYTD(m.District), []any{decToInf(m.YTD), m.Warehouse}}, nil
	case *model.MarkDelivered:
		k := m.Key
		return statement{markDelivered, []any{
			m.CarrierID, m.DeliveredAt, k.Warehouse, k.District, k.Order, k.Customer,
		}}, nil
	case *model.UpdateCustomerDelivery:
		k := m.Key
		return statement{updateDelivery, []any{
			decToInf(m.Balance), m.DeliveryCount, k.Warehouse, k.District, k.Customer,
		}}, nil
	default:
		return statement{}, errors.Wrapf(ErrUnsupportedMutation, "%T", m)
	}
}
