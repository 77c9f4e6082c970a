package driver

import (
	"context"

	"github.com/bootjp/wholesale/txn"
	"github.com/cockroachdb/errors"
)

var ErrUnknownRecord = errors.New("unknown record arguments")

// Executor runs one attempt of a record.
type Executor interface {
	Execute(ctx context.Context, rec Record) (bool, error)
}

type handlerExecutor struct {
	h *txn.Handlers
}

// NewExecutor routes records to the matching transaction handler.
func NewExecutor(h *txn.Handlers) Executor {
	return &handlerExecutor{h: h}
}

func (e *handlerExecutor) Execute(ctx context.Context, rec Record) (bool, error) {
	switch in := rec.Args.(type) {
	case txn.NewOrderInput:
		return e.h.NewOrder.Execute(ctx, in)
	case txn.PaymentInput:
		return e.h.Payment.Execute(ctx, in)
	case txn.DeliveryInput:
		return e.h.Delivery.Execute(ctx, in)
	case txn.OrderStatusInput:
		return e.h.OrderStatus.Execute(ctx, in)
	case txn.StockLevelInput:
		return e.h.StockLevel.Execute(ctx, in)
	case txn.PopularItemsInput:
		return e.h.PopularItems.Execute(ctx, in)
	case txn.RelatedCustomerInput:
		return e.h.RelatedCustomer.Execute(ctx, in)
	case nil:
		if rec.Tag == TagTopBalance {
			return e.h.TopBalance.Execute(ctx)
		}
	}
	return false, errors.Wrapf(ErrUnknownRecord, "tag %s: %T", rec.Tag, rec.Args)
}
