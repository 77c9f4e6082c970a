package txn

import (
	"context"
	"log/slog"

	"github.com/bootjp/wholesale/model"
)

type DeliveryInput struct {
	Warehouse int
	Carrier   int
}

type Delivery struct {
	*env
	carrierScan model.Consistency
	statsRead   model.Consistency
	write       model.Consistency
}

func newDelivery(e *env) *Delivery {
	return &Delivery{
		env:         e,
		carrierScan: model.Default,
		statsRead:   model.Default,
		write:       model.Default,
	}
}

// Execute delivers the oldest undelivered order of every district of the
// warehouse in one write group. With nothing to deliver it succeeds
// without writing.
func (h *Delivery) Execute(ctx context.Context, in DeliveryInput) (bool, error) {
	pending, err := h.st.UndeliveredOrders(ctx, in.Warehouse, h.carrierScan)
	if err != nil {
		return false, err
	}
	if len(pending) == 0 {
		h.log.DebugContext(ctx, "delivery: nothing to deliver", slog.Int("warehouse", in.Warehouse))
		return true, nil
	}

	now := h.now()
	batch := &model.Batch{}
	for _, oc := range pending {
		stats, err := h.st.CustomerStats(ctx, oc.Key.CustomerKey(), h.statsRead)
		if err != nil {
			return false, err
		}
		batch.Add(
			&model.MarkDelivered{Key: oc.Key, CarrierID: in.Carrier, DeliveredAt: now, Level: h.write},
			&model.UpdateCustomerDelivery{
				Key:           oc.Key.CustomerKey(),
				Balance:       stats.Balance.Add(oc.TotalAmount),
				DeliveryCount: stats.DeliveryCount + 1,
				Level:         h.write,
			},
		)
	}
	return h.st.Apply(ctx, batch)
}
