package txn

import (
	"context"
	"fmt"
	"strings"

	"github.com/bootjp/wholesale/model"
	"github.com/cockroachdb/errors"
)

type OrderStatusInput struct {
	Customer model.CustomerKey
}

type OrderStatus struct {
	*env
	read model.Consistency
}

func newOrderStatus(e *env) *OrderStatus {
	return &OrderStatus{env: e, read: model.One}
}

// Execute prints the customer's balance and latest order. Missing rows end
// the report early and still count as success.
func (h *OrderStatus) Execute(ctx context.Context, in OrderStatusInput) (bool, error) {
	var b strings.Builder
	if err := h.report(ctx, in, &b); err != nil {
		return false, err
	}
	return true, h.print(b.String())
}

func (h *OrderStatus) report(ctx context.Context, in OrderStatusInput, b *strings.Builder) error {
	stats, err := h.st.CustomerStats(ctx, in.Customer, h.read)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(b, "Customer: %s, balance %s\n", stats.Name, stats.Balance.StringFixed(2))

	order, err := h.st.LatestOrder(ctx, in.Customer, h.read)
	if errors.Is(err, model.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	carrier, err := h.st.OrderCarrier(ctx, order.Key, h.read)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		return err
	}
	carrierID := model.UndeliveredCarrier
	delivered := ""
	if carrier != nil {
		carrierID = carrier.CarrierID
		if carrier.Delivered() {
			delivered = carrier.DeliveredAt.Format("2006-01-02 15:04:05")
		}
	}

	fmt.Fprintf(b, "Order %d entered %s, carrier %d\n",
		order.Key.Order, order.EntryDate.Format("2006-01-02 15:04:05"), carrierID)
	for _, l := range order.Lines {
		fmt.Fprintf(b, "  item %d supply %d qty %s amount %s delivered %s\n",
			l.ItemID, l.SupplyWarehouse, l.Quantity, l.Amount.StringFixed(2), delivered)
	}
	return nil
}
