package txn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bootjp/wholesale/model"
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

var (
	minStock       = decimal.NewFromInt(10)
	replenishBatch = decimal.NewFromInt(100)
)

// ReplenishedQuantity is onHand - qty, topped up in steps of 100 until it
// is at least 10.
func ReplenishedQuantity(onHand decimal.Decimal, qty int) decimal.Decimal {
	adj := onHand.Sub(decimal.NewFromInt(int64(qty)))
	if adj.LessThan(minStock) {
		steps := minStock.Sub(adj).Div(replenishBatch).Ceil()
		adj = adj.Add(steps.Mul(replenishBatch))
	}
	return adj
}

type OrderItem struct {
	ItemID          int
	SupplyWarehouse int
	Quantity        int
}

type NewOrderInput struct {
	Customer model.CustomerKey
	Items    []OrderItem
}

type NewOrder struct {
	*env
	customerRead  model.Consistency
	nextOrderRead model.Consistency
	stockRead     model.Consistency
	itemRead      model.Consistency
	orderWrite    model.Consistency
	stockWrite    model.Consistency
	carrierWrite  model.Consistency
}

// Only the order and stock writes need ALL. The carrier row shares their
// batch, which is sent at the strongest level it carries.
func newNewOrder(e *env) *NewOrder {
	return &NewOrder{
		env:           e,
		customerRead:  model.One,
		nextOrderRead: model.One,
		stockRead:     model.One,
		itemRead:      model.One,
		orderWrite:    model.All,
		stockWrite:    model.All,
		carrierWrite:  model.Default,
	}
}

type newOrderLine struct {
	line  model.OrderLine
	name  string
	stock model.Stock
}

// Execute places the order. A missing customer or district counter fails
// the attempt before anything is written.
func (h *NewOrder) Execute(ctx context.Context, in NewOrderInput) (bool, error) {
	k := in.Customer
	profile, err := h.st.CustomerProfile(ctx, k, h.customerRead)
	if errors.Is(err, model.ErrNotFound) {
		h.log.DebugContext(ctx, "new order: customer not found", slog.Any("customer", k))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	nextID, err := h.st.NextOrderID(ctx, k.Warehouse, k.District, h.nextOrderRead)
	if errors.Is(err, model.ErrNotFound) {
		h.log.DebugContext(ctx, "new order: district counter not found", slog.Any("customer", k))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := h.now()
	key := model.OrderKey{Warehouse: k.Warehouse, District: k.District, Order: nextID, Customer: k.Customer}
	order := model.Order{
		Key:       key,
		EntryDate: now,
		LineCount: decimal.NewFromInt(int64(len(in.Items))),
		AllLocal:  true,
	}
	batch := &model.Batch{}
	lines := make([]newOrderLine, 0, len(in.Items))
	total := decimal.Zero

	for i, it := range in.Items {
		stock, err := h.st.Stock(ctx, it.SupplyWarehouse, it.ItemID, h.stockRead)
		if err != nil {
			return false, err
		}
		updated := *stock
		updated.Quantity = ReplenishedQuantity(stock.Quantity, it.Quantity)
		updated.YTD = stock.YTD.Add(decimal.NewFromInt(int64(it.Quantity)))
		updated.OrderCount++
		if it.SupplyWarehouse != k.Warehouse {
			updated.RemoteCount++
			order.AllLocal = false
		}
		batch.Add(&model.UpdateStock{Stock: updated, Level: h.stockWrite})

		item, err := h.st.Item(ctx, it.ItemID, h.itemRead)
		if err != nil {
			return false, err
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		amount := item.Price.Mul(qty)
		total = total.Add(amount)

		line := model.OrderLine{
			Number:          i + 1,
			ItemID:          it.ItemID,
			Amount:          amount,
			SupplyWarehouse: it.SupplyWarehouse,
			Quantity:        qty,
		}
		order.Lines = append(order.Lines, line)
		order.ItemIDs = append(order.ItemIDs, it.ItemID)
		order.TotalQuantity += it.Quantity
		lines = append(lines, newOrderLine{line: line, name: item.Name, stock: updated})
	}

	batch.Add(
		&model.InsertOrder{Order: order, NextOrderID: nextID + 1, Level: h.orderWrite},
		&model.InsertOrderCarrier{
			Carrier: model.OrderCarrier{Key: key, CarrierID: model.UndeliveredCarrier, TotalAmount: total},
			Level:   h.carrierWrite,
		},
	)

	ok, err := h.st.Apply(ctx, batch)
	if err != nil || !ok {
		return false, err
	}
	return true, h.print(newOrderReceipt(profile, &order, lines, total))
}

// ChargedTotal applies taxes and the customer discount to an order total.
func ChargedTotal(total decimal.Decimal, p *model.CustomerProfile) decimal.Decimal {
	tax := decimal.NewFromInt(1).Add(p.Warehouse.Tax).Add(p.District.Tax)
	return total.Mul(tax).Mul(decimal.NewFromInt(1).Sub(p.Discount))
}

func newOrderReceipt(p *model.CustomerProfile, o *model.Order, lines []newOrderLine, total decimal.Decimal) string {
	var b strings.Builder
	k := p.Key
	fmt.Fprintf(&b, "Customer: (%d, %d, %d) %s, credit %s, discount %s\n",
		k.Warehouse, k.District, k.Customer, p.Name.Last, p.Credit, p.Discount)
	fmt.Fprintf(&b, "Warehouse tax %s, district tax %s\n", p.Warehouse.Tax, p.District.Tax)
	fmt.Fprintf(&b, "Order %d entered %s\n", o.Key.Order, o.EntryDate.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Number of items %d, total amount %s\n", len(lines), ChargedTotal(total, p).StringFixed(2))
	for _, l := range lines {
		fmt.Fprintf(&b, "  item %d %s supply %d qty %s amount %s stock %s\n",
			l.line.ItemID, l.name, l.line.SupplyWarehouse, l.line.Quantity, l.line.Amount.StringFixed(2), l.stock.Quantity)
	}
	return b.String()
}
