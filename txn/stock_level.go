package txn

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bootjp/wholesale/model"
	"github.com/shopspring/decimal"
)

type StockLevelInput struct {
	Warehouse int
	District  int
	Threshold int
	Lookback  int
}

type StockLevel struct {
	*env
	orderScan model.Consistency
	stockRead model.Consistency
}

func newStockLevel(e *env) *StockLevel {
	return &StockLevel{env: e, orderScan: model.One, stockRead: model.One}
}

// LowStock returns the stock rows below the threshold among the items of
// the district's last Lookback orders, ordered by item id.
func (h *StockLevel) LowStock(ctx context.Context, in StockLevelInput) ([]*model.Stock, error) {
	orders, err := h.st.RecentOrders(ctx, in.Warehouse, in.District, in.Lookback, h.orderScan)
	if err != nil {
		return nil, err
	}
	items := make(map[int]struct{})
	for _, o := range orders {
		for _, id := range o.ItemIDs {
			items[id] = struct{}{}
		}
	}
	ids := make([]int, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	threshold := decimal.NewFromInt(int64(in.Threshold))
	var low []*model.Stock
	for _, id := range ids {
		s, err := h.st.Stock(ctx, in.Warehouse, id, h.stockRead)
		if err != nil {
			return nil, err
		}
		if s.Quantity.LessThan(threshold) {
			low = append(low, s)
		}
	}
	return low, nil
}

func (h *StockLevel) Execute(ctx context.Context, in StockLevelInput) (bool, error) {
	low, err := h.LowStock(ctx, in)
	if err != nil {
		return false, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Items below %d in the last %d orders of (%d, %d): %d\n",
		in.Threshold, in.Lookback, in.Warehouse, in.District, len(low))
	for _, s := range low {
		fmt.Fprintf(&b, "  item %d has a stock quantity of %s\n", s.Item, s.Quantity)
	}
	return true, h.print(b.String())
}
