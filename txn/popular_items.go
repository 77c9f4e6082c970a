package txn

import (
	"context"
	"fmt"
	"strings"

	"github.com/bootjp/wholesale/model"
	"github.com/shopspring/decimal"
)

type PopularItemsInput struct {
	Warehouse int
	District  int
	Lookback  int
}

type PopularItems struct {
	*env
	orderScan    model.Consistency
	customerRead model.Consistency
	itemRead     model.Consistency
}

func newPopularItems(e *env) *PopularItems {
	return &PopularItems{env: e, orderScan: model.One, customerRead: model.One, itemRead: model.One}
}

type PopularLine struct {
	ItemID   int
	Name     string
	Quantity decimal.Decimal
}

type PopularOrder struct {
	Order    *model.Order
	Customer model.Name
	Popular  []PopularLine
}

type ItemPopularity struct {
	ItemID     int
	Name       string
	Percentage decimal.Decimal
}

type PopularReport struct {
	Orders []PopularOrder
	Items  []ItemPopularity
}

var hundred = decimal.NewFromInt(100)

// PopularityPercentage is the share of the lookback window in which an item
// was the most popular of its order.
func PopularityPercentage(timesPopular, lookback int) decimal.Decimal {
	if lookback <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(timesPopular)).Div(decimal.NewFromInt(int64(lookback))).Mul(hundred)
}

// Report finds the maximal-quantity items of each of the last Lookback
// orders. Item names are cached for the duration of one call.
func (h *PopularItems) Report(ctx context.Context, in PopularItemsInput) (*PopularReport, error) {
	orders, err := h.st.RecentOrders(ctx, in.Warehouse, in.District, in.Lookback, h.orderScan)
	if err != nil {
		return nil, err
	}

	names := make(map[int]string)
	itemName := func(id int) (string, error) {
		if n, ok := names[id]; ok {
			return n, nil
		}
		it, err := h.st.Item(ctx, id, h.itemRead)
		if err != nil {
			return "", err
		}
		names[id] = it.Name
		return it.Name, nil
	}

	rep := &PopularReport{}
	counts := make(map[int]int)
	var seen []int
	for _, o := range orders {
		profile, err := h.st.CustomerProfile(ctx, o.Key.CustomerKey(), h.customerRead)
		if err != nil {
			return nil, err
		}
		po := PopularOrder{Order: o, Customer: profile.Name}
		// An item counts once per order however many lines carry it.
		counted := make(map[int]bool)
		for _, l := range maxQuantityLines(o.Lines) {
			if counted[l.ItemID] {
				continue
			}
			counted[l.ItemID] = true
			name, err := itemName(l.ItemID)
			if err != nil {
				return nil, err
			}
			po.Popular = append(po.Popular, PopularLine{ItemID: l.ItemID, Name: name, Quantity: l.Quantity})
			if counts[l.ItemID] == 0 {
				seen = append(seen, l.ItemID)
			}
			counts[l.ItemID]++
		}
		rep.Orders = append(rep.Orders, po)
	}

	for _, id := range seen {
		rep.Items = append(rep.Items, ItemPopularity{
			ItemID:     id,
			Name:       names[id],
			Percentage: PopularityPercentage(counts[id], in.Lookback),
		})
	}
	return rep, nil
}

// maxQuantityLines keeps every line tied for the largest quantity.
func maxQuantityLines(lines []model.OrderLine) []model.OrderLine {
	var out []model.OrderLine
	for _, l := range lines {
		switch {
		case len(out) == 0 || l.Quantity.GreaterThan(out[0].Quantity):
			out = append(out[:0], l)
		case l.Quantity.Equal(out[0].Quantity):
			out = append(out, l)
		}
	}
	return out
}

func (h *PopularItems) Execute(ctx context.Context, in PopularItemsInput) (bool, error) {
	rep, err := h.Report(ctx, in)
	if err != nil {
		return false, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "District (%d, %d), last %d orders\n", in.Warehouse, in.District, in.Lookback)
	for _, po := range rep.Orders {
		fmt.Fprintf(&b, "Order %d entered %s by %s\n",
			po.Order.Key.Order, po.Order.EntryDate.Format("2006-01-02 15:04:05"), po.Customer)
		for _, l := range po.Popular {
			fmt.Fprintf(&b, "  %s qty %s\n", l.Name, l.Quantity)
		}
	}
	for _, it := range rep.Items {
		fmt.Fprintf(&b, "Popular item %s: %s%%\n", it.Name, it.Percentage.StringFixed(2))
	}
	return true, h.print(b.String())
}
