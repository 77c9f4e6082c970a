package txn

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bootjp/wholesale/model"
	"github.com/shopspring/decimal"
)

// topBalanceLimit caps both the per-partition view read and the result.
const topBalanceLimit = 10

type TopBalance struct {
	*env
	viewRead    model.Consistency
	profileRead model.Consistency
}

func newTopBalance(e *env) *TopBalance {
	return &TopBalance{env: e, viewRead: model.One, profileRead: model.One}
}

type TopBalanceRow struct {
	Customer  model.Name
	Warehouse string
	District  string
	Balance   decimal.Decimal
}

// Top returns the ten customers with the highest balance across all
// warehouses.
func (h *TopBalance) Top(ctx context.Context) ([]TopBalanceRow, error) {
	entries, err := h.st.TopBalances(ctx, topBalanceLimit, h.viewRead)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Balance.GreaterThan(entries[j].Balance)
	})
	if len(entries) > topBalanceLimit {
		entries = entries[:topBalanceLimit]
	}

	rows := make([]TopBalanceRow, 0, len(entries))
	for _, e := range entries {
		p, err := h.st.CustomerProfile(ctx, e.Key, h.profileRead)
		if err != nil {
			return nil, err
		}
		rows = append(rows, TopBalanceRow{
			Customer:  p.Name,
			Warehouse: p.Warehouse.Name,
			District:  p.District.Name,
			Balance:   e.Balance,
		})
	}
	return rows, nil
}

func (h *TopBalance) Execute(ctx context.Context) (bool, error) {
	rows, err := h.Top(ctx)
	if err != nil {
		return false, err
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "%s | %s | %s | %s\n", r.Customer, r.Warehouse, r.District, r.Balance.StringFixed(2))
	}
	return true, h.print(b.String())
}
