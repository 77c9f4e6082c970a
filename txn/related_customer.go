package txn

import (
	"context"
	"fmt"
	"strings"

	"github.com/bootjp/wholesale/model"
)

type RelatedCustomerInput struct {
	Customer model.CustomerKey
}

type RelatedCustomer struct {
	*env
	orderScan model.Consistency
}

func newRelatedCustomer(e *env) *RelatedCustomer {
	return &RelatedCustomer{env: e, orderScan: model.One}
}

// minSharedItems is how many items two orders must share for their
// customers to be related.
const minSharedItems = 2

// Related returns the customers of other warehouses who placed an order
// sharing at least two items with one of the target customer's orders.
// Each customer appears once, in scan order.
func (h *RelatedCustomer) Related(ctx context.Context, in RelatedCustomerInput) ([]model.CustomerKey, error) {
	orders, err := h.st.AllRecentOrders(ctx, h.orderScan)
	if err != nil {
		return nil, err
	}

	var targets []map[int]struct{}
	for _, o := range orders {
		if o.Key.CustomerKey() == in.Customer {
			targets = append(targets, itemSet(o.ItemIDs))
		}
	}

	var related []model.CustomerKey
	seen := make(map[model.CustomerKey]struct{})
	for _, target := range targets {
		for _, o := range orders {
			if o.Key.Warehouse == in.Customer.Warehouse {
				continue
			}
			ck := o.Key.CustomerKey()
			if _, ok := seen[ck]; ok {
				continue
			}
			if sharedItems(target, o.ItemIDs) >= minSharedItems {
				seen[ck] = struct{}{}
				related = append(related, ck)
			}
		}
	}
	return related, nil
}

func itemSet(ids []int) map[int]struct{} {
	s := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// sharedItems counts the distinct ids of other that are in set.
func sharedItems(set map[int]struct{}, other []int) int {
	counted := make(map[int]struct{}, len(other))
	for _, id := range other {
		if _, ok := set[id]; !ok {
			continue
		}
		counted[id] = struct{}{}
	}
	return len(counted)
}

func (h *RelatedCustomer) Execute(ctx context.Context, in RelatedCustomerInput) (bool, error) {
	related, err := h.Related(ctx, in)
	if err != nil {
		return false, err
	}
	var b strings.Builder
	k := in.Customer
	fmt.Fprintf(&b, "Customers related to (%d, %d, %d):\n", k.Warehouse, k.District, k.Customer)
	for _, r := range related {
		fmt.Fprintf(&b, "  (%d, %d, %d)\n", r.Warehouse, r.District, r.Customer)
	}
	return true, h.print(b.String())
}
