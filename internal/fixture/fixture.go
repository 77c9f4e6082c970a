// Package fixture seeds a small wholesale data set into an embedded cluster.
package fixture

import (
	"context"
	"fmt"
	"time"

	"github.com/bootjp/wholesale/kv"
	"github.com/bootjp/wholesale/model"
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// Loaded is the entry date of every seeded order.
var Loaded = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

const (
	Items                = 10
	CustomersPerDistrict = 3
	DeliveredCarrier     = 3
)

// Districts lists the seeded (warehouse, district) pairs.
var Districts = [][2]int{{1, 1}, {1, 2}, {2, 1}}

// StockQuantity is the on-hand quantity seeded for item i in every warehouse.
func StockQuantity(i int) int { return 7 + i }

// ItemPrice is the catalog price of item i.
func ItemPrice(i int) decimal.Decimal {
	if i == 5 {
		return decimal.RequireFromString("9.99")
	}
	return decimal.NewFromInt(int64(i))
}

// Balance is the seeded balance of a customer.
func Balance(k model.CustomerKey) decimal.Decimal {
	return decimal.NewFromInt(int64(100*k.Customer + 10*k.District + k.Warehouse))
}

func Tax(w, d int) (decimal.Decimal, decimal.Decimal) {
	return decimal.NewFromFloat(0.1 * float64(w)), decimal.NewFromFloat(0.05 * float64(d))
}

type line struct{ item, qty int }

type seedOrder struct {
	w, d, o, c int
	carrier    int
	lines      []line
}

// Orders: district (1,1) holds orders 1..3, (1,2) holds order 1 and (2,1)
// holds one order sharing two items with customer 1/1/1's first order.
var orders = []seedOrder{
	{1, 1, 1, 1, DeliveredCarrier, []line{{1, 1}, {2, 5}, {3, 5}}},
	{1, 1, 2, 2, model.UndeliveredCarrier, []line{{2, 2}, {3, 1}, {4, 1}}},
	{1, 1, 3, 1, model.UndeliveredCarrier, []line{{4, 3}, {5, 1}}},
	{1, 2, 1, 2, model.UndeliveredCarrier, []line{{6, 4}}},
	{2, 1, 1, 3, model.UndeliveredCarrier, []line{{1, 2}, {2, 2}, {9, 1}}},
}

// NextOrderID is the next order id of each seeded district.
func NextOrderID(w, d int) int {
	next := 1
	for _, o := range orders {
		if o.w == w && o.d == d && o.o >= next {
			next = o.o + 1
		}
	}
	return next
}

// Seed loads the data set into c.
func Seed(ctx context.Context, c *kv.Cluster) error {
	for i := 1; i <= Items; i++ {
		if err := c.LoadItem(ctx, &model.Item{ID: i, Name: fmt.Sprintf("item-%d", i), Price: ItemPrice(i)}); err != nil {
			return errors.WithStack(err)
		}
		for _, w := range []int{1, 2} {
			err := c.LoadStock(ctx, &model.Stock{
				Warehouse: w,
				Item:      i,
				Quantity:  decimal.NewFromInt(int64(StockQuantity(i))),
				YTD:       decimal.Zero,
			})
			if err != nil {
				return errors.WithStack(err)
			}
		}
	}

	for _, wd := range Districts {
		w, d := wd[0], wd[1]
		wTax, dTax := Tax(w, d)
		wh := model.Warehouse{ID: w, Name: fmt.Sprintf("warehouse-%d", w), Address: addr(w), Tax: wTax}
		dist := model.District{Warehouse: w, ID: d, Name: fmt.Sprintf("district-%d-%d", w, d), Address: addr(10*w + d), Tax: dTax}
		if err := c.LoadDistrict(ctx, wh, dist, decimal.NewFromInt(1000), NextOrderID(w, d)); err != nil {
			return errors.WithStack(err)
		}
		for cid := 1; cid <= CustomersPerDistrict; cid++ {
			if err := loadCustomer(ctx, c, model.CustomerKey{Warehouse: w, District: d, Customer: cid}); err != nil {
				return err
			}
		}
	}

	for _, so := range orders {
		o, oc := so.build()
		if err := c.LoadOrder(ctx, o, oc); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func loadCustomer(ctx context.Context, c *kv.Cluster, k model.CustomerKey) error {
	name := CustomerName(k)
	p := &model.CustomerProfile{
		Key:         k,
		Name:        name,
		Address:     addr(k.Customer),
		Phone:       "555-0100",
		Since:       Loaded,
		Credit:      "GC",
		CreditLimit: decimal.NewFromInt(50000),
		Discount:    decimal.RequireFromString("0.1"),
		Data:        "seed",
	}
	s := &model.CustomerStats{
		Key:          k,
		Name:         name,
		Balance:      Balance(k),
		YTDPayment:   10,
		PaymentCount: 1,
	}
	return errors.WithStack(c.LoadCustomer(ctx, p, s))
}

// CustomerName is the seeded name of a customer.
func CustomerName(k model.CustomerKey) model.Name {
	return model.Name{
		First:  fmt.Sprintf("first-%d-%d-%d", k.Warehouse, k.District, k.Customer),
		Middle: "OE",
		Last:   fmt.Sprintf("last-%d", k.Customer),
	}
}

func addr(n int) model.Address {
	return model.Address{
		Street1: fmt.Sprintf("%d main st", n),
		Street2: "suite 1",
		City:    "springfield",
		State:   "IL",
		Zip:     "123456789",
	}
}

func (so seedOrder) build() (*model.Order, *model.OrderCarrier) {
	key := model.OrderKey{Warehouse: so.w, District: so.d, Order: so.o, Customer: so.c}
	o := &model.Order{
		Key:       key,
		EntryDate: Loaded,
		LineCount: decimal.NewFromInt(int64(len(so.lines))),
		AllLocal:  true,
	}
	total := decimal.Zero
	for i, l := range so.lines {
		amount := ItemPrice(l.item).Mul(decimal.NewFromInt(int64(l.qty)))
		total = total.Add(amount)
		o.TotalQuantity += l.qty
		o.ItemIDs = append(o.ItemIDs, l.item)
		o.Lines = append(o.Lines, model.OrderLine{
			Number:          i + 1,
			ItemID:          l.item,
			Amount:          amount,
			SupplyWarehouse: so.w,
			Quantity:        decimal.NewFromInt(int64(l.qty)),
		})
	}
	oc := &model.OrderCarrier{Key: key, CarrierID: so.carrier, TotalAmount: total}
	if so.carrier != model.UndeliveredCarrier {
		oc.DeliveredAt = Loaded.Add(time.Hour)
	}
	return o, oc
}

// OrderTotal is the pre-tax total of a seeded order.
func OrderTotal(w, d, o int) decimal.Decimal {
	for _, so := range orders {
		if so.w == w && so.d == d && so.o == o {
			_, oc := so.build()
			return oc.TotalAmount
		}
	}
	return decimal.Zero
}
