package txn

import (
	"context"
	"fmt"
	"strings"

	"github.com/bootjp/wholesale/model"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type PaymentInput struct {
	Customer model.CustomerKey
	Amount   decimal.Decimal
}

type Payment struct {
	*env
	profileRead model.Consistency
	statsRead   model.Consistency
	write       model.Consistency
}

func newPayment(e *env) *Payment {
	return &Payment{
		env:         e,
		profileRead: model.One,
		statsRead:   model.Default,
		write:       model.Default,
	}
}

// PaymentResult is the stats projection after a payment is applied.
type PaymentResult struct {
	Balance      decimal.Decimal
	YTDPayment   float32
	PaymentCount int
	DistrictYTD  decimal.Decimal
}

// Settle computes the stats after paying amount.
func Settle(s *model.CustomerStats, amount decimal.Decimal) PaymentResult {
	return PaymentResult{
		Balance:      s.Balance.Sub(amount),
		YTDPayment:   s.YTDPayment + float32(amount.InexactFloat64()),
		PaymentCount: s.PaymentCount + 1,
		DistrictYTD:  s.DistrictYTD.Add(amount),
	}
}

// Execute records the payment. The stats update is guarded on the payment
// count that was read, so a concurrent payment makes this attempt fail.
func (h *Payment) Execute(ctx context.Context, in PaymentInput) (bool, error) {
	var (
		profile *model.CustomerProfile
		stats   *model.CustomerStats
	)
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		profile, err = h.st.CustomerProfile(ectx, in.Customer, h.profileRead)
		return err
	})
	eg.Go(func() error {
		var err error
		stats, err = h.st.CustomerStats(ectx, in.Customer, h.statsRead)
		return err
	})
	if err := eg.Wait(); err != nil {
		return false, err
	}

	res := Settle(stats, in.Amount)
	batch := &model.Batch{}
	batch.Add(
		&model.UpdateCustomerPayment{
			Key:                  in.Customer,
			Balance:              res.Balance,
			YTDPayment:           res.YTDPayment,
			PaymentCount:         res.PaymentCount,
			Guarded:              true,
			ExpectedPaymentCount: stats.PaymentCount,
			Level:                h.write,
		},
		&model.SetDistrictYTD{
			Warehouse: in.Customer.Warehouse,
			District:  in.Customer.District,
			YTD:       res.DistrictYTD,
			Level:     h.write,
		},
	)
	ok, err := h.st.Apply(ctx, batch)
	if err != nil || !ok {
		return false, err
	}
	return true, h.print(paymentReceipt(profile, res))
}

func paymentReceipt(p *model.CustomerProfile, res PaymentResult) string {
	var b strings.Builder
	k := p.Key
	fmt.Fprintf(&b, "Customer: (%d, %d, %d) %s\n", k.Warehouse, k.District, k.Customer, p.Name)
	fmt.Fprintf(&b, "  address %s, phone %s, since %s\n", p.Address, p.Phone, p.Since.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  credit %s, credit limit %s, discount %s, balance %s\n",
		p.Credit, p.CreditLimit, p.Discount, res.Balance.StringFixed(2))
	fmt.Fprintf(&b, "Warehouse address: %s\n", p.Warehouse.Address)
	fmt.Fprintf(&b, "District address: %s\n", p.District.Address)
	fmt.Fprintf(&b, "Payment count: %d\n", res.PaymentCount)
	return b.String()
}
