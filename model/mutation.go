package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mutation is one row write inside a Batch. Each mutation names the
// consistency it needs; the batch is issued at the strongest of them.
type Mutation interface {
	Consistency() Consistency
	mutation()
}

// Batch is an atomic multi-row write group: the store applies every
// mutation or none of them.
type Batch struct {
	Mutations []Mutation
}

// Add appends mutations to the batch.
func (b *Batch) Add(muts ...Mutation) {
	b.Mutations = append(b.Mutations, muts...)
}

// Consistency is the strongest level required by any mutation.
func (b *Batch) Consistency() Consistency {
	c := Default
	for _, m := range b.Mutations {
		c = c.Stronger(m.Consistency())
	}
	return c
}

// Conditional reports whether any mutation carries a guard.
func (b *Batch) Conditional() bool {
	for _, m := range b.Mutations {
		if p, ok := m.(*UpdateCustomerPayment); ok && p.Guarded {
			return true
		}
	}
	return false
}

// InsertOrder writes the order row, its recent-orders view entry and the
// district's next order id.
type InsertOrder struct {
	Order       Order
	NextOrderID int
	Level       Consistency
}

type UpdateStock struct {
	Stock Stock
	Level Consistency
}

type InsertOrderCarrier struct {
	Carrier OrderCarrier
	Level   Consistency
}

// UpdateCustomerPayment rewrites the payment columns of a stats row. When
// Guarded is set the whole batch applies only if the stored payment count
// still equals ExpectedPaymentCount.
type UpdateCustomerPayment struct {
	Key                  CustomerKey
	Balance              decimal.Decimal
	YTDPayment           float32
	PaymentCount         int
	Guarded              bool
	ExpectedPaymentCount int
	Level                Consistency
}

// SetDistrictYTD overwrites the per-district year-to-date counter of the
// warehouse stats partition.
type SetDistrictYTD struct {
	Warehouse int
	District  int
	YTD       decimal.Decimal
	Level     Consistency
}

type MarkDelivered struct {
	Key         OrderKey
	CarrierID   int
	DeliveredAt time.Time
	Level       Consistency
}

type UpdateCustomerDelivery struct {
	Key           CustomerKey
	Balance       decimal.Decimal
	DeliveryCount int
	Level         Consistency
}

func (m *InsertOrder) Consistency() Consistency            { return m.Level }
func (m *UpdateStock) Consistency() Consistency            { return m.Level }
func (m *InsertOrderCarrier) Consistency() Consistency     { return m.Level }
func (m *UpdateCustomerPayment) Consistency() Consistency  { return m.Level }
func (m *SetDistrictYTD) Consistency() Consistency         { return m.Level }
func (m *MarkDelivered) Consistency() Consistency          { return m.Level }
func (m *UpdateCustomerDelivery) Consistency() Consistency { return m.Level }

func (*InsertOrder) mutation()            {}
func (*UpdateStock) mutation()            {}
func (*InsertOrderCarrier) mutation()     {}
func (*UpdateCustomerPayment) mutation()  {}
func (*SetDistrictYTD) mutation()         {}
func (*MarkDelivered) mutation()          {}
func (*UpdateCustomerDelivery) mutation() {}
