package model

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by point reads when the row does not exist.
var ErrNotFound = errors.New("row not found")

// UndeliveredCarrier marks an order that no carrier has picked up yet.
const UndeliveredCarrier = -1

type CustomerKey struct {
	Warehouse int
	District  int
	Customer  int
}

type Name struct {
	First  string
	Middle string
	Last   string
}

func (n Name) String() string {
	return n.First + " " + n.Middle + " " + n.Last
}

type Address struct {
	Street1 string
	Street2 string
	City    string
	State   string
	Zip     string
}

func (a Address) String() string {
	return a.Street1 + ", " + a.Street2 + ", " + a.City + ", " + a.State + ", " + a.Zip
}

// Warehouse and District are stored as static attributes of the customer
// partition rather than as separate rows.
type Warehouse struct {
	ID      int
	Name    string
	Address Address
	Tax     decimal.Decimal
}

type District struct {
	Warehouse int
	ID        int
	Name      string
	Address   Address
	Tax       decimal.Decimal
}

// CustomerProfile is the load-time projection of a customer, joined with the
// warehouse and district attributes of its partition.
type CustomerProfile struct {
	Key         CustomerKey
	Name        Name
	Address     Address
	Phone       string
	Since       time.Time
	Credit      string
	CreditLimit decimal.Decimal
	Discount    decimal.Decimal
	Data        string

	Warehouse Warehouse
	District  District
}

// CustomerStats is the mutable projection of a customer. DistrictYTD is the
// year-to-date counter of the customer's district, shared by every customer
// of the warehouse partition.
type CustomerStats struct {
	Key           CustomerKey
	Name          Name
	Balance       decimal.Decimal
	YTDPayment    float32
	PaymentCount  int
	DeliveryCount int
	DistrictYTD   decimal.Decimal
}

// BalanceEntry is one row of the balance-ranked view.
type BalanceEntry struct {
	Key     CustomerKey
	Balance decimal.Decimal
}

type Item struct {
	ID    int
	Name  string
	Price decimal.Decimal
}

type Stock struct {
	Warehouse   int
	Item        int
	Quantity    decimal.Decimal
	YTD         decimal.Decimal
	OrderCount  int
	RemoteCount int
}

type OrderKey struct {
	Warehouse int
	District  int
	Order     int
	Customer  int
}

func (k OrderKey) CustomerKey() CustomerKey {
	return CustomerKey{Warehouse: k.Warehouse, District: k.District, Customer: k.Customer}
}

type OrderLine struct {
	Number          int
	ItemID          int
	Amount          decimal.Decimal
	SupplyWarehouse int
	Quantity        decimal.Decimal
}

type Order struct {
	Key           OrderKey
	EntryDate     time.Time
	LineCount     decimal.Decimal
	AllLocal      bool
	TotalQuantity int
	ItemIDs       []int
	Lines         []OrderLine
}

// OrderCarrier tracks delivery separately from the immutable order row.
type OrderCarrier struct {
	Key         OrderKey
	CarrierID   int
	TotalAmount decimal.Decimal
	DeliveredAt time.Time
}

func (c OrderCarrier) Delivered() bool {
	return c.CarrierID != UndeliveredCarrier
}
