package cql

import (
	"strings"
	"time"

	"github.com/bootjp/wholesale/model"
	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"
	"gopkg.in/inf.v0"
)

// decToInf converts to the driver's DECIMAL representation without loss.
func decToInf(d decimal.Decimal) *inf.Dec {
	return inf.NewDecBig(d.Coefficient(), inf.Scale(-d.Exponent()))
}

// infToDec treats a null DECIMAL as zero.
func infToDec(d *inf.Dec) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(d.UnscaledBig(), -int32(d.Scale()))
}

func boolToInf(b bool) *inf.Dec {
	if b {
		return inf.NewDec(1, 0)
	}
	return inf.NewDec(0, 0)
}

type nameUDT struct {
	First  string `cql:"first_name"`
	Middle string `cql:"middle_name"`
	Last   string `cql:"last_name"`
}

func (n nameUDT) model() model.Name {
	return model.Name{First: n.First, Middle: n.Middle, Last: n.Last}
}

type addressUDT struct {
	Street1 string `cql:"street_1"`
	Street2 string `cql:"street_2"`
	City    string `cql:"city"`
	State   string `cql:"state"`
	Zip     string `cql:"zip"`
}

func (a addressUDT) model() model.Address {
	return model.Address{Street1: a.Street1, Street2: a.Street2, City: a.City, State: a.State, Zip: a.Zip}
}

type orderLineUDT struct {
	Number          int      `cql:"ol_number"`
	ItemID          int      `cql:"ol_i_id"`
	Amount          *inf.Dec `cql:"ol_amount"`
	SupplyWarehouse int      `cql:"ol_supply_w_id"`
	Quantity        *inf.Dec `cql:"ol_quantity"`
}

func toLineUDTs(lines []model.OrderLine) []orderLineUDT {
	out := make([]orderLineUDT, 0, len(lines))
	for _, l := range lines {
		out = append(out, orderLineUDT{
			Number:          l.Number,
			ItemID:          l.ItemID,
			Amount:          decToInf(l.Amount),
			SupplyWarehouse: l.SupplyWarehouse,
			Quantity:        decToInf(l.Quantity),
		})
	}
	return out
}

func fromLineUDTs(lines []orderLineUDT) []model.OrderLine {
	out := make([]model.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, model.OrderLine{
			Number:          l.Number,
			ItemID:          l.ItemID,
			Amount:          infToDec(l.Amount),
			SupplyWarehouse: l.SupplyWarehouse,
			Quantity:        infToDec(l.Quantity),
		})
	}
	return out
}

// statsRow holds the scan targets of selectStats. C_YTD_PAYMENT is a CQL
// FLOAT and only scans into float32.
type statsRow struct {
	name                nameUDT
	balance, ytd        *inf.Dec
	ytdPayment          float32
	payments, delivered int
}

func (r *statsRow) dest() []any {
	return []any{&r.name, &r.balance, &r.ytdPayment, &r.payments, &r.delivered, &r.ytd}
}

func (r *statsRow) model(key model.CustomerKey) *model.CustomerStats {
	return &model.CustomerStats{
		Key:           key,
		Name:          r.name.model(),
		Balance:       infToDec(r.balance),
		YTDPayment:    r.ytdPayment,
		PaymentCount:  r.payments,
		DeliveryCount: r.delivered,
		DistrictYTD:   infToDec(r.ytd),
	}
}

// orderRow holds the scan targets of orderColumns.
type orderRow struct {
	warehouse, district, order, customer int
	entry                                time.Time
	lineCount, allLocal                  *inf.Dec
	totalQuantity                        int
	itemIDs                              []int
	lines                                []orderLineUDT
}

func (r *orderRow) dest() []any {
	return []any{
		&r.warehouse, &r.district, &r.order, &r.customer, &r.entry,
		&r.lineCount, &r.allLocal, &r.totalQuantity, &r.itemIDs, &r.lines,
	}
}

func (r *orderRow) model() *model.Order {
	return &model.Order{
		Key:           model.OrderKey{Warehouse: r.warehouse, District: r.district, Order: r.order, Customer: r.customer},
		EntryDate:     r.entry,
		LineCount:     infToDec(r.lineCount),
		AllLocal:      infToDec(r.allLocal).Equal(decimal.NewFromInt(1)),
		TotalQuantity: r.totalQuantity,
		ItemIDs:       r.itemIDs,
		Lines:         fromLineUDTs(r.lines),
	}
}

// viewRow holds the scan targets of viewColumns. The view does not project
// the order summary columns, so they are derived from the lines.
type viewRow struct {
	warehouse, district, order, customer int
	entry                                time.Time
	itemIDs                              []int
	lines                                []orderLineUDT
}

func (r *viewRow) dest() []any {
	return []any{&r.warehouse, &r.district, &r.order, &r.customer, &r.entry, &r.itemIDs, &r.lines}
}

func (r *viewRow) model() *model.Order {
	o := &model.Order{
		Key:       model.OrderKey{Warehouse: r.warehouse, District: r.district, Order: r.order, Customer: r.customer},
		EntryDate: r.entry,
		LineCount: decimal.NewFromInt(int64(len(r.lines))),
		AllLocal:  true,
		ItemIDs:   r.itemIDs,
		Lines:     fromLineUDTs(r.lines),
	}
	total := decimal.Zero
	for _, l := range o.Lines {
		total = total.Add(l.Quantity)
		if l.SupplyWarehouse != r.warehouse {
			o.AllLocal = false
		}
	}
	o.TotalQuantity = int(total.IntPart())
	return o
}

// consistency maps a requested level; Default keeps the session level.
func consistency(c model.Consistency, session gocql.Consistency) gocql.Consistency {
	switch c {
	case model.One:
		return gocql.One
	case model.LocalQuorum:
		return gocql.LocalQuorum
	case model.Quorum:
		return gocql.Quorum
	case model.All:
		return gocql.All
	default:
		return session
	}
}

// ParseConsistency accepts the level names used in configuration files.
func ParseConsistency(s string) (gocql.Consistency, error) {
	c, err := gocql.ParseConsistencyWrapper(strings.ToUpper(strings.TrimSpace(s)))
	return c, errors.WithStack(err)
}

func ParseSerialConsistency(s string) (gocql.SerialConsistency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SERIAL":
		return gocql.Serial, nil
	case "LOCAL_SERIAL", "":
		return gocql.LocalSerial, nil
	default:
		return 0, errors.Newf("unknown serial consistency %q", s)
	}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gocql.ErrNotFound) {
		return errors.Wrapf(model.ErrNotFound, format, args...)
	}
	return errors.Wrapf(err, format, args...)
}
