package driver

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/bootjp/wholesale/model"
	"github.com/bootjp/wholesale/txn"
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

var ErrMalformedRecord = errors.New("malformed script record")

// Transaction tags of the script format.
const (
	TagNewOrder        = "N"
	TagPayment         = "P"
	TagDelivery        = "D"
	TagOrderStatus     = "O"
	TagStockLevel      = "S"
	TagPopularItems    = "I"
	TagTopBalance      = "T"
	TagRelatedCustomer = "R"
)

// Record is one parsed transaction. Args holds the handler input; it is
// nil for TopBalance.
type Record struct {
	Tag  string
	Line int
	Args any
}

// Script reads records from a transaction script. Lines with an unknown
// tag and blank lines are skipped.
type Script struct {
	sc   *bufio.Scanner
	line int
}

func NewScript(r io.Reader) *Script {
	return &Script{sc: bufio.NewScanner(r)}
}

func (s *Script) readLine() (string, bool) {
	if !s.sc.Scan() {
		return "", false
	}
	s.line++
	return strings.TrimSpace(s.sc.Text()), true
}

// Next returns the next record, or io.EOF after the last one.
func (s *Script) Next() (Record, error) {
	for {
		text, ok := s.readLine()
		if !ok {
			if err := s.sc.Err(); err != nil {
				return Record{}, errors.WithStack(err)
			}
			return Record{}, io.EOF
		}
		if text == "" {
			continue
		}
		fields := strings.Split(text, ",")
		rec := Record{Tag: fields[0], Line: s.line}
		args, known, err := s.parse(fields)
		if err != nil {
			return Record{}, errors.Wrapf(err, "line %d %q", rec.Line, text)
		}
		if !known {
			continue
		}
		rec.Args = args
		return rec, nil
	}
}

func (s *Script) parse(fields []string) (any, bool, error) {
	switch fields[0] {
	case TagNewOrder:
		return s.parseNewOrder(fields)
	case TagPayment:
		if len(fields) < 5 {
			return nil, true, errors.Wrapf(ErrMalformedRecord, "want 4 fields, got %d", len(fields)-1)
		}
		v, err := ints(fields, 3)
		if err != nil {
			return nil, true, err
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(fields[4]))
		if err != nil {
			return nil, true, errors.Wrapf(ErrMalformedRecord, "amount: %v", err)
		}
		return txn.PaymentInput{Customer: customer(v[0], v[1], v[2]), Amount: amount}, true, nil
	case TagDelivery:
		v, err := ints(fields, 2)
		if err != nil {
			return nil, true, err
		}
		return txn.DeliveryInput{Warehouse: v[0], Carrier: v[1]}, true, nil
	case TagOrderStatus:
		v, err := ints(fields, 3)
		if err != nil {
			return nil, true, err
		}
		return txn.OrderStatusInput{Customer: customer(v[0], v[1], v[2])}, true, nil
	case TagStockLevel:
		v, err := ints(fields, 4)
		if err != nil {
			return nil, true, err
		}
		return txn.StockLevelInput{Warehouse: v[0], District: v[1], Threshold: v[2], Lookback: v[3]}, true, nil
	case TagPopularItems:
		v, err := ints(fields, 3)
		if err != nil {
			return nil, true, err
		}
		return txn.PopularItemsInput{Warehouse: v[0], District: v[1], Lookback: v[2]}, true, nil
	case TagTopBalance:
		return nil, true, nil
	case TagRelatedCustomer:
		v, err := ints(fields, 3)
		if err != nil {
			return nil, true, err
		}
		return txn.RelatedCustomerInput{Customer: customer(v[0], v[1], v[2])}, true, nil
	default:
		return nil, false, nil
	}
}

// parseNewOrder reads "N,c,w,d,...,M" and the M item lines that follow it.
// The item count is always the last field.
func (s *Script) parseNewOrder(fields []string) (any, bool, error) {
	if len(fields) < 5 {
		return nil, true, errors.Wrapf(ErrMalformedRecord, "want at least 4 fields, got %d", len(fields)-1)
	}
	v, err := ints(fields, 3)
	if err != nil {
		return nil, true, err
	}
	in := txn.NewOrderInput{Customer: customer(v[1], v[2], v[0])}
	count, err := strconv.Atoi(strings.TrimSpace(fields[len(fields)-1]))
	if err != nil || count < 0 {
		return nil, true, errors.Wrapf(ErrMalformedRecord, "item count %q", fields[len(fields)-1])
	}
	in.Items = make([]txn.OrderItem, 0, count)
	for i := 0; i < count; i++ {
		text, ok := s.readLine()
		if !ok {
			return nil, true, errors.Wrapf(ErrMalformedRecord, "expected %d item lines, got %d", count, i)
		}
		item, err := ints(append([]string{TagNewOrder}, strings.Split(text, ",")...), 3)
		if err != nil {
			return nil, true, errors.Wrapf(err, "item line %d", s.line)
		}
		in.Items = append(in.Items, txn.OrderItem{ItemID: item[0], SupplyWarehouse: item[1], Quantity: item[2]})
	}
	return in, true, nil
}

// ints parses the first n fields after the tag.
func ints(fields []string, n int) ([]int, error) {
	args := fields[1:]
	if len(args) < n {
		return nil, errors.Wrapf(ErrMalformedRecord, "want %d fields, got %d", n, len(args))
	}
	out := make([]int, n)
	for i, f := range args[:n] {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedRecord, "field %q", f)
		}
		out[i] = v
	}
	return out, nil
}

func customer(w, d, c int) model.CustomerKey {
	return model.CustomerKey{Warehouse: w, District: d, Customer: c}
}
