package kv

import (
	"bytes"
	"encoding/gob"
	"time"

	"github.com/bootjp/wholesale/model"
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// customerRow holds the clustered columns of the customer profile table.
type customerRow struct {
	Name        model.Name
	Address     model.Address
	Phone       string
	Since       time.Time
	Credit      string
	CreditLimit decimal.Decimal
	Discount    decimal.Decimal
	Data        string
}

// customerStatic holds the warehouse and district attributes shared by
// every customer of a (warehouse, district) partition.
type customerStatic struct {
	Warehouse model.Warehouse
	District  model.District
}

type statsRow struct {
	Name          model.Name
	Balance       decimal.Decimal
	YTDPayment    float32
	PaymentCount  int
	DeliveryCount int
}

// statsStatic holds the D_<district>_YTD counters of a warehouse partition.
type statsStatic struct {
	DistrictYTD map[int]decimal.Decimal
}

type orderStatic struct {
	NextOrderID int
}

func encodeRow(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Bytes(), nil
}

func decodeRow(b []byte, v any) error {
	return errors.WithStack(gob.NewDecoder(bytes.NewReader(b)).Decode(v))
}
