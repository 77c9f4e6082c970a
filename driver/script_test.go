package driver_test

import (
	"io"
	"strings"
	"testing"

	"github.com/bootjp/wholesale/driver"
	"github.com/bootjp/wholesale/model"
	"github.com/bootjp/wholesale/txn"
	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, src string) ([]driver.Record, error) {
	t.Helper()
	s := driver.NewScript(strings.NewReader(src))
	var recs []driver.Record
	for {
		rec, err := s.Next()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

func TestScriptParsesEveryTag(t *testing.T) {
	t.Parallel()

	src := strings.Join([]string{
		"N,3,1,2,2",
		"5,1,3",
		"7,2,1",
		"P,1,2,3,12.50",
		"D,1,4",
		"O,1,1,2",
		"S,1,2,15,20",
		"I,2,1,5",
		"T",
		"R,1,1,1",
	}, "\n")
	recs, err := readAll(t, src)
	require.NoError(t, err)
	require.Len(t, recs, 8)

	no := recs[0].Args.(txn.NewOrderInput)
	require.Equal(t, model.CustomerKey{Warehouse: 1, District: 2, Customer: 3}, no.Customer)
	require.Equal(t, []txn.OrderItem{
		{ItemID: 5, SupplyWarehouse: 1, Quantity: 3},
		{ItemID: 7, SupplyWarehouse: 2, Quantity: 1},
	}, no.Items)

	p := recs[1].Args.(txn.PaymentInput)
	require.Equal(t, model.CustomerKey{Warehouse: 1, District: 2, Customer: 3}, p.Customer)
	require.True(t, decimal.RequireFromString("12.5").Equal(p.Amount))
	require.Equal(t, 4, recs[1].Line)

	require.Equal(t, txn.DeliveryInput{Warehouse: 1, Carrier: 4}, recs[2].Args)
	require.Equal(t, txn.OrderStatusInput{Customer: model.CustomerKey{Warehouse: 1, District: 1, Customer: 2}}, recs[3].Args)
	require.Equal(t, txn.StockLevelInput{Warehouse: 1, District: 2, Threshold: 15, Lookback: 20}, recs[4].Args)
	require.Equal(t, txn.PopularItemsInput{Warehouse: 2, District: 1, Lookback: 5}, recs[5].Args)
	require.Equal(t, driver.TagTopBalance, recs[6].Tag)
	require.Nil(t, recs[6].Args)
	require.Equal(t, txn.RelatedCustomerInput{Customer: model.CustomerKey{Warehouse: 1, District: 1, Customer: 1}}, recs[7].Args)
}

func TestScriptSkipsUnknownTagsAndBlankLines(t *testing.T) {
	t.Parallel()

	recs, err := readAll(t, "X,1,2\n\nD,1,2\nunknown\n")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, driver.TagDelivery, recs[0].Tag)
	require.Equal(t, 3, recs[0].Line)
}

func TestScriptMalformed(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"short payment":    "P,1,2,3",
		"bad amount":       "P,1,2,3,abc",
		"bad int":          "D,x,1",
		"missing item":     "N,1,1,1,2\n5,1,3",
		"bad item line":    "N,1,1,1,1\n5,1",
		"bad count":        "N,1,1,1,z",
		"short stocklevel": "S,1,2,3",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := readAll(t, src)
			require.ErrorIs(t, err, driver.ErrMalformedRecord)
		})
	}
}

func TestScriptStopsAtMalformedRecord(t *testing.T) {
	t.Parallel()

	recs, err := readAll(t, "D,1,1\nO,1,1\nD,1,2")
	require.ErrorIs(t, err, driver.ErrMalformedRecord)
	require.Len(t, recs, 1)
}
