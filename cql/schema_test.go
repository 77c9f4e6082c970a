package cql

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bootjp/wholesale/model"
	"github.com/gocql/gocql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gopkg.in/inf.v0"
)

const proto = 4

func native(t gocql.Type) gocql.NativeType { return gocql.NewNativeType(proto, t, "") }

func listOf(elem gocql.TypeInfo) gocql.TypeInfo {
	return gocql.CollectionType{NativeType: native(gocql.TypeList), Elem: elem}
}

func udt(name string, fields ...string) gocql.TypeInfo {
	info := gocql.UDTTypeInfo{NativeType: native(gocql.TypeUDT), KeySpace: DefaultKeyspace, Name: name}
	for i := 0; i < len(fields); i += 2 {
		var typ gocql.TypeInfo = native(gocql.TypeVarchar)
		if fields[i+1] != "" {
			typ = udtFieldTypes[fields[i+1]]
		}
		info.Elements = append(info.Elements, gocql.UDTField{Name: fields[i], Type: typ})
	}
	return info
}

var udtFieldTypes = map[string]gocql.TypeInfo{
	"int":     native(gocql.TypeInt),
	"decimal": native(gocql.TypeDecimal),
}

var (
	cqlInt       = native(gocql.TypeInt)
	cqlDecimal   = native(gocql.TypeDecimal)
	cqlFloat     = native(gocql.TypeFloat)
	cqlText      = native(gocql.TypeVarchar)
	cqlTimestamp = native(gocql.TypeTimestamp)

	nameType      = udt("customer_name", "first_name", "", "middle_name", "", "last_name", "")
	addressType   = udt("address", "street_1", "", "street_2", "", "city", "", "state", "", "zip", "")
	orderLineType = udt("order_line",
		"ol_number", "int", "ol_i_id", "int", "ol_amount", "decimal", "ol_supply_w_id", "int", "ol_quantity", "decimal")
)

// tableSchema mirrors the keyspace DDL: table or view name to column types.
var tableSchema = func() map[string]map[string]gocql.TypeInfo {
	stats := map[string]gocql.TypeInfo{
		"C_W_ID": cqlInt, "C_D_ID": cqlInt, "C_ID": cqlInt, "C_NAME": nameType, "C_BALANCE": cqlDecimal,
		"C_YTD_PAYMENT": cqlFloat, "C_PAYMENT_CNT": cqlInt, "C_DELIVERY_CNT": cqlInt,
	}
	for d := 1; d <= maxDistricts; d++ {
		stats[districtYTDColumn(d)] = cqlDecimal
	}
	order := map[string]gocql.TypeInfo{
		"O_W_ID": cqlInt, "O_D_ID": cqlInt, "O_C_ID": cqlInt, "O_ID": cqlInt, "D_NEXT_O_ID": cqlInt,
		"O_OL_CNT": cqlDecimal, "O_ALL_LOCAL": cqlDecimal, "O_ENTRY_D": cqlTimestamp, "TOTAL_OL_QUANTITY": cqlInt,
		"ITEM_IDS": listOf(cqlInt), "ORDER_LINES": listOf(orderLineType),
	}
	view := map[string]gocql.TypeInfo{}
	for _, c := range strings.Split(viewColumns, ", ") {
		view[c] = order[c]
	}
	return map[string]map[string]gocql.TypeInfo{
		tableCustomerData: {
			"C_W_ID": cqlInt, "C_D_ID": cqlInt, "C_ID": cqlInt,
			"W_NAME": cqlText, "W_ADDRESS": addressType, "W_TAX": cqlDecimal,
			"D_NAME": cqlText, "D_ADDRESS": addressType, "D_TAX": cqlDecimal,
			"C_NAME": nameType, "C_ADDRESS": addressType, "C_PHONE": cqlText, "C_SINCE": cqlTimestamp,
			"C_CREDIT": cqlText, "C_CREDIT_LIM": cqlDecimal, "C_DISCOUNT": cqlDecimal, "C_DATA": cqlText,
		},
		tableCustomerStats: stats,
		viewBalance:        {"C_W_ID": cqlInt, "C_D_ID": cqlInt, "C_ID": cqlInt, "C_BALANCE": cqlDecimal},
		tableOrder:         order,
		viewRecentOrders:   view,
		tableCarrier: {
			"O_W_ID": cqlInt, "O_D_ID": cqlInt, "O_ID": cqlInt, "O_C_ID": cqlInt,
			"O_CARRIER_ID": cqlInt, "TOTAL_AMOUNT": cqlDecimal, "OL_DELIVERY_D": cqlTimestamp,
		},
		tableStock: {
			"S_W_ID": cqlInt, "S_I_ID": cqlInt, "S_QUANTITY": cqlInt, "S_YTD": cqlDecimal,
			"S_ORDER_CNT": cqlInt, "S_REMOTE_CNT": cqlInt,
		},
		tableItem: {"I": cqlInt, "I_ID": cqlInt, "I_NAME": cqlText, "I_PRICE": cqlDecimal},
	}
}()

// limitBind names the position of a LIMIT ? marker.
const limitBind = "LIMIT"

var (
	selectRe = regexp.MustCompile(`^SELECT (.+?) FROM (\w+)(.*)$`)
	insertRe = regexp.MustCompile(`^INSERT INTO (\w+) \(([^)]+)\) VALUES`)
	updateRe = regexp.MustCompile(`^UPDATE (\w+) SET `)
	bindRe   = regexp.MustCompile(`(\w+) = \?|LIMIT \?`)
)

type parsed struct {
	table    string
	selected []string
	binds    []string
}

func markers(s string) []string {
	var out []string
	for _, m := range bindRe.FindAllStringSubmatch(s, -1) {
		if m[1] == "" {
			out = append(out, limitBind)
			continue
		}
		out = append(out, m[1])
	}
	return out
}

func parse(t *testing.T, stmt string) parsed {
	t.Helper()
	if m := selectRe.FindStringSubmatch(stmt); m != nil {
		return parsed{table: m[2], selected: strings.Split(m[1], ", "), binds: markers(m[3])}
	}
	if m := insertRe.FindStringSubmatch(stmt); m != nil {
		return parsed{table: m[1], binds: strings.Split(m[2], ", ")}
	}
	if m := updateRe.FindStringSubmatch(stmt); m != nil {
		return parsed{table: m[1], binds: markers(stmt[len(m[0]):])}
	}
	require.Failf(t, "unrecognized statement", "%s", stmt)
	return parsed{}
}

func bindType(t *testing.T, p parsed, col string) gocql.TypeInfo {
	t.Helper()
	if col == limitBind {
		return cqlInt
	}
	typ, ok := tableSchema[p.table][col]
	require.Truef(t, ok, "column %s not in %s", col, p.table)
	return typ
}

func TestStatementsMatchSchema(t *testing.T) {
	t.Parallel()

	stmts := map[string]string{
		"profile":           selectProfile,
		"next order id":     selectNextOrderID,
		"stock":             selectStock,
		"item":              selectItem,
		"latest order":      selectLatestOrder,
		"carrier":           selectCarrier,
		"recent orders":     selectRecentOrders,
		"all recent orders": selectAllRecentOrders,
		"undelivered":       selectUndelivered,
		"top balances":      selectTopBalances,
		"insert order":      insertOrder,
		"update stock":      updateStock,
		"insert carrier":    insertCarrier,
		"update payment":    updatePayment + paymentGuard,
		"mark delivered":    markDelivered,
		"update delivery":   updateDelivery,
		"stats d1":          selectStats(1),
		"stats d10":         selectStats(maxDistricts),
		"district ytd d1":   updateDistrictYTD(1),
		"district ytd d10":  updateDistrictYTD(maxDistricts),
	}
	for name, stmt := range stmts {
		t.Run(name, func(t *testing.T) {
			p := parse(t, stmt)
			cols, ok := tableSchema[p.table]
			require.Truef(t, ok, "unknown table %s", p.table)
			for _, c := range p.selected {
				_, ok := cols[c]
				require.Truef(t, ok, "column %s not in %s", c, p.table)
			}
			require.Equal(t, strings.Count(stmt, "?"), len(p.binds))
			for _, c := range p.binds {
				bindType(t, p, c)
			}
		})
	}
}

func TestReadsOrderNewestFirst(t *testing.T) {
	t.Parallel()

	// order_table clusters O_C_ID, O_ID ascending.
	require.Contains(t, selectLatestOrder, " ORDER BY O_ID DESC LIMIT 1")
	// The view already clusters O_ID descending.
	require.Equal(t, viewRecentOrders, parse(t, selectRecentOrders).table)
	require.Equal(t, strings.Split(viewColumns, ", "), parse(t, selectAllRecentOrders).selected)
}

func TestCompiledBindsMarshal(t *testing.T) {
	t.Parallel()

	key := model.OrderKey{Warehouse: 1, District: 2, Order: 9, Customer: 3}
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	muts := []model.Mutation{
		&model.InsertOrder{Order: model.Order{
			Key: key, EntryDate: at, LineCount: decimal.NewFromInt(1), AllLocal: true, TotalQuantity: 3,
			ItemIDs: []int{5},
			Lines: []model.OrderLine{{
				Number: 1, ItemID: 5, Amount: decimal.RequireFromString("29.97"), SupplyWarehouse: 1,
				Quantity: decimal.NewFromInt(3),
			}},
		}, NextOrderID: 10},
		&model.UpdateStock{Stock: model.Stock{Warehouse: 1, Item: 5, Quantity: decimal.NewFromInt(97), YTD: decimal.NewFromInt(3)}},
		&model.InsertOrderCarrier{Carrier: model.OrderCarrier{Key: key, CarrierID: model.UndeliveredCarrier, TotalAmount: decimal.NewFromInt(1)}},
		&model.UpdateCustomerPayment{
			Key: cust, Balance: decimal.RequireFromString("-12.50"), YTDPayment: 30.5, PaymentCount: 5,
			Guarded: true, ExpectedPaymentCount: 4,
		},
		&model.SetDistrictYTD{Warehouse: 1, District: 7, YTD: decimal.NewFromInt(1500)},
		&model.MarkDelivered{Key: key, CarrierID: 4, DeliveredAt: at},
		&model.UpdateCustomerDelivery{Key: cust, Balance: decimal.NewFromInt(10), DeliveryCount: 2},
	}
	for _, m := range muts {
		st, err := compile(m)
		require.NoError(t, err)
		p := parse(t, st.stmt)
		require.Len(t, st.args, len(p.binds), st.stmt)
		for i, arg := range st.args {
			_, err := gocql.Marshal(bindType(t, p, p.binds[i]), arg)
			require.NoErrorf(t, err, "%s bind %s", p.table, p.binds[i])
		}
	}
}

func TestYTDPaymentFloatColumn(t *testing.T) {
	t.Parallel()

	b, err := gocql.Marshal(cqlFloat, float32(30.5))
	require.NoError(t, err)
	var got float32
	require.NoError(t, gocql.Unmarshal(cqlFloat, b, &got))
	require.InDelta(t, 30.5, got, 1e-6)

	_, err = gocql.Marshal(cqlFloat, float64(30.5))
	require.Error(t, err)
}

// sample builds a value of the given column type for the read side tests.
func sample(info gocql.TypeInfo) any {
	switch info.Type() {
	case gocql.TypeInt:
		return 1
	case gocql.TypeDecimal:
		return inf.NewDec(150, 2)
	case gocql.TypeFloat:
		return float32(1.5)
	case gocql.TypeTimestamp:
		return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	case gocql.TypeList:
		return []any{sample(info.(gocql.CollectionType).Elem)}
	case gocql.TypeUDT:
		m := map[string]any{}
		for _, e := range info.(gocql.UDTTypeInfo).Elements {
			m[e.Name] = sample(e.Type)
		}
		return m
	default:
		return "x"
	}
}

func TestScanTargetsMatchSchema(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		stmt string
		dest []any
	}{
		{"stats", selectStats(3), (&statsRow{}).dest()},
		{"latest order", selectLatestOrder, (&orderRow{}).dest()},
		{"recent orders", selectRecentOrders, (&viewRow{}).dest()},
		{"all recent orders", selectAllRecentOrders, (&viewRow{}).dest()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := parse(t, tc.stmt)
			require.Len(t, tc.dest, len(p.selected))
			for i, c := range p.selected {
				typ := bindType(t, p, c)
				b, err := gocql.Marshal(typ, sample(typ))
				require.NoErrorf(t, err, "marshal %s", c)
				require.NoErrorf(t, gocql.Unmarshal(typ, b, tc.dest[i]), "scan %s", c)
			}
		})
	}
}
