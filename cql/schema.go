package cql

import "fmt"

// DefaultKeyspace holds every wholesale table.
const DefaultKeyspace = "wholesale_supplier"

// maxDistricts is the number of D_<n>_YTD static columns of the stats table.
const maxDistricts = 10

// Tables and views. customer_balance and order_table_mat_view are
// materialized views maintained by the store.
const (
	tableCustomerData  = "customer_data"
	tableCustomerStats = "customer_order_stats"
	viewBalance        = "customer_balance"
	tableOrder         = "order_table"
	viewRecentOrders   = "order_table_mat_view"
	tableCarrier       = "order_carrier"
	tableStock         = "stock"
	tableItem          = "item"
)

const orderColumns = "O_W_ID, O_D_ID, O_ID, O_C_ID, O_ENTRY_D, O_OL_CNT, O_ALL_LOCAL, TOTAL_OL_QUANTITY, ITEM_IDS, ORDER_LINES"

// viewColumns is the projection of order_table_mat_view.
const viewColumns = "O_W_ID, O_D_ID, O_ID, O_C_ID, O_ENTRY_D, ITEM_IDS, ORDER_LINES"

var (
	selectProfile = "SELECT W_NAME, W_ADDRESS, W_TAX, D_NAME, D_ADDRESS, D_TAX, C_NAME, C_ADDRESS, C_PHONE, C_SINCE, " +
		"C_CREDIT, C_CREDIT_LIM, C_DISCOUNT, C_DATA FROM " + tableCustomerData +
		" WHERE C_W_ID = ? AND C_D_ID = ? AND C_ID = ?"

	selectNextOrderID = "SELECT D_NEXT_O_ID FROM " + tableOrder + " WHERE O_W_ID = ? AND O_D_ID = ? LIMIT 1"

	selectStock = "SELECT S_QUANTITY, S_YTD, S_ORDER_CNT, S_REMOTE_CNT FROM " + tableStock +
		" WHERE S_W_ID = ? AND S_I_ID = ?"

	// Items share the single partition I = 1.
	selectItem = "SELECT I_NAME, I_PRICE FROM " + tableItem + " WHERE I = 1 AND I_ID = ?"

	// Orders of a customer cluster by ascending O_ID.
	selectLatestOrder = "SELECT " + orderColumns + " FROM " + tableOrder +
		" WHERE O_W_ID = ? AND O_D_ID = ? AND O_C_ID = ? ORDER BY O_ID DESC LIMIT 1"

	selectCarrier = "SELECT O_CARRIER_ID, TOTAL_AMOUNT, OL_DELIVERY_D FROM " + tableCarrier +
		" WHERE O_W_ID = ? AND O_D_ID = ? AND O_ID = ? AND O_C_ID = ?"

	selectRecentOrders = "SELECT " + viewColumns + " FROM " + viewRecentOrders +
		" WHERE O_W_ID = ? AND O_D_ID = ? LIMIT ?"

	selectAllRecentOrders = "SELECT " + viewColumns + " FROM " + viewRecentOrders

	// GROUP BY keeps the first clustering row, the smallest O_ID, per district.
	selectUndelivered = "SELECT O_W_ID, O_D_ID, O_ID, O_C_ID, O_CARRIER_ID, TOTAL_AMOUNT FROM " + tableCarrier +
		" WHERE O_W_ID = ? AND O_CARRIER_ID = ? GROUP BY O_D_ID ALLOW FILTERING"

	selectTopBalances = "SELECT C_W_ID, C_D_ID, C_ID, C_BALANCE FROM " + viewBalance + " PER PARTITION LIMIT ?"

	insertOrder = "INSERT INTO " + tableOrder + " (O_W_ID, O_D_ID, O_ID, O_C_ID, D_NEXT_O_ID, O_ENTRY_D, O_OL_CNT, " +
		"O_ALL_LOCAL, TOTAL_OL_QUANTITY, ITEM_IDS, ORDER_LINES) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

	updateStock = "UPDATE " + tableStock + " SET S_QUANTITY = ?, S_YTD = ?, S_ORDER_CNT = ?, S_REMOTE_CNT = ?" +
		" WHERE S_W_ID = ? AND S_I_ID = ?"

	insertCarrier = "INSERT INTO " + tableCarrier + " (O_W_ID, O_D_ID, O_ID, O_C_ID, O_CARRIER_ID, TOTAL_AMOUNT)" +
		" VALUES (?, ?, ?, ?, ?, ?)"

	updatePayment = "UPDATE " + tableCustomerStats + " SET C_BALANCE = ?, C_YTD_PAYMENT = ?, C_PAYMENT_CNT = ?" +
		" WHERE C_W_ID = ? AND C_D_ID = ? AND C_ID = ?"

	markDelivered = "UPDATE " + tableCarrier + " SET O_CARRIER_ID = ?, OL_DELIVERY_D = ?" +
		" WHERE O_W_ID = ? AND O_D_ID = ? AND O_ID = ? AND O_C_ID = ?"

	updateDelivery = "UPDATE " + tableCustomerStats + " SET C_BALANCE = ?, C_DELIVERY_CNT = ?" +
		" WHERE C_W_ID = ? AND C_D_ID = ? AND C_ID = ?"
)

const paymentGuard = " IF C_PAYMENT_CNT = ?"

func districtYTDColumn(district int) string {
	return fmt.Sprintf("D_%d_YTD", district)
}

func selectStats(district int) string {
	return "SELECT C_NAME, C_BALANCE, C_YTD_PAYMENT, C_PAYMENT_CNT, C_DELIVERY_CNT, " + districtYTDColumn(district) +
		" FROM " + tableCustomerStats + " WHERE C_W_ID = ? AND C_D_ID = ? AND C_ID = ?"
}

func updateDistrictYTD(district int) string {
	return "UPDATE " + tableCustomerStats + " SET " + districtYTDColumn(district) + " = ? WHERE C_W_ID = ?"
}
