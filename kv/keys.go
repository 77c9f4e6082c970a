package kv

import (
	"encoding/binary"
	"math"

	"github.com/spaolacci/murmur3"
)

// Key layout mirrors a wide-column table:
//
//	<table>|<token:4><partition ints...><marker:1><clustering ints...>
//
// The token is the murmur3 hash of the encoded partition key so a full
// table scan walks partitions in token order. Static columns live on the
// key with the static marker and clustered rows follow it.
const (
	tableCustomer  = "!cust|"
	tableStats     = "!stat|"
	tableItem      = "!item|"
	tableStock     = "!stock|"
	tableOrder     = "!ord|"
	tableOrderView = "!ordv|"
	tableCarrier   = "!carr|"
)

const (
	staticMarker byte = 0x00
	rowMarker    byte = 0x01
)

// itemPartition is the single partition holding the item catalog.
const itemPartition = 1

const intWidth = 8

// appendInt appends v big-endian with the sign bit flipped so byte order
// matches numeric order.
func appendInt(dst []byte, v int) []byte {
	var buf [intWidth]byte
	binary.BigEndian.PutUint64(buf[:], uint64(int64(v))^(1<<63)) //nolint:gosec
	return append(dst, buf[:]...)
}

// appendDescInt appends v so that larger values sort first.
func appendDescInt(dst []byte, v int) []byte {
	var buf [intWidth]byte
	binary.BigEndian.PutUint64(buf[:], ^(uint64(int64(v)) ^ (1 << 63))) //nolint:gosec
	return append(dst, buf[:]...)
}

func decodeInt(b []byte) int {
	return int(int64(binary.BigEndian.Uint64(b) ^ (1 << 63))) //nolint:gosec
}

func partitionKey(table string, parts ...int) []byte {
	encoded := make([]byte, 0, len(parts)*intWidth)
	for _, p := range parts {
		encoded = appendInt(encoded, p)
	}
	key := make([]byte, 0, len(table)+4+len(encoded)+1)
	key = append(key, table...)
	key = binary.BigEndian.AppendUint32(key, murmur3.Sum32(encoded))
	return append(key, encoded...)
}

func staticKey(table string, parts ...int) []byte {
	return append(partitionKey(table, parts...), staticMarker)
}

func rowPrefix(table string, parts ...int) []byte {
	return append(partitionKey(table, parts...), rowMarker)
}

// prefixEnd returns the smallest key greater than every key with prefix p.
func prefixEnd(p []byte) []byte {
	end := append([]byte(nil), p...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < math.MaxUint8 {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

func customerKey(w, d, c int) []byte {
	return appendInt(rowPrefix(tableCustomer, w, d), c)
}

func customerStaticKey(w, d int) []byte {
	return staticKey(tableCustomer, w, d)
}

func statsKey(w, d, c int) []byte {
	return appendInt(appendInt(rowPrefix(tableStats, w), d), c)
}

func statsStaticKey(w int) []byte {
	return staticKey(tableStats, w)
}

func itemKey(i int) []byte {
	return appendInt(rowPrefix(tableItem, itemPartition), i)
}

func stockKey(w, i int) []byte {
	return appendInt(rowPrefix(tableStock, w), i)
}

func orderKey(w, d, c, o int) []byte {
	return appendDescInt(appendInt(rowPrefix(tableOrder, w, d), c), o)
}

func orderCustomerPrefix(w, d, c int) []byte {
	return appendInt(rowPrefix(tableOrder, w, d), c)
}

func orderStaticKey(w, d int) []byte {
	return staticKey(tableOrder, w, d)
}

func orderViewKey(w, d, o, c int) []byte {
	return appendInt(appendDescInt(rowPrefix(tableOrderView, w, d), o), c)
}

func carrierKey(w, d, o, c int) []byte {
	return appendInt(appendInt(appendInt(rowPrefix(tableCarrier, w), d), o), c)
}
