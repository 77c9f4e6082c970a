package kv

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntEncodingOrder(t *testing.T) {
	t.Parallel()

	vals := []int{-5, -1, 0, 1, 2, 300, 1 << 40}
	for i := 1; i < len(vals); i++ {
		a := appendInt(nil, vals[i-1])
		b := appendInt(nil, vals[i])
		require.Negative(t, bytes.Compare(a, b), "%d < %d", vals[i-1], vals[i])

		da := appendDescInt(nil, vals[i-1])
		db := appendDescInt(nil, vals[i])
		require.Positive(t, bytes.Compare(da, db), "desc %d > %d", vals[i-1], vals[i])
	}
	for _, v := range vals {
		require.Equal(t, v, decodeInt(appendInt(nil, v)))
	}
}

func TestStaticKeySortsBeforeRows(t *testing.T) {
	t.Parallel()

	static := orderStaticKey(1, 1)
	row := orderKey(1, 1, 0, 1)
	require.Negative(t, bytes.Compare(static, row))

	prefix := rowPrefix(tableOrder, 1, 1)
	require.True(t, bytes.HasPrefix(row, prefix))
	require.False(t, bytes.HasPrefix(static, prefix))
}

func TestPrefixEnd(t *testing.T) {
	t.Parallel()

	require.Equal(t, []byte("ab"), prefixEnd([]byte("aa")))
	require.Equal(t, []byte("b"), prefixEnd([]byte{'a', 0xff}))
	require.Nil(t, prefixEnd([]byte{0xff, 0xff}))
}

func TestParseStatsKey(t *testing.T) {
	t.Parallel()

	k, ok := parseStatsKey(statsKey(3, 7, 42))
	require.True(t, ok)
	require.Equal(t, 3, k.Warehouse)
	require.Equal(t, 7, k.District)
	require.Equal(t, 42, k.Customer)

	_, ok = parseStatsKey(statsStaticKey(3))
	require.False(t, ok)
}
