package hashtable

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_PutGet(t *testing.T) {
	tbl := New[string, int](0)
	tbl.Put("matrix", 1)
	tbl.Put("scifi", 2)

	v, ok := tbl.Get("matrix")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = tbl.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, 2, tbl.Count())
}

func TestTable_PutOverwrites(t *testing.T) {
	tbl := New[string, string](4)
	tbl.Put("k", "a")
	tbl.Put("k", "b")

	v, ok := tbl.Get("k")
	require.True(t, ok)
	assert.Equal(t, "b", v)
	assert.Equal(t, 1, tbl.Count())
}

func TestTable_RangeIsInsertionOrdered(t *testing.T) {
	tbl := New[string, int](0)
	want := make([]string, 0, 100)
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key-%d", 99-i)
		want = append(want, key)
		tbl.Put(key, i)
	}
	tbl.Put("key-50", -1)

	for run := 0; run < 3; run++ {
		got := make([]string, 0, 100)
		tbl.Range(func(k string, _ int) bool {
			got = append(got, k)
			return true
		})
		assert.Equal(t, want, got)
	}
}

func TestTable_RangeStopsEarly(t *testing.T) {
	tbl := New[int, int](0)
	for i := 0; i < 10; i++ {
		tbl.Put(i, i)
	}
	seen := 0
	tbl.Range(func(_, _ int) bool {
		seen++
		return seen < 3
	})
	assert.Equal(t, 3, seen)
}

func TestNew_NegativeHint(t *testing.T) {
	tbl := New[string, int](-5)
	assert.Equal(t, 0, tbl.Count())
}
