// Package hashtable provides the associative container that backs the
// document registry and the inverted index. Entries are never deleted, and
// iteration follows first-insertion order so it is stable for the life of
// the table.
package hashtable

// Table maps keys to values with amortised O(1) Put and Get.
type Table[K comparable, V any] struct {
	slots map[K]int
	keys  []K
	vals  []V
}

// New returns an empty table sized for roughly hint entries.
func New[K comparable, V any](hint int) *Table[K, V] {
	if hint < 0 {
		hint = 0
	}
	return &Table[K, V]{
		slots: make(map[K]int, hint),
		keys:  make([]K, 0, hint),
		vals:  make([]V, 0, hint),
	}
}

// Put inserts value under key, overwriting any previous value. An overwrite
// keeps the key's original iteration position.
func (t *Table[K, V]) Put(key K, value V) {
	if slot, ok := t.slots[key]; ok {
		t.vals[slot] = value
		return
	}
	t.slots[key] = len(t.keys)
	t.keys = append(t.keys, key)
	t.vals = append(t.vals, value)
}

// Get returns the value stored under key and whether it was present.
func (t *Table[K, V]) Get(key K) (V, bool) {
	slot, ok := t.slots[key]
	if !ok {
		var zero V
		return zero, false
	}
	return t.vals[slot], true
}

// Count returns the number of entries.
func (t *Table[K, V]) Count() int {
	return len(t.keys)
}

// Range calls fn for every entry in insertion order until fn returns false.
func (t *Table[K, V]) Range(fn func(key K, value V) bool) {
	for i, key := range t.keys {
		if !fn(key, t.vals[i]) {
			return
		}
	}
}
