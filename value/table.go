package value

import (
	"fmt"
	"sort"
	"strings"
)

// arrayFastMin is the lower bound of the integer-key fast path: keys below
// max(arrayFastMin, 2*cap(array)) land in the array part.
const arrayFastMin = 4

// mapKey is the comparable form of a Value used as a map key. The three
// string tiers fold to one kind so byte-equal strings collide regardless of
// tier; tables and functions key by pointer identity.
type mapKey struct {
	kind    Kind
	boolean bool
	integer int64
	float   float64
	str     string
	table   *Table
	fn      *Function
}

func (v Value) mapKey() mapKey {
	if v.IsString() {
		return mapKey{kind: KShortString, str: v.AsString()}
	}
	switch v.kind {
	case KBoolean:
		return mapKey{kind: KBoolean, boolean: v.boolean}
	case KInteger:
		return mapKey{kind: KInteger, integer: v.integer}
	case KFloat:
		return mapKey{kind: KFloat, float: v.float}
	case KTable:
		return mapKey{kind: KTable, table: v.table}
	case KFunction:
		return mapKey{kind: KFunction, fn: v.fn}
	default:
		return mapKey{kind: KNil}
	}
}

// mapEntry keeps the original key Value alongside its stored value so
// iteration can reproduce keys verbatim.
type mapEntry struct {
	key Value
	val Value
}

// Table is the hybrid array/map container. The array part is 1-based when
// addressed through integer keys; the map part holds everything else. A
// Table is mutated in place through its pointer, shared by every
// Value wrapping it.
type Table struct {
	array []Value
	hash  map[mapKey]mapEntry
}

// NewTable creates a table with the given capacity hints.
func NewTable(narray, nmap int) *Table {
	return &Table{
		array: make([]Value, 0, narray),
		hash:  make(map[mapKey]mapEntry, nmap),
	}
}

// ArrayLen returns the length of the array part.
func (t *Table) ArrayLen() int { return len(t.array) }

// MapLen returns the number of entries in the map part.
func (t *Table) MapLen() int { return len(t.hash) }

// GetInt reads the value at integer key i: the array part at 1-based index
// i when in range, falling back to the map, falling back to Nil. The map
// fallback also covers keys written before the array grew over them.
func (t *Table) GetInt(i int64) Value {
	if i >= 1 && i <= int64(len(t.array)) {
		if v := t.array[i-1]; !v.IsNil() {
			return v
		}
	}
	return t.mapGet(NewInteger(i))
}

// SetInt writes v at integer key i. Keys inside the fast-path window
// (1 <= i < max(4, 2*cap(array))) go to the array part, extending it with
// Nil as needed; everything else goes to the map keyed by Integer(i).
func (t *Table) SetInt(i int64, v Value) {
	limit := int64(arrayFastMin)
	if c := int64(2 * cap(t.array)); c > limit {
		limit = c
	}
	if i >= 1 && i < limit {
		idx := int(i - 1)
		for len(t.array) < idx {
			t.array = append(t.array, Nil)
		}
		if idx == len(t.array) {
			t.array = append(t.array, v)
		} else {
			t.array[idx] = v
		}
		return
	}
	t.mapSet(NewInteger(i), v)
}

// Get reads the value at an arbitrary key, routing integer keys through the
// fast path.
func (t *Table) Get(key Value) Value {
	if key.Kind() == KInteger {
		return t.GetInt(key.AsInteger())
	}
	return t.mapGet(key)
}

// Set writes v at an arbitrary key, routing integer keys through the fast
// path.
func (t *Table) Set(key, v Value) {
	if key.Kind() == KInteger {
		t.SetInt(key.AsInteger(), v)
		return
	}
	t.mapSet(key, v)
}

// GetField reads the value at a string key.
func (t *Table) GetField(name string) Value {
	return t.mapGet(NewString(name))
}

// SetField writes v at a string key.
func (t *Table) SetField(name string, v Value) {
	t.mapSet(NewString(name), v)
}

// SetSlice writes vals into the array part starting at 0-based offset,
// extending with Nil as needed. This is the drain step behind SetList.
func (t *Table) SetSlice(offset int, vals []Value) {
	for k, v := range vals {
		idx := offset + k
		for len(t.array) < idx {
			t.array = append(t.array, Nil)
		}
		if idx == len(t.array) {
			t.array = append(t.array, v)
		} else {
			t.array[idx] = v
		}
	}
}

func (t *Table) mapGet(key Value) Value {
	if e, ok := t.hash[key.mapKey()]; ok {
		return e.val
	}
	return Nil
}

func (t *Table) mapSet(key, v Value) {
	t.hash[key.mapKey()] = mapEntry{key: key, val: v}
}

// sortedEntries returns the map entries ordered by rendered key, so both
// display forms are deterministic.
func (t *Table) sortedEntries() []mapEntry {
	entries := make([]mapEntry, 0, len(t.hash))
	for _, e := range t.hash {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].key.String() < entries[j].key.String()
	})
	return entries
}

// String renders the user-facing form: {[1] = a, [2] = b, [k] = v, }.
func (t *Table) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, v := range t.array {
		fmt.Fprintf(&sb, "[%d] = %s, ", i+1, v)
	}
	for _, e := range t.sortedEntries() {
		fmt.Fprintf(&sb, "[%s] = %s, ", e.key, e.val)
	}
	sb.WriteByte('}')
	return sb.String()
}

// DebugString renders the multi-line debug form used by dbg_print.
func (t *Table) DebugString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\narray[%d]:\n", len(t.array))
	for i, v := range t.array {
		fmt.Fprintf(&sb, "\t[%d] = %s\n", i+1, v)
	}
	fmt.Fprintf(&sb, "map[%d]:\n", len(t.hash))
	for _, e := range t.sortedEntries() {
		fmt.Fprintf(&sb, "\t[%s] = %s\n", e.key, e.val)
	}
	return sb.String()
}
