package value_test

import (
	"strings"
	"testing"

	"github.com/lookbusy1344/lua-vm/value"
)

func TestTableIntegerRouting(t *testing.T) {
	// Insert-then-read returns the inserted value regardless of whether
	// the key landed in the array or the map part.
	keys := []int64{1, 2, 3, 4, 5, 10, 100, 1000, 7}

	tbl := value.NewTable(0, 0)
	for _, k := range keys {
		tbl.SetInt(k, value.NewInteger(k*10))
	}
	for _, k := range keys {
		got := tbl.GetInt(k)
		if got.Kind() != value.KInteger || got.AsInteger() != k*10 {
			t.Errorf("key %d: got %s, want %d", k, got, k*10)
		}
	}
}

func TestTableMissingKeysAreNil(t *testing.T) {
	tbl := value.NewTable(4, 4)
	if !tbl.GetInt(1).IsNil() {
		t.Error("missing array key should read Nil")
	}
	if !tbl.GetInt(999).IsNil() {
		t.Error("missing map key should read Nil")
	}
	if !tbl.GetField("absent").IsNil() {
		t.Error("missing field should read Nil")
	}
}

func TestTableStringKeysCollapseTiers(t *testing.T) {
	// A mid-tier string key must find the entry written under an equal
	// short-tier-impossible key: equal bytes always produce the same tier,
	// so byte equality decides.
	long := strings.Repeat("k", 20)
	tbl := value.NewTable(0, 0)
	tbl.Set(value.NewString(long), value.NewInteger(1))
	if got := tbl.Get(value.NewString(long)); got.AsInteger() != 1 {
		t.Errorf("string key lookup failed: got %s", got)
	}
}

func TestTableFieldOps(t *testing.T) {
	tbl := value.NewTable(0, 0)
	tbl.SetField("name", value.NewString("n"))
	if got := tbl.GetField("name"); got.AsString() != "n" {
		t.Errorf("field read: got %s", got)
	}

	// Overwrite
	tbl.SetField("name", value.NewInteger(2))
	if got := tbl.GetField("name"); got.AsInteger() != 2 {
		t.Errorf("field overwrite: got %s", got)
	}
	if tbl.MapLen() != 1 {
		t.Errorf("map length after overwrite: got %d, want 1", tbl.MapLen())
	}
}

func TestTableSetSlice(t *testing.T) {
	tbl := value.NewTable(0, 0)
	tbl.SetSlice(0, []value.Value{value.NewInteger(10), value.NewInteger(20)})
	tbl.SetSlice(2, []value.Value{value.NewInteger(30)})

	for i, want := range []int64{10, 20, 30} {
		got := tbl.GetInt(int64(i + 1))
		if got.AsInteger() != want {
			t.Errorf("array[%d]: got %s, want %d", i+1, got, want)
		}
	}
	if tbl.ArrayLen() != 3 {
		t.Errorf("array length: got %d, want 3", tbl.ArrayLen())
	}

	// A gap fills with Nil.
	tbl2 := value.NewTable(0, 0)
	tbl2.SetSlice(2, []value.Value{value.NewInteger(1)})
	if !tbl2.GetInt(1).IsNil() || !tbl2.GetInt(2).IsNil() {
		t.Error("gap slots should be Nil")
	}
	if tbl2.GetInt(3).AsInteger() != 1 {
		t.Error("value after gap misplaced")
	}
}

func TestTableMixedKeys(t *testing.T) {
	tbl := value.NewTable(2, 2)
	tbl.Set(value.NewInteger(1), value.NewString("one"))
	tbl.Set(value.NewString("k"), value.NewString("v"))
	tbl.Set(value.NewFloat(2.5), value.NewString("half"))
	tbl.Set(value.NewBool(true), value.NewString("yes"))

	if tbl.Get(value.NewInteger(1)).AsString() != "one" {
		t.Error("integer key")
	}
	if tbl.Get(value.NewString("k")).AsString() != "v" {
		t.Error("string key")
	}
	if tbl.Get(value.NewFloat(2.5)).AsString() != "half" {
		t.Error("float key")
	}
	if tbl.Get(value.NewBool(true)).AsString() != "yes" {
		t.Error("boolean key")
	}
}

func TestTableString(t *testing.T) {
	tbl := value.NewTable(2, 0)
	tbl.SetInt(1, value.NewString("a"))
	tbl.SetInt(2, value.NewInteger(7))

	got := tbl.String()
	want := "{[1] = a, [2] = 7, }"
	if got != want {
		t.Errorf("String: got %q, want %q", got, want)
	}
}

func TestTableSharedHandle(t *testing.T) {
	tbl := value.NewTable(0, 0)
	a := value.NewTableValue(tbl)
	b := value.NewTableValue(tbl)

	a.AsTable().SetField("x", value.NewInteger(1))
	if b.AsTable().GetField("x").AsInteger() != 1 {
		t.Error("mutation through one handle not visible through the other")
	}
}
