// Package value implements the tagged-union runtime value, its small-string
// optimization tiers, and the hybrid array/map Table.
//
// Go's tracing garbage collector supersedes the reference-counted handles
// the source language uses for Table and Function: both are plain pointers
// here, collected (cycles included) by the runtime instead of leaking on a
// refcount that never reaches zero. This is a deliberate deviation, not an
// omission — see DESIGN.md.
package value

import (
	"fmt"
	"math"
	"unsafe"
)

// Kind tags the active case of a Value.
type Kind uint8

const (
	KNil Kind = iota
	KBoolean
	KInteger
	KFloat
	KShortString
	KMidString
	KLongString
	KTable
	KFunction
)

func (k Kind) String() string {
	switch k {
	case KNil:
		return "nil"
	case KBoolean:
		return "boolean"
	case KInteger:
		return "integer"
	case KFloat:
		return "float"
	case KShortString, KMidString, KLongString:
		return "string"
	case KTable:
		return "table"
	case KFunction:
		return "function"
	default:
		return "unknown"
	}
}

// String-tier boundaries, in bytes.
const (
	ShortStringMax = 14
	MidStringMax   = 47
)

// shortString is the value-typed, allocation-free representation used for
// byte strings of length <= ShortStringMax.
type shortString struct {
	len  uint8
	data [ShortStringMax]byte
}

// stringHandle is the shared backing for Mid/Long strings. Copying a Value
// shares the handle; NewFromBytes always copies its input, so the bytes
// behind a handle never change after construction.
type stringHandle struct {
	data []byte
}

// Function is a native function invocable by the VM. Two Function values
// are equal iff they are the same pointer: identity, not behavioral,
// equality.
type Function struct {
	Name string
	Call func(vm VMContext) (int, error)
}

// VMContext is the slice of VM behavior a native function needs: locating
// its arguments relative to func_index and reading/writing stack slots. The
// vm package's *VM satisfies this without value importing vm.
type VMContext interface {
	StackGet(i int) Value
	StackSet(i int, v Value)
	StackLen() int
	FuncIndex() int
}

// Value is the tagged union described by the data model: Nil, Boolean,
// Integer, Float, three string tiers, Table and Function.
type Value struct {
	kind    Kind
	boolean bool
	integer int64
	float   float64
	short   shortString
	long    *stringHandle
	table   *Table
	fn      *Function
}

// Nil is the zero Value.
var Nil = Value{kind: KNil}

func NewBool(b bool) Value     { return Value{kind: KBoolean, boolean: b} }
func NewInteger(i int64) Value { return Value{kind: KInteger, integer: i} }
func NewFloat(f float64) Value { return Value{kind: KFloat, float: f} }

// NewString chooses the smallest tier for s's bytes, exactly as
// NewFromBytes does.
func NewString(s string) Value { return NewFromBytes([]byte(s)) }

// NewFromBytes picks the string tier as a pure function of len(b): Short if
// <= 14, Mid if <= 47, else Long. It always copies b.
func NewFromBytes(b []byte) Value {
	n := len(b)
	switch {
	case n <= ShortStringMax:
		var ss shortString
		ss.len = uint8(n)
		copy(ss.data[:], b)
		return Value{kind: KShortString, short: ss}
	case n <= MidStringMax:
		cp := make([]byte, n)
		copy(cp, b)
		return Value{kind: KMidString, long: &stringHandle{data: cp}}
	default:
		cp := make([]byte, n)
		copy(cp, b)
		return Value{kind: KLongString, long: &stringHandle{data: cp}}
	}
}

func NewTableValue(t *Table) Value  { return Value{kind: KTable, table: t} }
func NewFunction(f *Function) Value { return Value{kind: KFunction, fn: f} }

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNil() bool { return v.kind == KNil }
func (v Value) IsString() bool {
	return v.kind == KShortString || v.kind == KMidString || v.kind == KLongString
}
func (v Value) IsNumber() bool { return v.kind == KInteger || v.kind == KFloat }

func (v Value) AsBool() bool          { return v.boolean }
func (v Value) AsInteger() int64      { return v.integer }
func (v Value) AsFloat() float64      { return v.float }
func (v Value) AsTable() *Table       { return v.table }
func (v Value) AsFunction() *Function { return v.fn }

// Bytes returns the underlying bytes of a string Value, regardless of tier.
func (v Value) Bytes() []byte {
	switch v.kind {
	case KShortString:
		return v.short.data[:v.short.len]
	case KMidString, KLongString:
		return v.long.data
	default:
		return nil
	}
}

// AsString returns the underlying bytes of a string Value as a Go string.
func (v Value) AsString() string {
	return string(v.Bytes())
}

// Truthy implements the language's truthiness rule: everything but Nil and
// false Boolean is truthy.
func (v Value) Truthy() bool {
	if v.kind == KNil {
		return false
	}
	if v.kind == KBoolean {
		return v.boolean
	}
	return true
}

// Eq implements the specification's equality rule: strings by bytes,
// tables/functions by handle identity, Nil == Nil, mismatched types unequal.
func (v Value) Eq(o Value) bool {
	if v.IsString() && o.IsString() {
		return string(v.Bytes()) == string(o.Bytes())
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KNil:
		return true
	case KBoolean:
		return v.boolean == o.boolean
	case KInteger:
		return v.integer == o.integer
	case KFloat:
		return v.float == o.float
	case KTable:
		return v.table == o.table
	case KFunction:
		return v.fn == o.fn
	default:
		return false
	}
}

// Hash is consistent with Eq: floats hash their raw bit pattern, tables and
// functions by pointer identity, strings by byte content (FNV-1a).
func (v Value) Hash() uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211

	switch v.kind {
	case KNil:
		return 0
	case KBoolean:
		if v.boolean {
			return 1
		}
		return 2
	case KInteger:
		return uint64(v.integer)
	case KFloat:
		return math.Float64bits(v.float)
	case KTable:
		return uint64(uintptr(unsafe.Pointer(v.table)))
	case KFunction:
		return uint64(uintptr(unsafe.Pointer(v.fn)))
	}
	h := uint64(offset64)
	for _, b := range v.Bytes() {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

// IsNaN reports whether v is a float NaN; used to reject NaN table keys.
func (v Value) IsNaN() bool {
	return v.kind == KFloat && math.IsNaN(v.float)
}

// String implements fmt.Stringer as the language's user-facing "print" form:
// bare number, unquoted string contents, nil, true/false, table contents,
// function pointer.
func (v Value) String() string {
	switch v.kind {
	case KNil:
		return "nil"
	case KBoolean:
		if v.boolean {
			return "true"
		}
		return "false"
	case KInteger:
		return fmt.Sprintf("%d", v.integer)
	case KFloat:
		return fmt.Sprintf("%g", v.float)
	case KShortString, KMidString, KLongString:
		return string(v.Bytes())
	case KTable:
		return v.table.String()
	case KFunction:
		return fmt.Sprintf("function: %p", v.fn)
	default:
		return "<unknown>"
	}
}

// GoString is the debug form used by dbg_print: it names the tier and
// quotes string contents, mirroring the original implementation's Debug
// output (e.g. ShortString("foo"), Integer(3)).
func (v Value) GoString() string {
	switch v.kind {
	case KNil:
		return "Nil"
	case KBoolean:
		return fmt.Sprintf("Boolean(%v)", v.boolean)
	case KInteger:
		return fmt.Sprintf("Integer(%d)", v.integer)
	case KFloat:
		return fmt.Sprintf("Float(%v)", v.float)
	case KShortString:
		return fmt.Sprintf("ShortString(%q)", v.AsString())
	case KMidString:
		return fmt.Sprintf("MidString(%q)", v.AsString())
	case KLongString:
		return fmt.Sprintf("LongString(%q)", v.AsString())
	case KTable:
		return fmt.Sprintf("Table(%s)", v.table.DebugString())
	case KFunction:
		return fmt.Sprintf("Function(%p)", v.fn)
	default:
		return "<unknown>"
	}
}
