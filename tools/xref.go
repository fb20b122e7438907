package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lookbusy1344/lua-vm/compiler"
)

// ReferenceType indicates how a constant is used
type ReferenceType int

const (
	RefLoad        ReferenceType = iota // Loaded onto the stack
	RefGlobalName                       // Names a global being read or written
	RefFieldKey                         // Keys a table field access
	RefConstValue                       // Source value of a *Const write
)

func (r ReferenceType) String() string {
	switch r {
	case RefLoad:
		return "load"
	case RefGlobalName:
		return "global-name"
	case RefFieldKey:
		return "field-key"
	case RefConstValue:
		return "const-value"
	default:
		return "unknown"
	}
}

// Reference represents a single reference to a constant
type Reference struct {
	Type  ReferenceType
	Index int // Bytecode index of the referencing instruction
}

// ConstantEntry collects all references to one constant-pool entry
type ConstantEntry struct {
	Pool       int // Constant-pool index
	Rendered   string
	References []Reference
}

// ConstantXref walks the opcode stream and records, per constant-pool
// entry, every instruction that references it and how.
func ConstantXref(proto *compiler.ParseProto) []ConstantEntry {
	entries := make([]ConstantEntry, len(proto.Constants))
	for i, c := range proto.Constants {
		entries[i] = ConstantEntry{Pool: i, Rendered: fmt.Sprintf("%#v", c)}
	}

	add := func(pool, index int, t ReferenceType) {
		if pool >= 0 && pool < len(entries) {
			entries[pool].References = append(entries[pool].References, Reference{Type: t, Index: index})
		}
	}

	for i, bc := range proto.Bytecodes {
		switch bc.Op {
		case compiler.OpLoadConst:
			add(bc.B, i, RefLoad)
		case compiler.OpGetGlobal:
			add(bc.B, i, RefGlobalName)
		case compiler.OpSetGlobal:
			add(bc.A, i, RefGlobalName)
		case compiler.OpSetGlobalConst:
			add(bc.A, i, RefGlobalName)
			add(bc.B, i, RefConstValue)
		case compiler.OpSetField:
			add(bc.B, i, RefFieldKey)
		case compiler.OpSetFieldConst:
			add(bc.B, i, RefFieldKey)
			add(bc.C, i, RefConstValue)
		case compiler.OpGetField:
			add(bc.C, i, RefFieldKey)
		case compiler.OpSetIntConst, compiler.OpSetTableConst:
			add(bc.C, i, RefConstValue)
		}
	}

	return entries
}

// UnreferencedConstants returns the pool indices no instruction references.
// The parser's deduplicating pool never produces these on its own, but a
// hand-built or decoded prototype can.
func UnreferencedConstants(proto *compiler.ParseProto) []int {
	var unused []int
	for _, e := range ConstantXref(proto) {
		if len(e.References) == 0 {
			unused = append(unused, e.Pool)
		}
	}
	return unused
}

// FormatXref renders the cross-reference as a table: one block per
// constant, references sorted by bytecode index.
func FormatXref(proto *compiler.ParseProto) string {
	var sb strings.Builder

	sb.WriteString("Constant Cross-Reference\n")
	sb.WriteString("========================\n\n")

	for _, e := range ConstantXref(proto) {
		fmt.Fprintf(&sb, "[%d] %s\n", e.Pool, e.Rendered)

		refs := make([]Reference, len(e.References))
		copy(refs, e.References)
		sort.Slice(refs, func(i, j int) bool { return refs[i].Index < refs[j].Index })

		if len(refs) == 0 {
			sb.WriteString("    (unreferenced)\n")
		}
		for _, r := range refs {
			fmt.Fprintf(&sb, "    %04d  %-12s %s\n", r.Index, r.Type, proto.Bytecodes[r.Index])
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
