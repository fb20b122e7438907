// Package tools provides inspection utilities over compiled prototypes: a
// column-aligned disassembler and a constant-pool cross-reference.
package tools

import (
	"fmt"
	"strings"

	"github.com/lookbusy1344/lua-vm/compiler"
	"github.com/lookbusy1344/lua-vm/value"
)

// FormatStyle defines formatting options
type FormatStyle int

const (
	FormatDefault  FormatStyle = iota // Standard formatting
	FormatCompact                     // Minimal whitespace
	FormatExpanded                    // Extra whitespace for readability
)

// FormatOptions controls disassembler behavior
type FormatOptions struct {
	Style           FormatStyle
	MnemonicColumn  int  // Column for mnemonics (default: 8)
	OperandColumn   int  // Column for operands (default: 24)
	CommentColumn   int  // Column for comments (default: 44)
	AlignComments   bool // Align resolved-constant comments in a column
	IncludeComments bool // Emit resolved-constant comments at all
}

// DefaultFormatOptions returns default disassembler options
func DefaultFormatOptions() *FormatOptions {
	return &FormatOptions{
		Style:           FormatDefault,
		MnemonicColumn:  8,
		OperandColumn:   24,
		CommentColumn:   44,
		AlignComments:   true,
		IncludeComments: true,
	}
}

// CompactFormatOptions returns options for compact formatting
func CompactFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatCompact
	opts.MnemonicColumn = 0
	opts.OperandColumn = 0
	opts.CommentColumn = 0
	opts.AlignComments = false
	opts.IncludeComments = false
	return opts
}

// ExpandedFormatOptions returns options for expanded formatting
func ExpandedFormatOptions() *FormatOptions {
	opts := DefaultFormatOptions()
	opts.Style = FormatExpanded
	opts.MnemonicColumn = 12
	opts.OperandColumn = 32
	opts.CommentColumn = 56
	return opts
}

// Disassembler renders a prototype as a bytecode listing
type Disassembler struct {
	options *FormatOptions
	output  strings.Builder
}

// NewDisassembler creates a new disassembler
func NewDisassembler(options *FormatOptions) *Disassembler {
	if options == nil {
		options = DefaultFormatOptions()
	}
	return &Disassembler{options: options}
}

// Disassemble renders the whole prototype: the constant pool first, then
// one line per bytecode with the instruction index, mnemonic, operands,
// and — for constant-referencing operands — the resolved constant as a
// comment.
func (d *Disassembler) Disassemble(proto *compiler.ParseProto) string {
	d.output.Reset()

	if len(proto.Constants) > 0 && d.options.Style != FormatCompact {
		d.output.WriteString("; constants:\n")
		for i, c := range proto.Constants {
			fmt.Fprintf(&d.output, ";   [%d] %#v\n", i, c)
		}
	}

	for i, bc := range proto.Bytecodes {
		d.formatInstruction(i, bc, proto)
	}
	return d.output.String()
}

// DisassembleLine renders a single bytecode line without the constant-pool
// header; used by the TUI listing panel.
func (d *Disassembler) DisassembleLine(index int, proto *compiler.ParseProto) string {
	d.output.Reset()
	d.formatInstruction(index, proto.Bytecodes[index], proto)
	return strings.TrimSuffix(d.output.String(), "\n")
}

func (d *Disassembler) formatInstruction(index int, bc compiler.Bytecode, proto *compiler.ParseProto) {
	line := strings.Builder{}

	fmt.Fprintf(&line, "%04d:", index)

	if d.options.Style == FormatCompact {
		line.WriteString(" ")
	} else {
		d.padToColumn(&line, d.options.MnemonicColumn)
	}
	line.WriteString(bc.Op.String())

	operands := formatOperands(bc)
	if operands != "" {
		if d.options.Style == FormatCompact {
			line.WriteString(" ")
		} else {
			d.padToColumn(&line, d.options.OperandColumn)
		}
		line.WriteString(operands)
	}

	if d.options.IncludeComments {
		if comment := resolveConstant(bc, proto.Constants); comment != "" {
			if d.options.AlignComments {
				d.padToColumn(&line, d.options.CommentColumn)
			} else {
				line.WriteString("\t")
			}
			line.WriteString("; ")
			line.WriteString(comment)
		}
	}

	d.output.WriteString(line.String())
	d.output.WriteString("\n")
}

// formatOperands renders the operand list for one instruction.
func formatOperands(bc compiler.Bytecode) string {
	if bc.Op == compiler.OpLoadBool {
		return fmt.Sprintf("%d, %v", bc.A, bc.B != 0)
	}
	s := bc.String()
	// Bytecode.String is "Mnemonic a b [c]"; strip the mnemonic and
	// comma-join the rest.
	fields := strings.Fields(s)[1:]
	return strings.Join(fields, ", ")
}

// resolveConstant returns the rendered constant an instruction references,
// or "" when it references none.
func resolveConstant(bc compiler.Bytecode, constants []value.Value) string {
	idx := -1
	switch bc.Op {
	case compiler.OpGetGlobal, compiler.OpLoadConst:
		idx = bc.B
	case compiler.OpSetGlobal, compiler.OpSetGlobalConst:
		idx = bc.A
	case compiler.OpSetField, compiler.OpSetFieldConst:
		idx = bc.B
	case compiler.OpGetField:
		idx = bc.C
	case compiler.OpSetIntConst, compiler.OpSetTableConst:
		idx = bc.C
	}
	if idx < 0 || idx >= len(constants) {
		return ""
	}
	out := fmt.Sprintf("%#v", constants[idx])
	// Instructions with both a key and a value constant show both.
	if bc.Op == compiler.OpSetGlobalConst || bc.Op == compiler.OpSetFieldConst {
		if bc.Op == compiler.OpSetFieldConst && bc.C < len(constants) {
			out += fmt.Sprintf(", %#v", constants[bc.C])
		}
		if bc.Op == compiler.OpSetGlobalConst && bc.B < len(constants) {
			out += fmt.Sprintf(", %#v", constants[bc.B])
		}
	}
	return out
}

// padToColumn pads the string builder to the specified column
func (d *Disassembler) padToColumn(sb *strings.Builder, column int) {
	current := sb.Len()
	if current < column {
		sb.WriteString(strings.Repeat(" ", column-current))
	} else {
		sb.WriteString(" ")
	}
}

// Disassemble is a convenience function using default options
func Disassemble(proto *compiler.ParseProto) string {
	return NewDisassembler(DefaultFormatOptions()).Disassemble(proto)
}

// DisassembleWithStyle disassembles with the specified style
func DisassembleWithStyle(proto *compiler.ParseProto, style FormatStyle) string {
	var options *FormatOptions
	switch style {
	case FormatCompact:
		options = CompactFormatOptions()
	case FormatExpanded:
		options = ExpandedFormatOptions()
	default:
		options = DefaultFormatOptions()
	}
	return NewDisassembler(options).Disassemble(proto)
}
