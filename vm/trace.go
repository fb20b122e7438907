package vm

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/lookbusy1344/lua-vm/compiler"
)

// TraceEntry represents a single execution trace entry
type TraceEntry struct {
	Sequence     uint64            `json:"sequence"`      // Bytecode sequence number
	Index        int               `json:"index"`         // Bytecode index in the prototype
	Instruction  string            `json:"instruction"`   // Rendered instruction
	StackChanges map[string]string `json:"stack_changes"` // Changed registers (rN -> new value)
	Duration     time.Duration     `json:"duration_ns"`   // Time since trace start
}

// ExecutionTrace manages execution tracing
type ExecutionTrace struct {
	Enabled       bool
	Writer        io.Writer
	IncludeTiming bool
	MaxEntries    int

	entries   []TraceEntry
	startTime time.Time
	last      StackSnapshot
	current   StackSnapshot
}

// NewExecutionTrace creates a new execution trace
func NewExecutionTrace(writer io.Writer) *ExecutionTrace {
	return &ExecutionTrace{
		Enabled:       true,
		Writer:        writer,
		IncludeTiming: true,
		MaxEntries:    DefaultTraceMaxEntries,
		entries:       make([]TraceEntry, 0, 1000),
	}
}

// Start starts the trace
func (t *ExecutionTrace) Start() {
	t.startTime = time.Now()
	t.entries = t.entries[:0]
	t.last = StackSnapshot{}
}

// RecordInstruction records one executed bytecode together with the
// register slots it changed.
func (t *ExecutionTrace) RecordInstruction(vm *VM, index int, bc compiler.Bytecode) {
	if !t.Enabled {
		return
	}
	if t.MaxEntries > 0 && len(t.entries) >= t.MaxEntries {
		return
	}

	t.current.Capture(vm)

	entry := TraceEntry{
		Sequence:     vm.Steps(),
		Index:        index,
		Instruction:  bc.String(),
		StackChanges: make(map[string]string),
	}
	if t.IncludeTiming {
		entry.Duration = time.Since(t.startTime)
	}
	for _, slot := range t.current.ChangedSlots(&t.last) {
		entry.StackChanges[fmt.Sprintf("r%d", slot)] = t.current.Get(slot).String()
	}

	t.entries = append(t.entries, entry)
	t.last.Slots = append(t.last.Slots[:0], t.current.Slots...)
}

// Flush writes all trace entries to the writer
func (t *ExecutionTrace) Flush() error {
	if t.Writer == nil {
		return nil
	}
	for _, entry := range t.entries {
		if err := t.writeEntry(entry); err != nil {
			return err
		}
	}
	return nil
}

// writeEntry writes a single trace entry
func (t *ExecutionTrace) writeEntry(entry TraceEntry) error {
	// Format: [seq] index: instruction | changes | time
	line := fmt.Sprintf("[%06d] %04d: %-26s", entry.Sequence, entry.Index, entry.Instruction)

	if len(entry.StackChanges) > 0 {
		changes := make([]string, 0, len(entry.StackChanges))
		for name, val := range entry.StackChanges {
			changes = append(changes, fmt.Sprintf("%s=%s", name, val))
		}
		sort.Strings(changes)
		line += " | " + strings.Join(changes, " ")
	} else {
		line += " | (no changes)"
	}

	if t.IncludeTiming {
		line += fmt.Sprintf(" | %v", entry.Duration)
	}
	line += "\n"

	_, err := t.Writer.Write([]byte(line))
	return err
}

// ExportJSON writes the trace entries as indented JSON.
func (t *ExecutionTrace) ExportJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(t.entries)
}

// GetEntries returns all trace entries
func (t *ExecutionTrace) GetEntries() []TraceEntry {
	return t.entries
}

// Clear clears all trace entries
func (t *ExecutionTrace) Clear() {
	t.entries = t.entries[:0]
	t.last = StackSnapshot{}
}

// OpenTraceFile opens a trace file for writing
func OpenTraceFile(filename string) (*os.File, error) {
	return os.Create(filename)
}
