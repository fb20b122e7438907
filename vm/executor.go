// Package vm executes a compiled ParseProto over a register stack and a
// global environment.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/lookbusy1344/lua-vm/compiler"
	"github.com/lookbusy1344/lua-vm/ferr"
	"github.com/lookbusy1344/lua-vm/value"
)

// ExecutionState represents the current state of execution
type ExecutionState int

const (
	StateRunning ExecutionState = iota
	StateHalted
	StateError
)

// VM is the virtual machine: a dense register stack, a globals map, and the
// index of the function register of the call in flight.
type VM struct {
	State ExecutionState

	// Execution limits and bookkeeping
	MaxSteps       uint64
	InstructionLog []int // History of executed bytecode indices

	// Error handling
	LastError error

	// I/O redirection (for the TUI and testing)
	OutputWriter io.Writer // Writer for program output (defaults to os.Stdout)

	// Tracing and statistics
	ExecutionTrace *ExecutionTrace
	Statistics     *PerformanceStatistics

	proto     *compiler.ParseProto
	pc        int
	steps     uint64
	globals   map[string]value.Value
	stack     []value.Value
	funcIndex int
}

// NewVM creates a new virtual machine instance with the built-in functions
// installed.
func NewVM() *VM {
	vm := &VM{
		State:          StateHalted,
		MaxSteps:       DefaultMaxSteps,
		InstructionLog: make([]int, 0, DefaultLogCapacity),
		OutputWriter:   os.Stdout,
		stack:          make([]value.Value, 0, DefaultStackCapacity),
	}
	vm.installBuiltins()
	return vm
}

func (vm *VM) installBuiltins() {
	vm.globals = map[string]value.Value{
		"print":     value.NewFunction(&value.Function{Name: "print", Call: vm.builtinPrint}),
		"dbg_print": value.NewFunction(&value.Function{Name: "dbg_print", Call: vm.builtinDbgPrint}),
	}
}

// builtinPrint writes its first argument in user-facing form.
func (vm *VM) builtinPrint(ctx value.VMContext) (int, error) {
	i := ctx.FuncIndex() + 1
	if i >= ctx.StackLen() {
		return 0, rtErrorf("bad argument to print: no value")
	}
	fmt.Fprintf(vm.OutputWriter, "%s\n", ctx.StackGet(i))
	return 0, nil
}

// builtinDbgPrint writes its first argument in debug form, naming the tier
// of the value.
func (vm *VM) builtinDbgPrint(ctx value.VMContext) (int, error) {
	i := ctx.FuncIndex() + 1
	if i >= ctx.StackLen() {
		return 0, rtErrorf("bad argument to dbg_print: no value")
	}
	fmt.Fprintf(vm.OutputWriter, "%#v\n", ctx.StackGet(i))
	return 0, nil
}

func rtErrorf(format string, args ...any) *ferr.Error {
	return ferr.Newf(ferr.Position{}, ferr.Runtime, format, args...)
}

// Load stages a prototype for execution, resetting the program counter and
// the register stack.
func (vm *VM) Load(proto *compiler.ParseProto) {
	vm.proto = proto
	vm.pc = 0
	vm.steps = 0
	vm.stack = vm.stack[:0]
	vm.funcIndex = 0
	vm.InstructionLog = vm.InstructionLog[:0]
	vm.State = StateHalted
	vm.LastError = nil
}

// Reset restores the VM to its initial state, keeping the loaded prototype.
func (vm *VM) Reset() {
	vm.pc = 0
	vm.steps = 0
	vm.stack = vm.stack[:0]
	vm.funcIndex = 0
	vm.InstructionLog = vm.InstructionLog[:0]
	vm.State = StateHalted
	vm.LastError = nil
	vm.installBuiltins()
}

// Execute runs proto to completion. Equivalent to Load followed by Run.
func (vm *VM) Execute(proto *compiler.ParseProto) error {
	vm.Load(proto)
	return vm.Run()
}

// Run executes bytecodes until the end of the prototype or an error.
func (vm *VM) Run() error {
	if vm.proto == nil {
		return rtErrorf("no program loaded")
	}
	vm.State = StateRunning
	for vm.State == StateRunning {
		if err := vm.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Step executes a single bytecode. Reaching the end of the prototype halts
// the machine; any opcode failure moves it to StateError.
func (vm *VM) Step() error {
	if vm.State == StateError {
		return fmt.Errorf("VM is in error state: %w", vm.LastError)
	}
	if vm.proto == nil {
		return rtErrorf("no program loaded")
	}
	if vm.pc >= len(vm.proto.Bytecodes) {
		vm.State = StateHalted
		return nil
	}
	if vm.MaxSteps > 0 && vm.steps >= vm.MaxSteps {
		vm.State = StateError
		vm.LastError = rtErrorf("step limit exceeded (%d bytecodes)", vm.MaxSteps)
		return vm.LastError
	}

	index := vm.pc
	bc := vm.proto.Bytecodes[index]
	vm.InstructionLog = append(vm.InstructionLog, index)

	if err := vm.execute(bc); err != nil {
		vm.State = StateError
		vm.LastError = fmt.Errorf("execute failed at bytecode %d (%s): %w", index, bc, err)
		return vm.LastError
	}

	vm.pc++
	vm.steps++

	if vm.Statistics != nil {
		vm.Statistics.RecordInstruction(bc.Op)
	}
	if vm.ExecutionTrace != nil {
		vm.ExecutionTrace.RecordInstruction(vm, index, bc)
	}

	if vm.pc >= len(vm.proto.Bytecodes) {
		vm.State = StateHalted
	}
	return nil
}

// execute dispatches one bytecode.
func (vm *VM) execute(bc compiler.Bytecode) error {
	switch bc.Op {
	case compiler.OpGetGlobal:
		name, err := vm.constName(bc.B)
		if err != nil {
			return err
		}
		v, ok := vm.globals[name]
		if !ok {
			v = value.Nil
		}
		return vm.setStack(bc.A, v)

	case compiler.OpSetGlobal:
		name, err := vm.constName(bc.A)
		if err != nil {
			return err
		}
		v, err := vm.stackAt(bc.B)
		if err != nil {
			return err
		}
		vm.globals[name] = v
		return nil

	case compiler.OpSetGlobalConst:
		name, err := vm.constName(bc.A)
		if err != nil {
			return err
		}
		v, err := vm.constAt(bc.B)
		if err != nil {
			return err
		}
		vm.globals[name] = v
		return nil

	case compiler.OpLoadConst:
		v, err := vm.constAt(bc.B)
		if err != nil {
			return err
		}
		return vm.setStack(bc.A, v)

	case compiler.OpLoadNil:
		return vm.fillStack(bc.A, bc.B)

	case compiler.OpLoadBool:
		return vm.setStack(bc.A, value.NewBool(bc.B != 0))

	case compiler.OpLoadInt:
		return vm.setStack(bc.A, value.NewInteger(int64(bc.B)))

	case compiler.OpMove:
		v, err := vm.stackAt(bc.B)
		if err != nil {
			return err
		}
		return vm.setStack(bc.A, v)

	case compiler.OpCall:
		vm.funcIndex = bc.A
		f, err := vm.stackAt(bc.A)
		if err != nil {
			return err
		}
		if f.Kind() != value.KFunction {
			return rtErrorf("attempt to call a %s value", f.Kind())
		}
		if vm.Statistics != nil {
			vm.Statistics.RecordCall(f.AsFunction().Name)
		}
		_, err = f.AsFunction().Call(vm)
		return err

	case compiler.OpNewTable:
		t := value.NewTable(bc.B, bc.C)
		return vm.setStack(bc.A, value.NewTableValue(t))

	case compiler.OpSetInt:
		t, err := vm.tableAt(bc.A)
		if err != nil {
			return err
		}
		v, err := vm.stackAt(bc.C)
		if err != nil {
			return err
		}
		t.SetInt(int64(bc.B), v)
		return nil

	case compiler.OpSetIntConst:
		t, err := vm.tableAt(bc.A)
		if err != nil {
			return err
		}
		v, err := vm.constAt(bc.C)
		if err != nil {
			return err
		}
		t.SetInt(int64(bc.B), v)
		return nil

	case compiler.OpGetInt:
		t, err := vm.tableAt(bc.B)
		if err != nil {
			return err
		}
		return vm.setStack(bc.A, t.GetInt(int64(bc.C)))

	case compiler.OpSetField:
		t, err := vm.tableAt(bc.A)
		if err != nil {
			return err
		}
		key, err := vm.constStringAt(bc.B)
		if err != nil {
			return err
		}
		v, err := vm.stackAt(bc.C)
		if err != nil {
			return err
		}
		t.Set(key, v)
		return nil

	case compiler.OpSetFieldConst:
		t, err := vm.tableAt(bc.A)
		if err != nil {
			return err
		}
		key, err := vm.constStringAt(bc.B)
		if err != nil {
			return err
		}
		v, err := vm.constAt(bc.C)
		if err != nil {
			return err
		}
		t.Set(key, v)
		return nil

	case compiler.OpGetField:
		t, err := vm.tableAt(bc.B)
		if err != nil {
			return err
		}
		key, err := vm.constStringAt(bc.C)
		if err != nil {
			return err
		}
		return vm.setStack(bc.A, t.Get(key))

	case compiler.OpSetTable:
		t, err := vm.tableAt(bc.A)
		if err != nil {
			return err
		}
		key, err := vm.stackAt(bc.B)
		if err != nil {
			return err
		}
		v, err := vm.stackAt(bc.C)
		if err != nil {
			return err
		}
		t.Set(key, v)
		return nil

	case compiler.OpSetTableConst:
		t, err := vm.tableAt(bc.A)
		if err != nil {
			return err
		}
		key, err := vm.stackAt(bc.B)
		if err != nil {
			return err
		}
		v, err := vm.constAt(bc.C)
		if err != nil {
			return err
		}
		t.Set(key, v)
		return nil

	case compiler.OpGetTable:
		t, err := vm.tableAt(bc.B)
		if err != nil {
			return err
		}
		key, err := vm.stackAt(bc.C)
		if err != nil {
			return err
		}
		return vm.setStack(bc.A, t.Get(key))

	case compiler.OpSetList:
		t, err := vm.tableAt(bc.A)
		if err != nil {
			return err
		}
		begin := bc.A + 1
		end := begin + bc.B
		if end > len(vm.stack) {
			return rtErrorf("SetList drains past the stack end (%d > %d)", end, len(vm.stack))
		}
		// Copy the slots out before mutating the table: the table handle at
		// stack[A] aliases the one being written through.
		vals := make([]value.Value, bc.B)
		copy(vals, vm.stack[begin:end])
		t.SetSlice(bc.C, vals)
		vm.stack = vm.stack[:begin]
		return nil

	default:
		return rtErrorf("unknown opcode %s", bc.Op)
	}
}

// setStack writes to a register: an in-range index overwrites, the index
// one past the end pushes, anything further is fatal.
func (vm *VM) setStack(dst int, v value.Value) error {
	switch {
	case dst < len(vm.stack):
		vm.stack[dst] = v
	case dst == len(vm.stack):
		vm.stack = append(vm.stack, v)
	default:
		return rtErrorf("invalid stack index %d (stack length %d)", dst, len(vm.stack))
	}
	return nil
}

// fillStack clears [begin, len) to Nil and extends with Nil through
// begin+num.
func (vm *VM) fillStack(begin, num int) error {
	for i := begin; i < len(vm.stack); i++ {
		vm.stack[i] = value.Nil
	}
	for len(vm.stack) < begin+num {
		vm.stack = append(vm.stack, value.Nil)
	}
	return nil
}

func (vm *VM) stackAt(i int) (value.Value, error) {
	if i < 0 || i >= len(vm.stack) {
		return value.Nil, rtErrorf("invalid stack index %d (stack length %d)", i, len(vm.stack))
	}
	return vm.stack[i], nil
}

func (vm *VM) constAt(k int) (value.Value, error) {
	if k < 0 || k >= len(vm.proto.Constants) {
		return value.Nil, rtErrorf("invalid constant index %d", k)
	}
	return vm.proto.Constants[k], nil
}

func (vm *VM) constStringAt(k int) (value.Value, error) {
	v, err := vm.constAt(k)
	if err != nil {
		return value.Nil, err
	}
	if !v.IsString() {
		return value.Nil, rtErrorf("constant %d is a %s, expected a string key", k, v.Kind())
	}
	return v, nil
}

func (vm *VM) constName(k int) (string, error) {
	v, err := vm.constAt(k)
	if err != nil {
		return "", err
	}
	if !v.IsString() {
		return "", rtErrorf("global name constant %d is a %s, not a string", k, v.Kind())
	}
	return v.AsString(), nil
}

func (vm *VM) tableAt(reg int) (*value.Table, error) {
	v, err := vm.stackAt(reg)
	if err != nil {
		return nil, err
	}
	if v.Kind() != value.KTable {
		return nil, rtErrorf("attempt to index a %s value", v.Kind())
	}
	return v.AsTable(), nil
}

// VMContext implementation for native functions.

// StackGet returns the value at stack index i, or Nil when out of range.
func (vm *VM) StackGet(i int) value.Value {
	if i < 0 || i >= len(vm.stack) {
		return value.Nil
	}
	return vm.stack[i]
}

// StackSet writes a value at stack index i, following the register write
// discipline (overwrite or push); out-of-range writes are dropped.
func (vm *VM) StackSet(i int, v value.Value) {
	_ = vm.setStack(i, v)
}

// StackLen returns the current register stack depth.
func (vm *VM) StackLen() int { return len(vm.stack) }

// FuncIndex returns the register of the function being called.
func (vm *VM) FuncIndex() int { return vm.funcIndex }

// Inspection accessors used by the debugger and tooling.

// PC returns the index of the next bytecode to execute.
func (vm *VM) PC() int { return vm.pc }

// Steps returns the number of bytecodes executed since Load.
func (vm *VM) Steps() uint64 { return vm.steps }

// Proto returns the loaded prototype, or nil.
func (vm *VM) Proto() *compiler.ParseProto { return vm.proto }

// Global returns the value of a global, or Nil when unset.
func (vm *VM) Global(name string) value.Value {
	if v, ok := vm.globals[name]; ok {
		return v
	}
	return value.Nil
}

// SetGlobal assigns a global directly, bypassing bytecode.
func (vm *VM) SetGlobal(name string, v value.Value) {
	vm.globals[name] = v
}

// GlobalNames returns the defined global names in unspecified order.
func (vm *VM) GlobalNames() []string {
	names := make([]string, 0, len(vm.globals))
	for name := range vm.globals {
		names = append(names, name)
	}
	return names
}
