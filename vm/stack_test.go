package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookbusy1344/lua-vm/compiler"
	"github.com/lookbusy1344/lua-vm/lexer"
	"github.com/lookbusy1344/lua-vm/value"
	"github.com/lookbusy1344/lua-vm/vm"
)

// Stack write discipline: a register write one past the end pushes, a
// write beyond that is fatal.
func TestStackWriteDiscipline(t *testing.T) {
	machine := vm.NewVM()

	machine.StackSet(0, value.NewInteger(1))
	require.Equal(t, 1, machine.StackLen())

	machine.StackSet(0, value.NewInteger(2))
	require.Equal(t, 1, machine.StackLen())
	assert.EqualValues(t, 2, machine.StackGet(0).AsInteger())

	machine.StackSet(1, value.NewInteger(3))
	require.Equal(t, 2, machine.StackLen())

	// A gap write is dropped by the native-facing setter.
	machine.StackSet(10, value.NewInteger(4))
	assert.Equal(t, 2, machine.StackLen())
	assert.True(t, machine.StackGet(10).IsNil())
}

// A hand-built prototype with a register gap must fail at the write, not
// corrupt the stack.
func TestStackWriteBeyondEndIsFatal(t *testing.T) {
	proto := &compiler.ParseProto{
		Bytecodes: []compiler.Bytecode{
			compiler.AB(compiler.OpLoadInt, 5, 1),
		},
	}

	machine := vm.NewVM()
	err := machine.Execute(proto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid stack index")
	assert.Equal(t, vm.StateError, machine.State)
}

func TestLoadNilFillsAndExtends(t *testing.T) {
	src := `local a, b, c = 1, 2
print(c)`
	proto, err := compiler.Load(lexer.New(strings.NewReader(src), "test.lua"))
	require.NoError(t, err)

	machine := vm.NewVM()
	var out bytes.Buffer
	machine.OutputWriter = &out
	require.NoError(t, machine.Execute(proto))
	assert.Equal(t, "nil\n", out.String())
}

func TestSetListDrainShrinksStack(t *testing.T) {
	src := `local t = { 1, 2, 3 }`
	proto, err := compiler.Load(lexer.New(strings.NewReader(src), "test.lua"))
	require.NoError(t, err)

	machine := vm.NewVM()
	require.NoError(t, machine.Execute(proto))

	// After the drain only the table register remains.
	require.Equal(t, 1, machine.StackLen())
	tbl := machine.StackGet(0)
	require.Equal(t, value.KTable, tbl.Kind())
	assert.Equal(t, 3, tbl.AsTable().ArrayLen())
}

func TestStackSnapshotChangeDetection(t *testing.T) {
	src := `local a = 1
local b = 2`
	proto, err := compiler.Load(lexer.New(strings.NewReader(src), "test.lua"))
	require.NoError(t, err)

	machine := vm.NewVM()
	machine.Load(proto)
	machine.State = vm.StateRunning

	var before, after vm.StackSnapshot
	before.Capture(machine)
	require.NoError(t, machine.Step())
	after.Capture(machine)

	assert.Equal(t, []int{0}, after.ChangedSlots(&before))
}
