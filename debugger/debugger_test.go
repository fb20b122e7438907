package debugger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lookbusy1344/lua-vm/compiler"
	"github.com/lookbusy1344/lua-vm/debugger"
	"github.com/lookbusy1344/lua-vm/lexer"
	"github.com/lookbusy1344/lua-vm/vm"
)

func newDebugger(t *testing.T, src string) *debugger.Debugger {
	t.Helper()
	proto, err := compiler.Load(lexer.New(strings.NewReader(src), "test.lua"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	machine := vm.NewVM()
	machine.OutputWriter = &bytes.Buffer{}
	return debugger.NewDebugger(machine, proto)
}

// drive runs the debugger's run loop the way RunCLI does.
func drive(dbg *debugger.Debugger) (stopReason string) {
	for dbg.Running {
		if shouldBreak, reason := dbg.ShouldBreak(); shouldBreak {
			dbg.Running = false
			return reason
		}
		if err := dbg.VM.Step(); err != nil {
			dbg.Running = false
			return "error"
		}
		if dbg.VM.State == vm.StateHalted {
			dbg.Running = false
			return "halted"
		}
	}
	return ""
}

func TestDebuggerBreakAndContinue(t *testing.T) {
	dbg := newDebugger(t, `g = 1
g = 2
g = 3`)

	if err := dbg.ExecuteCommand("break 1"); err != nil {
		t.Fatalf("break: %v", err)
	}
	if err := dbg.ExecuteCommand("run"); err != nil {
		t.Fatalf("run: %v", err)
	}

	reason := drive(dbg)
	if !strings.Contains(reason, "breakpoint") {
		t.Fatalf("stop reason: %q", reason)
	}
	if dbg.VM.PC() != 1 {
		t.Errorf("pc at break: got %d, want 1", dbg.VM.PC())
	}
	if dbg.VM.Global("g").AsInteger() != 1 {
		t.Errorf("g at break: got %s", dbg.VM.Global("g"))
	}

	if err := dbg.ExecuteCommand("continue"); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if reason := drive(dbg); reason != "halted" && reason != "" {
		t.Errorf("after continue: %q", reason)
	}
	if dbg.VM.Global("g").AsInteger() != 3 {
		t.Errorf("g at end: got %s", dbg.VM.Global("g"))
	}
}

func TestDebuggerConditionalBreakpoint(t *testing.T) {
	dbg := newDebugger(t, `g = 1
g = 2
h = 3`)

	// Break at bytecode 2 only when g reached 2 — it will have.
	if err := dbg.ExecuteCommand("break 2 if g == 2"); err != nil {
		t.Fatalf("break: %v", err)
	}
	if err := dbg.ExecuteCommand("run"); err != nil {
		t.Fatalf("run: %v", err)
	}
	reason := drive(dbg)
	if !strings.Contains(reason, "breakpoint") {
		t.Fatalf("conditional breakpoint did not fire: %q", reason)
	}
}

func TestDebuggerStep(t *testing.T) {
	dbg := newDebugger(t, `g = 1
g = 2`)

	if err := dbg.ExecuteCommand("step"); err != nil {
		t.Fatalf("step: %v", err)
	}
	if dbg.VM.PC() != 1 {
		t.Errorf("pc after step: got %d", dbg.VM.PC())
	}
	if dbg.Running {
		t.Error("step should not leave the debugger running")
	}

	// Empty command repeats the last one.
	if err := dbg.ExecuteCommand(""); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if dbg.VM.PC() != 2 {
		t.Errorf("pc after repeat: got %d", dbg.VM.PC())
	}
}

func TestDebuggerPrintCommand(t *testing.T) {
	dbg := newDebugger(t, `g = 7`)
	dbg.ExecuteCommand("run")
	drive(dbg)

	if err := dbg.ExecuteCommand("print g + 1"); err != nil {
		t.Fatalf("print: %v", err)
	}
	out := dbg.GetOutput()
	if !strings.Contains(out, "8") {
		t.Errorf("print output: %q", out)
	}
}

func TestDebuggerInfoStack(t *testing.T) {
	dbg := newDebugger(t, `local a = 5`)
	dbg.ExecuteCommand("run")
	drive(dbg)

	if err := dbg.ExecuteCommand("info stack"); err != nil {
		t.Fatalf("info: %v", err)
	}
	out := dbg.GetOutput()
	if !strings.Contains(out, "local a") {
		t.Errorf("info stack should annotate locals: %q", out)
	}
}

func TestDebuggerSetGlobal(t *testing.T) {
	dbg := newDebugger(t, `g = 1`)

	if err := dbg.ExecuteCommand("set h 41 + 1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if dbg.VM.Global("h").AsInteger() != 42 {
		t.Errorf("h: got %s", dbg.VM.Global("h"))
	}
}

func TestDebuggerListMarksPC(t *testing.T) {
	dbg := newDebugger(t, `g = 1
g = 2`)

	if err := dbg.ExecuteCommand("list"); err != nil {
		t.Fatalf("list: %v", err)
	}
	out := dbg.GetOutput()
	if !strings.Contains(out, "=> ") {
		t.Errorf("listing should mark the current pc: %q", out)
	}
}

func TestDebuggerResolveIndexBounds(t *testing.T) {
	dbg := newDebugger(t, `g = 1`)

	if _, err := dbg.ResolveIndex("0"); err != nil {
		t.Errorf("index 0 should resolve: %v", err)
	}
	if _, err := dbg.ResolveIndex("5"); err == nil {
		t.Error("out-of-range index should fail")
	}
	if _, err := dbg.ResolveIndex("abc"); err == nil {
		t.Error("non-numeric index should fail")
	}
}

func TestDebuggerUnknownCommand(t *testing.T) {
	dbg := newDebugger(t, `g = 1`)
	if err := dbg.ExecuteCommand("frobnicate"); err == nil {
		t.Error("unknown command should fail")
	}
}

func TestDebuggerWatchCommand(t *testing.T) {
	dbg := newDebugger(t, `g = 1
h = 2`)

	if err := dbg.ExecuteCommand("watch g"); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := dbg.ExecuteCommand("run"); err != nil {
		t.Fatalf("run: %v", err)
	}
	reason := drive(dbg)
	if !strings.Contains(reason, "watchpoint") {
		t.Errorf("watchpoint did not stop execution: %q", reason)
	}
}
