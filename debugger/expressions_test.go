package debugger_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/lookbusy1344/lua-vm/compiler"
	"github.com/lookbusy1344/lua-vm/debugger"
	"github.com/lookbusy1344/lua-vm/lexer"
	"github.com/lookbusy1344/lua-vm/value"
	"github.com/lookbusy1344/lua-vm/vm"
)

// haltedVM compiles src, runs it to completion, and returns the machine
// with its final stack and globals intact.
func haltedVM(t *testing.T, src string) *vm.VM {
	t.Helper()
	proto, err := compiler.Load(lexer.New(strings.NewReader(src), "test.lua"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	machine := vm.NewVM()
	machine.OutputWriter = &bytes.Buffer{}
	if err := machine.Execute(proto); err != nil {
		t.Fatalf("execute: %v", err)
	}
	return machine
}

func evalOn(t *testing.T, machine *vm.VM, expr string) value.Value {
	t.Helper()
	eval := debugger.NewExpressionEvaluator()
	result, err := eval.EvaluateExpression(expr, machine)
	if err != nil {
		t.Fatalf("evaluate %q: %v", expr, err)
	}
	return result
}

func TestEvaluateLiterals(t *testing.T) {
	machine := haltedVM(t, `g = 1`)

	tests := []struct {
		expr string
		want string
	}{
		{"42", "42"},
		{"1.5", "1.5"},
		{`"hello"`, "hello"},
		{`'hi'`, "hi"},
	}
	for _, tt := range tests {
		if got := evalOn(t, machine, tt.expr).String(); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestEvaluateGlobals(t *testing.T) {
	machine := haltedVM(t, `g = 42`)

	if got := evalOn(t, machine, "g"); got.AsInteger() != 42 {
		t.Errorf("g: got %s", got)
	}
	if got := evalOn(t, machine, "missing"); !got.IsNil() {
		t.Errorf("missing global: got %s, want nil", got)
	}
}

func TestEvaluateLocalsByName(t *testing.T) {
	machine := haltedVM(t, `local a, b = 10, 20`)

	if got := evalOn(t, machine, "a"); got.AsInteger() != 10 {
		t.Errorf("a: got %s", got)
	}
	if got := evalOn(t, machine, "b"); got.AsInteger() != 20 {
		t.Errorf("b: got %s", got)
	}
}

func TestEvaluateLocalShadowing(t *testing.T) {
	machine := haltedVM(t, `local a = 1
local a = 2`)

	// Innermost shadow wins: the later register.
	if got := evalOn(t, machine, "a"); got.AsInteger() != 2 {
		t.Errorf("shadowed a: got %s, want 2", got)
	}
}

func TestEvaluateStackSlots(t *testing.T) {
	machine := haltedVM(t, `local a = 5`)

	if got := evalOn(t, machine, "$0"); got.AsInteger() != 5 {
		t.Errorf("$0: got %s", got)
	}

	eval := debugger.NewExpressionEvaluator()
	if _, err := eval.EvaluateExpression("$99", machine); err == nil {
		t.Error("out-of-range slot should fail")
	}
}

func TestEvaluateArithmetic(t *testing.T) {
	machine := haltedVM(t, `g = 10`)

	tests := []struct {
		expr string
		want string
	}{
		{"g + 1", "11"},
		{"g - 1", "9"},
		{"g * 2", "20"},
		{"g / 2", "5"},
		{"g + 0.5", "10.5"},
		{"(g + 2) * 2", "24"},
	}
	for _, tt := range tests {
		if got := evalOn(t, machine, tt.expr).String(); got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.expr, got, tt.want)
		}
	}
}

func TestEvaluateComparisons(t *testing.T) {
	machine := haltedVM(t, `g = 10`)

	tests := []struct {
		expr string
		want bool
	}{
		{"g == 10", true},
		{"g ~= 10", false},
		{"g < 11", true},
		{"g <= 10", true},
		{"g > 10", false},
		{"g >= 11", false},
		{`"a" == "a"`, true},
		{`"a" == "b"`, false},
	}
	for _, tt := range tests {
		got := evalOn(t, machine, tt.expr)
		if got.Kind() != value.KBoolean || got.AsBool() != tt.want {
			t.Errorf("%q: got %s, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvaluateTableAccess(t *testing.T) {
	machine := haltedVM(t, `local t = { "a", k = 7 }`)

	if got := evalOn(t, machine, "t[1]"); got.AsString() != "a" {
		t.Errorf("t[1]: got %s", got)
	}
	if got := evalOn(t, machine, "t.k"); got.AsInteger() != 7 {
		t.Errorf("t.k: got %s", got)
	}

	eval := debugger.NewExpressionEvaluator()
	if _, err := eval.EvaluateExpression("t.k.x", machine); err == nil {
		t.Error("indexing a non-table should fail")
	}
}

func TestEvaluateCondition(t *testing.T) {
	machine := haltedVM(t, `g = 10`)
	eval := debugger.NewExpressionEvaluator()

	cond, err := eval.Evaluate("g == 10", machine)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !cond {
		t.Error("condition should hold")
	}

	cond, err = eval.Evaluate("missing", machine)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if cond {
		t.Error("nil should not be truthy")
	}
}

func TestEvaluateErrors(t *testing.T) {
	machine := haltedVM(t, `g = 1`)
	eval := debugger.NewExpressionEvaluator()

	bad := []string{
		"",
		"g +",
		"(g",
		`"x" + 1`,
		"g / 0",
	}
	for _, expr := range bad {
		if _, err := eval.EvaluateExpression(expr, machine); err == nil {
			t.Errorf("%q: expected error", expr)
		}
	}
}

func TestValueHistory(t *testing.T) {
	machine := haltedVM(t, `g = 1`)
	eval := debugger.NewExpressionEvaluator()

	if _, err := eval.EvaluateExpression("41 + 1", machine); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.GetValueNumber() != 1 {
		t.Errorf("value number: got %d", eval.GetValueNumber())
	}
	v, err := eval.GetValue(1)
	if err != nil || v.AsInteger() != 42 {
		t.Errorf("history value: got %s, err %v", v, err)
	}
	if _, err := eval.GetValue(2); err == nil {
		t.Error("out-of-range history access should fail")
	}

	eval.Reset()
	if eval.GetValueNumber() != 0 {
		t.Error("reset did not clear history")
	}
}
