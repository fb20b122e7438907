package debugger

import (
	"fmt"

	"github.com/lookbusy1344/lua-vm/value"
	"github.com/lookbusy1344/lua-vm/vm"
)

// ExpressionEvaluator evaluates expressions in debugger commands
type ExpressionEvaluator struct {
	valueHistory []value.Value // History of evaluated values
}

// NewExpressionEvaluator creates a new expression evaluator
func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{
		valueHistory: make([]value.Value, 0),
	}
}

// EvaluateExpression evaluates an expression and returns the resulting
// value, recording it in the evaluation history.
func (e *ExpressionEvaluator) EvaluateExpression(expr string, machine *vm.VM) (value.Value, error) {
	result, err := e.evaluate(expr, machine)
	if err != nil {
		return value.Nil, err
	}

	e.valueHistory = append(e.valueHistory, result)
	return result, nil
}

// Evaluate evaluates an expression as a condition: the result's truthiness
// decides whether a conditional breakpoint fires.
func (e *ExpressionEvaluator) Evaluate(expr string, machine *vm.VM) (bool, error) {
	result, err := e.evaluate(expr, machine)
	if err != nil {
		return false, err
	}
	return result.Truthy(), nil
}

// GetValueNumber returns the number of values evaluated so far
func (e *ExpressionEvaluator) GetValueNumber() int {
	return len(e.valueHistory)
}

// GetValue returns a previously evaluated value by 1-based number
func (e *ExpressionEvaluator) GetValue(number int) (value.Value, error) {
	if number < 1 || number > len(e.valueHistory) {
		return value.Nil, fmt.Errorf("value %d not in history", number)
	}
	return e.valueHistory[number-1], nil
}

// evaluate is the main evaluation logic
func (e *ExpressionEvaluator) evaluate(expr string, machine *vm.VM) (value.Value, error) {
	if expr == "" {
		return value.Nil, fmt.Errorf("empty expression")
	}

	tokens := NewExprLexer(expr).TokenizeAll()
	parser := NewExprParser(tokens, machine)
	return parser.Parse()
}

// Reset clears the value history
func (e *ExpressionEvaluator) Reset() {
	e.valueHistory = e.valueHistory[:0]
}
