package ferr_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lookbusy1344/lua-vm/ferr"
)

func TestErrorFormatting(t *testing.T) {
	pos := ferr.Position{Filename: "x.lua", Line: 3, Column: 7}
	err := ferr.New(pos, ferr.Parse, "unexpected token")

	msg := err.Error()
	if !strings.Contains(msg, "x.lua:3:7") {
		t.Errorf("missing position: %q", msg)
	}
	if !strings.Contains(msg, "parse error") {
		t.Errorf("missing kind: %q", msg)
	}
}

func TestErrorWithoutPosition(t *testing.T) {
	err := ferr.New(ferr.Position{}, ferr.Runtime, "attempt to call a nil value")
	msg := err.Error()
	if strings.Contains(msg, "0:0") {
		t.Errorf("zero position should be omitted: %q", msg)
	}
	if !strings.HasPrefix(msg, "runtime error:") {
		t.Errorf("missing kind prefix: %q", msg)
	}
}

func TestNewf(t *testing.T) {
	err := ferr.Newf(ferr.Position{Line: 1, Column: 1}, ferr.Lex, "unexpected character %q", 'x')
	if !strings.Contains(err.Error(), `'x'`) {
		t.Errorf("format args lost: %q", err.Error())
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("disk on fire")
	wrapped := ferr.Wrap(ferr.Position{Line: 2}, ferr.IO, inner)

	if wrapped.Kind != ferr.IO {
		t.Errorf("kind: got %v", wrapped.Kind)
	}
	if !errors.Is(wrapped, inner) {
		t.Error("wrapped error lost the cause")
	}
}

func TestWrapNeverDoubleWraps(t *testing.T) {
	orig := ferr.New(ferr.Position{Line: 1}, ferr.Lex, "bad byte")
	again := ferr.Wrap(ferr.Position{Line: 9}, ferr.IO, orig)
	if again != orig {
		t.Error("an *Error should pass through Wrap unchanged")
	}
}

func TestWrapNil(t *testing.T) {
	if ferr.Wrap(ferr.Position{}, ferr.IO, nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestKindStrings(t *testing.T) {
	tests := map[ferr.Kind]string{
		ferr.Lex:     "lex error",
		ferr.Parse:   "parse error",
		ferr.Runtime: "runtime error",
		ferr.IO:      "io error",
	}
	for kind, want := range tests {
		if kind.String() != want {
			t.Errorf("%d: got %q, want %q", kind, kind.String(), want)
		}
	}
}
