package lexer_test

import (
	"strings"
	"testing"

	"github.com/lookbusy1344/lua-vm/lexer"
	"github.com/lookbusy1344/lua-vm/token"
)

func newLexer(input string) *lexer.Lexer {
	return lexer.New(strings.NewReader(input), "test.lua")
}

func tokenTypes(t *testing.T, input string) []token.Type {
	t.Helper()
	lx := newLexer(input)
	var types []token.Type
	for {
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("input %q: unexpected error: %v", input, err)
		}
		types = append(types, tok.Type)
		if tok.Type == token.Eos {
			return types
		}
	}
}

func TestLexer_BasicTokens(t *testing.T) {
	input := `local a = "x"`
	lx := newLexer(input)

	expectedTokens := []token.Type{
		token.Local,
		token.Ident,
		token.Assign,
		token.String,
		token.Eos,
	}

	for i, expected := range expectedTokens {
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("token %d: unexpected error: %v", i, err)
		}
		if tok.Type != expected {
			t.Errorf("token %d: expected %v, got %v", i, expected, tok.Type)
		}
	}
}

func TestLexer_PeekIdempotent(t *testing.T) {
	lx := newLexer("print(1)")

	first, err := lx.Peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	second, err := lx.Peek()
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if first != second {
		t.Errorf("two peeks differ: %v vs %v", first, second)
	}

	next, err := lx.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != first {
		t.Errorf("next after peek returned %v, want %v", next, first)
	}

	after, err := lx.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if after.Type != token.ParL {
		t.Errorf("expected ( after ident, got %v", after)
	}
}

func TestLexer_Keywords(t *testing.T) {
	got := tokenTypes(t, "and break do else elseif end false for function goto if in local nil not or repeat return then true until while")
	want := []token.Type{
		token.And, token.Break, token.Do, token.Else, token.ElseIf, token.End,
		token.False, token.For, token.Function, token.Goto, token.If, token.In,
		token.Local, token.Nil, token.Not, token.Or, token.Repeat, token.Return,
		token.Then, token.True, token.Until, token.While, token.Eos,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLexer_MaximalMunch(t *testing.T) {
	tests := []struct {
		input string
		want  []token.Type
	}{
		{"/", []token.Type{token.Div, token.Eos}},
		{"//", []token.Type{token.Idiv, token.Eos}},
		{"=", []token.Type{token.Assign, token.Eos}},
		{"==", []token.Type{token.Equal, token.Eos}},
		{"~", []token.Type{token.BitXor, token.Eos}},
		{"~=", []token.Type{token.NotEq, token.Eos}},
		{":", []token.Type{token.Colon, token.Eos}},
		{"::", []token.Type{token.DoubColon, token.Eos}},
		{"<", []token.Type{token.Less, token.Eos}},
		{"<=", []token.Type{token.LesEq, token.Eos}},
		{"<<", []token.Type{token.ShiftL, token.Eos}},
		{">", []token.Type{token.Greater, token.Eos}},
		{">=", []token.Type{token.GreEq, token.Eos}},
		{">>", []token.Type{token.ShiftR, token.Eos}},
		{".", []token.Type{token.Dot, token.Eos}},
		{"..", []token.Type{token.Concat, token.Eos}},
		{"...", []token.Type{token.Dots, token.Eos}},
		{"- -", []token.Type{token.Sub, token.Sub, token.Eos}},
	}

	for _, tt := range tests {
		got := tokenTypes(t, tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("input %q: got %d tokens, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("input %q token %d: got %v, want %v", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestLexer_Comments(t *testing.T) {
	got := tokenTypes(t, "a -- this is a comment\nb")
	want := []token.Type{token.Ident, token.Ident, token.Eos}
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(got), len(want))
	}

	// A trailing comment with no newline still terminates cleanly.
	got = tokenTypes(t, "a -- trailing")
	if len(got) != 2 || got[0] != token.Ident || got[1] != token.Eos {
		t.Errorf("trailing comment: got %v", got)
	}
}

func TestLexer_StringLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`'hello'`, "hello"},
		{`"it's"`, "it's"},
		{`"a\nb"`, "a\nb"},
		{`"a\tb"`, "a\tb"},
		{`"a\rb"`, "a\rb"},
		{`"\b\f\a\v"`, "\x08\x0C\x07\x0B"},
		{`"\\"`, `\`},
		{`"\""`, `"`},
		{`"\'"`, `'`},
		{`"\x41\x6a"`, "Aj"},
		{`"\65"`, "A"},
		{`"\6"`, "\x06"},
		{`"\255"`, "\xff"},
		{`"\0651"`, "A1"},
		{`"\q"`, "q"},
	}

	for _, tt := range tests {
		lx := newLexer(tt.input)
		tok, err := lx.Next()
		if err != nil {
			t.Errorf("input %s: unexpected error: %v", tt.input, err)
			continue
		}
		if tok.Type != token.String {
			t.Errorf("input %s: expected string token, got %v", tt.input, tok.Type)
			continue
		}
		if tok.Str != tt.want {
			t.Errorf("input %s: got %q, want %q", tt.input, tok.Str, tt.want)
		}
	}
}

func TestLexer_StringErrors(t *testing.T) {
	tests := []string{
		`"unterminated`,
		"\"newline\ninside\"",
		`"\256"`,
		`"\xg1"`,
	}

	for _, input := range tests {
		lx := newLexer(input)
		if _, err := lx.Next(); err == nil {
			t.Errorf("input %q: expected error, got none", input)
		}
	}
}

func TestLexer_Numbers(t *testing.T) {
	intTests := []struct {
		input string
		want  int64
	}{
		{"0", 0},
		{"42", 42},
		{"1000000", 1000000},
	}
	for _, tt := range intTests {
		lx := newLexer(tt.input)
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("input %q: %v", tt.input, err)
		}
		if tok.Type != token.Integer || tok.Int != tt.want {
			t.Errorf("input %q: got %v, want Integer(%d)", tt.input, tok, tt.want)
		}
	}

	floatTests := []struct {
		input string
		want  float64
	}{
		{"1.5", 1.5},
		{"0.25", 0.25},
		{".5", 0.5},
		{"3.", 3.0},
	}
	for _, tt := range floatTests {
		lx := newLexer(tt.input)
		tok, err := lx.Next()
		if err != nil {
			t.Fatalf("input %q: %v", tt.input, err)
		}
		if tok.Type != token.Float || tok.Float != tt.want {
			t.Errorf("input %q: got %v, want Float(%g)", tt.input, tok, tt.want)
		}
	}
}

func TestLexer_NumberErrors(t *testing.T) {
	tests := []string{
		"0x10",
		"1e5",
		"1.5e3",
		"12abc",
	}

	for _, input := range tests {
		lx := newLexer(input)
		if _, err := lx.Next(); err == nil {
			t.Errorf("input %q: expected error, got none", input)
		}
	}
}

func TestLexer_Expect(t *testing.T) {
	lx := newLexer("( )")
	if _, err := lx.Expect(token.ParL); err != nil {
		t.Fatalf("expect (: %v", err)
	}
	if _, err := lx.Expect(token.CurlyR); err == nil {
		t.Error("expect } on ): expected error, got none")
	}
}

func TestLexer_StrayCharacter(t *testing.T) {
	lx := newLexer("@")
	if _, err := lx.Next(); err == nil {
		t.Error("expected error for stray character, got none")
	}
}

func TestLexer_Positions(t *testing.T) {
	lx := newLexer("a\n  b")
	tok, _ := lx.Next()
	if tok.Line != 1 {
		t.Errorf("first token line: got %d, want 1", tok.Line)
	}
	tok, _ = lx.Next()
	if tok.Line != 2 {
		t.Errorf("second token line: got %d, want 2", tok.Line)
	}
}
