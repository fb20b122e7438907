// Package token defines the lexeme categories produced by the lexer and
// consumed by the compiler.
package token

import "fmt"

// Type identifies a lexeme category.
type Type int

const (
	Eos Type = iota

	Ident
	String
	Integer
	Float

	// keywords
	And
	Break
	Do
	Else
	ElseIf
	End
	False
	For
	Function
	Goto
	If
	In
	Local
	Nil
	Not
	Or
	Repeat
	Return
	Then
	True
	Until
	While

	// punctuation
	Plus
	Sub
	Star
	Div
	Idiv
	Percent
	Caret
	Hash
	Amp
	Tilde
	BitXor
	Pipe
	ShiftL
	ShiftR
	Equal
	NotEq
	LesEq
	GreEq
	Less
	Greater
	Assign
	ParL
	ParR
	CurlyL
	CurlyR
	SqrL
	SqrR
	DoubColon
	Semi
	Colon
	Comma
	Dot
	Concat
	Dots
)

var names = map[Type]string{
	Eos:     "<eos>",
	Ident:   "<name>",
	String:  "<string>",
	Integer: "<integer>",
	Float:   "<float>",

	And: "and", Break: "break", Do: "do", Else: "else", ElseIf: "elseif",
	End: "end", False: "false", For: "for", Function: "function",
	Goto: "goto", If: "if", In: "in", Local: "local", Nil: "nil",
	Not: "not", Or: "or", Repeat: "repeat", Return: "return", Then: "then",
	True: "true", Until: "until", While: "while",

	Plus: "+", Sub: "-", Star: "*", Div: "/", Idiv: "//", Percent: "%",
	Caret: "^", Hash: "#", Amp: "&", Tilde: "~", BitXor: "~", Pipe: "|",
	ShiftL: "<<", ShiftR: ">>", Equal: "==", NotEq: "~=", LesEq: "<=",
	GreEq: ">=", Less: "<", Greater: ">", Assign: "=", ParL: "(", ParR: ")",
	CurlyL: "{", CurlyR: "}", SqrL: "[", SqrR: "]", DoubColon: "::",
	Semi: ";", Colon: ":", Comma: ",", Dot: ".", Concat: "..", Dots: "...",
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Keywords maps reserved identifiers to their Type.
var Keywords = map[string]Type{
	"and": And, "break": Break, "do": Do, "else": Else, "elseif": ElseIf,
	"end": End, "false": False, "for": For, "function": Function,
	"goto": Goto, "if": If, "in": In, "local": Local, "nil": Nil,
	"not": Not, "or": Or, "repeat": Repeat, "return": Return, "then": Then,
	"true": True, "until": Until, "while": While,
}

// Token is one lexeme: its type, a string literal ("name"/raw string bytes)
// or numeric payload, and its source position.
type Token struct {
	Type   Type
	Str    string  // Ident name or decoded string-literal bytes
	Int    int64   // Integer payload
	Float  float64 // Float payload
	Line   int
	Column int
}

func (t Token) String() string {
	switch t.Type {
	case Ident:
		return fmt.Sprintf("Ident(%s)", t.Str)
	case String:
		return fmt.Sprintf("String(%q)", t.Str)
	case Integer:
		return fmt.Sprintf("Integer(%d)", t.Int)
	case Float:
		return fmt.Sprintf("Float(%g)", t.Float)
	default:
		return t.Type.String()
	}
}
