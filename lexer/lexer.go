// Package lexer implements the streaming tokenizer: bytes in, tokens out,
// with a one-byte peek buffer and a one-token lookahead buffer.
package lexer

import (
	"bufio"
	"io"
	"strings"

	"github.com/lookbusy1344/lua-vm/ferr"
	"github.com/lookbusy1344/lua-vm/token"
)

// Lexer tokenizes a byte stream. It is not safe for concurrent use; it owns
// its peek/ahead buffers exclusively.
type Lexer struct {
	r        *bufio.Reader
	filename string
	line     int
	column   int

	hasByte bool
	byte    byte

	ahead    *token.Token
	hasAhead bool
}

// New constructs a Lexer reading from r, reporting filename in error
// positions.
func New(r io.Reader, filename string) *Lexer {
	return &Lexer{
		r:        bufio.NewReader(r),
		filename: filename,
		line:     1,
		column:   0,
	}
}

func (l *Lexer) pos() ferr.Position {
	return ferr.Position{Filename: l.filename, Line: l.line, Column: l.column}
}

func (l *Lexer) errf(format string, args ...any) *ferr.Error {
	return ferr.Newf(l.pos(), ferr.Lex, format, args...)
}

// readByte returns the next raw byte, consuming it.
func (l *Lexer) readByte() (byte, bool, error) {
	if l.hasByte {
		l.hasByte = false
		b := l.byte
		l.advance(b)
		return b, true, nil
	}
	b, err := l.r.ReadByte()
	if err == io.EOF {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	l.advance(b)
	return b, true, nil
}

func (l *Lexer) advance(b byte) {
	if b == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

// peekByte returns the next byte without consuming it.
func (l *Lexer) peekByte() (byte, bool, error) {
	if l.hasByte {
		return l.byte, true, nil
	}
	b, err := l.r.ReadByte()
	if err == io.EOF {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	l.hasByte = true
	l.byte = b
	return b, true, nil
}

// Peek lazily computes and caches the next token without consuming it.
func (l *Lexer) Peek() (token.Token, error) {
	if l.hasAhead {
		return *l.ahead, nil
	}
	t, err := l.scan()
	if err != nil {
		return token.Token{}, err
	}
	l.ahead = &t
	l.hasAhead = true
	return t, nil
}

// Next returns the cached token if present, else reads fresh.
func (l *Lexer) Next() (token.Token, error) {
	if l.hasAhead {
		l.hasAhead = false
		t := *l.ahead
		l.ahead = nil
		return t, nil
	}
	return l.scan()
}

// Expect consumes the next token and fails if its type is not tt.
func (l *Lexer) Expect(tt token.Type) (token.Token, error) {
	t, err := l.Next()
	if err != nil {
		return token.Token{}, err
	}
	if t.Type != tt {
		return token.Token{}, l.errf("expected %s, got %s", tt, t)
	}
	return t, nil
}

func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool  { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isAlnum(b byte) bool  { return isAlpha(b) || isDigit(b) }

func (l *Lexer) scan() (token.Token, error) {
	for {
		b, ok, err := l.peekByte()
		if err != nil {
			return token.Token{}, ferr.Wrap(l.pos(), ferr.IO, err)
		}
		if !ok {
			return token.Token{Type: token.Eos, Line: l.line, Column: l.column}, nil
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			l.readByte()
			continue
		case '-':
			l.readByte()
			b2, ok2, err := l.peekByte()
			if err != nil {
				return token.Token{}, ferr.Wrap(l.pos(), ferr.IO, err)
			}
			if ok2 && b2 == '-' {
				l.readByte()
				if err := l.skipLineComment(); err != nil {
					return token.Token{}, err
				}
				continue
			}
			return l.tok(token.Sub), nil
		default:
			return l.scanToken(b)
		}
	}
}

func (l *Lexer) skipLineComment() error {
	for {
		b, ok, err := l.readByte()
		if err != nil {
			return ferr.Wrap(l.pos(), ferr.IO, err)
		}
		if !ok || b == '\n' {
			return nil
		}
	}
}

func (l *Lexer) tok(tt token.Type) token.Token {
	return token.Token{Type: tt, Line: l.line, Column: l.column}
}

func (l *Lexer) scanToken(b byte) (token.Token, error) {
	line, col := l.line, l.column
	mk := func(tt token.Type) token.Token {
		return token.Token{Type: tt, Line: line, Column: col}
	}

	switch {
	case isAlpha(b):
		return l.scanIdent()
	case isDigit(b):
		return l.scanNumber()
	case b == '\'' || b == '"':
		return l.scanString(b)
	}

	l.readByte()
	switch b {
	case '+':
		return mk(token.Plus), nil
	case '*':
		return mk(token.Star), nil
	case '%':
		return mk(token.Percent), nil
	case '^':
		return mk(token.Caret), nil
	case '#':
		return mk(token.Hash), nil
	case '&':
		return mk(token.Amp), nil
	case '|':
		return mk(token.Pipe), nil
	case '(':
		return mk(token.ParL), nil
	case ')':
		return mk(token.ParR), nil
	case '{':
		return mk(token.CurlyL), nil
	case '}':
		return mk(token.CurlyR), nil
	case '[':
		return mk(token.SqrL), nil
	case ']':
		return mk(token.SqrR), nil
	case ';':
		return mk(token.Semi), nil
	case ',':
		return mk(token.Comma), nil
	case '/':
		if l.peekIs('/') {
			l.readByte()
			return mk(token.Idiv), nil
		}
		return mk(token.Div), nil
	case '=':
		if l.peekIs('=') {
			l.readByte()
			return mk(token.Equal), nil
		}
		return mk(token.Assign), nil
	case '~':
		if l.peekIs('=') {
			l.readByte()
			return mk(token.NotEq), nil
		}
		return mk(token.BitXor), nil
	case ':':
		if l.peekIs(':') {
			l.readByte()
			return mk(token.DoubColon), nil
		}
		return mk(token.Colon), nil
	case '<':
		if l.peekIs('=') {
			l.readByte()
			return mk(token.LesEq), nil
		}
		if l.peekIs('<') {
			l.readByte()
			return mk(token.ShiftL), nil
		}
		return mk(token.Less), nil
	case '>':
		if l.peekIs('=') {
			l.readByte()
			return mk(token.GreEq), nil
		}
		if l.peekIs('>') {
			l.readByte()
			return mk(token.ShiftR), nil
		}
		return mk(token.Greater), nil
	case '.':
		if l.peekIs('.') {
			l.readByte()
			if l.peekIs('.') {
				l.readByte()
				return mk(token.Dots), nil
			}
			return mk(token.Concat), nil
		}
		if nb, ok, _ := l.peekByte(); ok && isDigit(nb) {
			return l.scanFractionFromDot(line, col)
		}
		return mk(token.Dot), nil
	}
	return token.Token{}, l.errf("unexpected character %q", b)
}

func (l *Lexer) peekIs(want byte) bool {
	b, ok, err := l.peekByte()
	return err == nil && ok && b == want
}

func (l *Lexer) scanIdent() (token.Token, error) {
	line, col := l.line, l.column
	var sb strings.Builder
	for {
		b, ok, err := l.peekByte()
		if err != nil {
			return token.Token{}, ferr.Wrap(l.pos(), ferr.IO, err)
		}
		if !ok || !isAlnum(b) {
			break
		}
		l.readByte()
		sb.WriteByte(b)
	}
	name := sb.String()
	if kw, ok := token.Keywords[name]; ok {
		return token.Token{Type: kw, Line: line, Column: col}, nil
	}
	return token.Token{Type: token.Ident, Str: name, Line: line, Column: col}, nil
}

func (l *Lexer) scanString(quote byte) (token.Token, error) {
	line, col := l.line, l.column
	l.readByte() // opening quote
	var buf []byte
	for {
		b, ok, err := l.readByte()
		if err != nil {
			return token.Token{}, ferr.Wrap(l.pos(), ferr.IO, err)
		}
		if !ok {
			return token.Token{}, l.errf("unterminated string")
		}
		if b == quote {
			return token.Token{Type: token.String, Str: string(buf), Line: line, Column: col}, nil
		}
		if b == '\n' {
			return token.Token{}, l.errf("unterminated string: literal newline")
		}
		if b != '\\' {
			buf = append(buf, b)
			continue
		}
		eb, err := l.scanEscape()
		if err != nil {
			return token.Token{}, err
		}
		buf = append(buf, eb)
	}
}

func (l *Lexer) scanEscape() (byte, error) {
	b, ok, err := l.readByte()
	if err != nil {
		return 0, ferr.Wrap(l.pos(), ferr.IO, err)
	}
	if !ok {
		return 0, l.errf("unterminated escape sequence")
	}
	switch b {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case 'b':
		return 0x08, nil
	case 'f':
		return 0x0C, nil
	case 'a':
		return 0x07, nil
	case 'v':
		return 0x0B, nil
	case '\\', '"', '\'':
		return b, nil
	case 'x':
		return l.scanHexEscape()
	default:
		if isDigit(b) {
			return l.scanDecimalEscape(b)
		}
		return b, nil
	}
}

func (l *Lexer) scanHexEscape() (byte, error) {
	var v int
	for i := 0; i < 2; i++ {
		b, ok, err := l.readByte()
		if err != nil {
			return 0, ferr.Wrap(l.pos(), ferr.IO, err)
		}
		if !ok {
			return 0, l.errf("incomplete \\x escape")
		}
		d, ok := hexDigit(b)
		if !ok {
			return 0, l.errf("invalid hex digit %q in \\x escape", b)
		}
		v = v*16 + d
	}
	return byte(v), nil
}

func hexDigit(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	default:
		return 0, false
	}
}

func (l *Lexer) scanDecimalEscape(first byte) (byte, error) {
	v := int(first - '0')
	for i := 0; i < 2; i++ {
		b, ok, err := l.peekByte()
		if err != nil {
			return 0, ferr.Wrap(l.pos(), ferr.IO, err)
		}
		if !ok || !isDigit(b) {
			break
		}
		l.readByte()
		v = v*10 + int(b-'0')
	}
	if v > 255 {
		return 0, l.errf("decimal escape \\%d out of range (must be <= 255)", v)
	}
	return byte(v), nil
}

func (l *Lexer) scanNumber() (token.Token, error) {
	line, col := l.line, l.column
	var intPart int64
	for {
		b, ok, err := l.peekByte()
		if err != nil {
			return token.Token{}, ferr.Wrap(l.pos(), ferr.IO, err)
		}
		if !ok || !isDigit(b) {
			break
		}
		l.readByte()
		intPart = intPart*10 + int64(b-'0')
	}

	if b, ok, _ := l.peekByte(); ok && (b == 'x' || b == 'X') && intPart == 0 {
		return token.Token{}, l.errf("hexadecimal number literals are not implemented")
	}
	if b, ok, _ := l.peekByte(); ok && b == '.' {
		l.readByte()
		return l.scanFraction(line, col, float64(intPart))
	}
	if b, ok, _ := l.peekByte(); ok && (b == 'e' || b == 'E') {
		return token.Token{}, l.errf("exponent number literals are not implemented")
	}
	if b, ok, _ := l.peekByte(); ok && isAlpha(b) {
		return token.Token{}, l.errf("malformed number: unexpected letter after integer literal")
	}
	return token.Token{Type: token.Integer, Int: intPart, Line: line, Column: col}, nil
}

// scanFractionFromDot handles a number literal that starts with '.', as in ".5".
func (l *Lexer) scanFractionFromDot(line, col int) (token.Token, error) {
	return l.scanFraction(line, col, 0)
}

func (l *Lexer) scanFraction(line, col int, whole float64) (token.Token, error) {
	frac := 0.0
	scale := 1.0
	for {
		b, ok, err := l.peekByte()
		if err != nil {
			return token.Token{}, ferr.Wrap(l.pos(), ferr.IO, err)
		}
		if !ok || !isDigit(b) {
			break
		}
		l.readByte()
		scale *= 10
		frac = frac*10 + float64(b-'0')
	}
	if b, ok, _ := l.peekByte(); ok && (b == 'e' || b == 'E') {
		return token.Token{}, l.errf("exponent number literals are not implemented")
	}
	if b, ok, _ := l.peekByte(); ok && (isAlpha(b) || b == '.') {
		return token.Token{}, l.errf("malformed number: unexpected %q after float literal", b)
	}
	return token.Token{Type: token.Float, Float: whole + frac/scale, Line: line, Column: col}, nil
}

// Filename returns the name this lexer reports in error positions.
func (l *Lexer) Filename() string { return l.filename }
