// Package compiler implements the single-pass recursive-descent parser and
// code generator. It consumes tokens from a lexer and emits register-based
// bytecode into a ParseProto, deferring value materialization through an
// expression descriptor so constant-fused opcode forms can be selected at
// assignment sites.
package compiler

import (
	"math"

	"github.com/lookbusy1344/lua-vm/ferr"
	"github.com/lookbusy1344/lua-vm/lexer"
	"github.com/lookbusy1344/lua-vm/token"
	"github.com/lookbusy1344/lua-vm/value"
)

// setListFlushThreshold is the number of pending array entries that forces
// a SetList flush inside a table constructor.
const setListFlushThreshold = 50

// expKind tags the active case of an expression descriptor.
type expKind int

const (
	expNil expKind = iota
	expBool
	expInt
	expFloat
	expStr
	expLocal      // value lives at stack index t
	expGlobal     // value is the global named by constants[k]
	expIndex      // stack[t][stack[k]]
	expIndexField // stack[t][constants[k]], constant is a string
	expIndexInt   // stack[t][k], k a small integer
	expCall       // a call whose result is already on the stack
)

// expDesc is the symbolic description of a value the parser carries between
// parse and discharge points. No bytecode is emitted until a descriptor is
// committed to a register or routed through the const/stack fork.
type expDesc struct {
	kind expKind
	b    bool
	i    int64
	f    float64
	s    string
	t    int // register of the table / local
	k    int // key: register, constant index, or small integer
}

// ParseProto is the compiled unit: the deduplicated constant pool and the
// opcode stream. Locals is the final local-variable name list, exported for
// tooling (the debugger resolves local names to registers through it);
// execution never consults it.
type ParseProto struct {
	Constants []value.Value
	Bytecodes []Bytecode
	Locals    []string

	sp int
	lx *lexer.Lexer
}

// Load drives the parse to completion, returning the compiled prototype.
func Load(lx *lexer.Lexer) (*ParseProto, error) {
	p := &ParseProto{lx: lx}
	if err := p.chunk(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ParseProto) errAt(t token.Token, format string, args ...any) error {
	pos := ferr.Position{Filename: p.lx.Filename(), Line: t.Line, Column: t.Column}
	return ferr.Newf(pos, ferr.Parse, format, args...)
}

// expect consumes the next token and fails unless it has type tt.
func (p *ParseProto) expect(tt token.Type) (token.Token, error) {
	t, err := p.lx.Next()
	if err != nil {
		return token.Token{}, err
	}
	if t.Type != tt {
		return token.Token{}, p.errAt(t, "expected %s, got %s", tt, t)
	}
	return t, nil
}

func (p *ParseProto) chunk() error {
	return p.block()
}

// block parses statements until end of stream. A bare nil token is not a
// statement and is rejected.
func (p *ParseProto) block() error {
	for {
		// Statement scratch registers sit above the locals; reclaim them
		// between statements.
		p.sp = len(p.Locals)

		t, err := p.lx.Next()
		if err != nil {
			return err
		}
		switch t.Type {
		case token.Semi:
			continue
		case token.Ident, token.ParL:
			desc, err := p.prefixexp(t)
			if err != nil {
				return err
			}
			if desc.kind == expCall {
				continue
			}
			if err := p.assignment(desc); err != nil {
				return err
			}
		case token.Local:
			if err := p.local(); err != nil {
				return err
			}
		case token.Eos:
			return nil
		default:
			return p.errAt(t, "unexpected token %s", t)
		}
	}
}

// local parses `local name {, name} [= exp {, exp}]`. The names become
// visible only after the expressions are discharged, so the right-hand side
// cannot reference them.
func (p *ParseProto) local() error {
	var vars []string
	nexp := 0
	for {
		name, err := p.readName()
		if err != nil {
			return err
		}
		vars = append(vars, name)

		t, err := p.lx.Peek()
		if err != nil {
			return err
		}
		if t.Type == token.Comma {
			if _, err := p.lx.Next(); err != nil {
				return err
			}
			continue
		}
		if t.Type == token.Assign {
			if _, err := p.lx.Next(); err != nil {
				return err
			}
			nexp, err = p.explist()
			if err != nil {
				return err
			}
		}
		break
	}

	if nexp < len(vars) {
		ivar := len(p.Locals) + nexp
		nnil := len(vars) - nexp
		p.Bytecodes = append(p.Bytecodes, AB(OpLoadNil, ivar, nnil))
		p.sp = ivar + nnil
	}

	p.Locals = append(p.Locals, vars...)
	return nil
}

// assignment parses the remainder of `var {, var} = exp {, exp}` given the
// already-parsed first target.
func (p *ParseProto) assignment(firstVar expDesc) error {
	vars := []expDesc{firstVar}
	for {
		t, err := p.lx.Next()
		if err != nil {
			return err
		}
		switch t.Type {
		case token.Comma:
			nt, err := p.lx.Next()
			if err != nil {
				return err
			}
			desc, err := p.prefixexp(nt)
			if err != nil {
				return err
			}
			if !assignable(desc) {
				return p.errAt(nt, "cannot assign to this expression")
			}
			vars = append(vars, desc)
			continue
		case token.Assign:
		default:
			return p.errAt(t, "unexpected token %s in assignment", t)
		}
		break
	}
	if !assignable(firstVar) {
		return p.errAt(token.Token{Type: token.Assign}, "cannot assign to this expression")
	}

	expSp0 := p.sp
	nfexp := 0
	var lastExp expDesc
	for {
		desc, err := p.exp()
		if err != nil {
			return err
		}
		t, err := p.lx.Peek()
		if err != nil {
			return err
		}
		if t.Type == token.Comma {
			if _, err := p.lx.Next(); err != nil {
				return err
			}
			if err := p.discharge(expSp0+nfexp, desc); err != nil {
				return err
			}
			nfexp++
			continue
		}
		lastExp = desc
		break
	}

	switch {
	case nfexp+1 < len(vars):
		t, _ := p.lx.Peek()
		return p.errAt(t, "fewer expressions than assignment targets is not implemented")
	case nfexp+1 == len(vars):
		lastVar := vars[len(vars)-1]
		vars = vars[:len(vars)-1]
		if err := p.assignVar(lastVar, lastExp); err != nil {
			return err
		}
	default:
		nfexp = len(vars)
	}

	for len(vars) > 0 {
		v := vars[len(vars)-1]
		vars = vars[:len(vars)-1]
		nfexp--
		if err := p.assignFromStack(v, expSp0+nfexp); err != nil {
			return err
		}
	}
	return nil
}

func assignable(d expDesc) bool {
	switch d.kind {
	case expLocal, expGlobal, expIndex, expIndexField, expIndexInt:
		return true
	default:
		return false
	}
}

// assignVar writes an expression into a target. Locals discharge in place;
// everything else routes through the const/stack fork so literal sources
// fuse into the *Const opcode forms.
func (p *ParseProto) assignVar(v expDesc, val expDesc) error {
	if v.kind == expLocal {
		return p.discharge(v.t, val)
	}
	isConst, idx, err := p.dischargeConst(val)
	if err != nil {
		return err
	}
	if isConst {
		return p.assignFromConst(v, idx)
	}
	return p.assignFromStack(v, idx)
}

func (p *ParseProto) assignFromStack(v expDesc, src int) error {
	var bc Bytecode
	switch v.kind {
	case expLocal:
		bc = AB(OpMove, v.t, src)
	case expGlobal:
		bc = AB(OpSetGlobal, v.k, src)
	case expIndex:
		bc = ABC(OpSetTable, v.t, v.k, src)
	case expIndexField:
		bc = ABC(OpSetField, v.t, v.k, src)
	case expIndexInt:
		bc = ABC(OpSetInt, v.t, v.k, src)
	default:
		t, _ := p.lx.Peek()
		return p.errAt(t, "cannot assign to this expression")
	}
	p.Bytecodes = append(p.Bytecodes, bc)
	return nil
}

func (p *ParseProto) assignFromConst(v expDesc, src int) error {
	var bc Bytecode
	switch v.kind {
	case expGlobal:
		bc = AB(OpSetGlobalConst, v.k, src)
	case expIndex:
		bc = ABC(OpSetTableConst, v.t, v.k, src)
	case expIndexField:
		bc = ABC(OpSetFieldConst, v.t, v.k, src)
	case expIndexInt:
		bc = ABC(OpSetIntConst, v.t, v.k, src)
	default:
		t, _ := p.lx.Peek()
		return p.errAt(t, "cannot assign to this expression")
	}
	p.Bytecodes = append(p.Bytecodes, bc)
	return nil
}

// addConst appends v to the constant pool, deduplicating by equality, and
// returns its index.
func (p *ParseProto) addConst(v value.Value) int {
	for i, c := range p.Constants {
		if c.Eq(v) {
			return i
		}
	}
	p.Constants = append(p.Constants, v)
	return len(p.Constants) - 1
}

// explist parses one or more comma-separated expressions, discharging each
// to consecutive registers from the current stack top. Returns the count.
func (p *ParseProto) explist() (int, error) {
	n := 0
	sp0 := p.sp
	for {
		desc, err := p.exp()
		if err != nil {
			return 0, err
		}
		if err := p.discharge(sp0+n, desc); err != nil {
			return 0, err
		}
		n++
		t, err := p.lx.Peek()
		if err != nil {
			return 0, err
		}
		if t.Type != token.Comma {
			return n, nil
		}
		if _, err := p.lx.Next(); err != nil {
			return 0, err
		}
	}
}

func (p *ParseProto) exp() (expDesc, error) {
	t, err := p.lx.Next()
	if err != nil {
		return expDesc{}, err
	}
	return p.expWithAhead(t)
}

func (p *ParseProto) expWithAhead(t token.Token) (expDesc, error) {
	switch t.Type {
	case token.Nil:
		return expDesc{kind: expNil}, nil
	case token.True:
		return expDesc{kind: expBool, b: true}, nil
	case token.False:
		return expDesc{kind: expBool, b: false}, nil
	case token.Integer:
		return expDesc{kind: expInt, i: t.Int}, nil
	case token.Float:
		return expDesc{kind: expFloat, f: t.Float}, nil
	case token.String:
		return expDesc{kind: expStr, s: t.Str}, nil
	case token.Function:
		return expDesc{}, p.errAt(t, "function expressions are not implemented")
	case token.CurlyL:
		return p.tableConstructor()
	case token.Sub, token.Not, token.BitXor, token.Hash:
		return expDesc{}, p.errAt(t, "unary operators are not implemented")
	case token.Dots:
		return expDesc{}, p.errAt(t, "varargs are not implemented")
	default:
		return p.prefixexp(t)
	}
}

// prefixexp parses a name or parenthesized expression followed by any
// number of index/call suffixes.
func (p *ParseProto) prefixexp(t token.Token) (expDesc, error) {
	sp0 := p.sp

	var desc expDesc
	switch t.Type {
	case token.Ident:
		desc = p.simpleName(t.Str)
	case token.ParL:
		var err error
		desc, err = p.exp()
		if err != nil {
			return expDesc{}, err
		}
		if _, err := p.expect(token.ParR); err != nil {
			return expDesc{}, err
		}
	default:
		return expDesc{}, p.errAt(t, "unexpected token %s", t)
	}

	for {
		nt, err := p.lx.Peek()
		if err != nil {
			return expDesc{}, err
		}
		switch nt.Type {
		case token.SqrL:
			if _, err := p.lx.Next(); err != nil {
				return expDesc{}, err
			}
			itable, err := p.dischargeIfNeed(sp0, desc)
			if err != nil {
				return expDesc{}, err
			}
			key, err := p.exp()
			if err != nil {
				return expDesc{}, err
			}
			switch {
			case key.kind == expStr:
				desc = expDesc{kind: expIndexField, t: itable, k: p.addConst(value.NewString(key.s))}
			case key.kind == expInt && key.i >= 0 && key.i <= math.MaxUint8:
				desc = expDesc{kind: expIndexInt, t: itable, k: int(key.i)}
			default:
				ikey, err := p.dischargeTop(key)
				if err != nil {
					return expDesc{}, err
				}
				desc = expDesc{kind: expIndex, t: itable, k: ikey}
			}
			if _, err := p.expect(token.SqrR); err != nil {
				return expDesc{}, err
			}
		case token.Dot:
			if _, err := p.lx.Next(); err != nil {
				return expDesc{}, err
			}
			name, err := p.readName()
			if err != nil {
				return expDesc{}, err
			}
			itable, err := p.dischargeIfNeed(sp0, desc)
			if err != nil {
				return expDesc{}, err
			}
			desc = expDesc{kind: expIndexField, t: itable, k: p.addConst(value.NewString(name))}
		case token.Colon:
			return expDesc{}, p.errAt(nt, "method calls are not implemented")
		case token.ParL, token.CurlyL, token.String:
			if err := p.discharge(sp0, desc); err != nil {
				return expDesc{}, err
			}
			desc, err = p.args()
			if err != nil {
				return expDesc{}, err
			}
		default:
			return desc, nil
		}
	}
}

// simpleName resolves a name against the locals (innermost shadow wins by
// reverse search), falling back to a global.
func (p *ParseProto) simpleName(name string) expDesc {
	for i := len(p.Locals) - 1; i >= 0; i-- {
		if p.Locals[i] == name {
			return expDesc{kind: expLocal, t: i}
		}
	}
	return expDesc{kind: expGlobal, k: p.addConst(value.NewString(name))}
}

// args parses a call's argument list — parenthesized explist, a single
// table constructor, or a single string literal — and emits the Call.
func (p *ParseProto) args() (expDesc, error) {
	ifunc := p.sp - 1
	t, err := p.lx.Next()
	if err != nil {
		return expDesc{}, err
	}
	argn := 0
	switch t.Type {
	case token.ParL:
		nt, err := p.lx.Peek()
		if err != nil {
			return expDesc{}, err
		}
		if nt.Type != token.ParR {
			argn, err = p.explist()
			if err != nil {
				return expDesc{}, err
			}
			if _, err := p.expect(token.ParR); err != nil {
				return expDesc{}, err
			}
		} else {
			if _, err := p.lx.Next(); err != nil {
				return expDesc{}, err
			}
		}
	case token.CurlyL:
		if _, err := p.tableConstructor(); err != nil {
			return expDesc{}, err
		}
		argn = 1
	case token.String:
		if err := p.discharge(ifunc+1, expDesc{kind: expStr, s: t.Str}); err != nil {
			return expDesc{}, err
		}
		argn = 1
	default:
		return expDesc{}, p.errAt(t, "unexpected token %s in call arguments", t)
	}
	p.Bytecodes = append(p.Bytecodes, AB(OpCall, ifunc, argn))
	return expDesc{kind: expCall}, nil
}

// dischargeTop commits a descriptor to the current stack top, returning the
// register it ends up in (locals stay where they are).
func (p *ParseProto) dischargeTop(desc expDesc) (int, error) {
	return p.dischargeIfNeed(p.sp, desc)
}

func (p *ParseProto) dischargeIfNeed(dst int, desc expDesc) (int, error) {
	if desc.kind == expLocal {
		return desc.t, nil
	}
	if err := p.discharge(dst, desc); err != nil {
		return 0, err
	}
	return dst, nil
}

// discharge commits a descriptor to register dst, emitting the load opcode
// that materializes it. Discharging a local onto itself emits nothing.
func (p *ParseProto) discharge(dst int, desc expDesc) error {
	if dst > math.MaxUint8 {
		t, _ := p.lx.Peek()
		return p.errAt(t, "too many registers")
	}
	var bc Bytecode
	switch desc.kind {
	case expNil:
		bc = AB(OpLoadNil, dst, 1)
	case expBool:
		b := 0
		if desc.b {
			b = 1
		}
		bc = AB(OpLoadBool, dst, b)
	case expInt:
		if desc.i >= math.MinInt16 && desc.i <= math.MaxInt16 {
			bc = AB(OpLoadInt, dst, int(desc.i))
		} else {
			bc = AB(OpLoadConst, dst, p.addConst(value.NewInteger(desc.i)))
		}
	case expFloat:
		bc = AB(OpLoadConst, dst, p.addConst(value.NewFloat(desc.f)))
	case expStr:
		bc = AB(OpLoadConst, dst, p.addConst(value.NewString(desc.s)))
	case expLocal:
		if dst == desc.t {
			return nil
		}
		bc = AB(OpMove, dst, desc.t)
	case expGlobal:
		bc = AB(OpGetGlobal, dst, desc.k)
	case expIndex:
		bc = ABC(OpGetTable, dst, desc.t, desc.k)
	case expIndexField:
		bc = ABC(OpGetField, dst, desc.t, desc.k)
	case expIndexInt:
		bc = ABC(OpGetInt, dst, desc.t, desc.k)
	default:
		t, _ := p.lx.Peek()
		return p.errAt(t, "cannot use a function call here")
	}
	p.Bytecodes = append(p.Bytecodes, bc)
	p.sp = dst + 1
	return nil
}

// dischargeConst routes a descriptor through the const/stack fork: literal
// descriptors become constant-pool indices, everything else is discharged
// to the stack top.
func (p *ParseProto) dischargeConst(desc expDesc) (isConst bool, idx int, err error) {
	switch desc.kind {
	case expNil:
		return true, p.addConst(value.Nil), nil
	case expBool:
		return true, p.addConst(value.NewBool(desc.b)), nil
	case expInt:
		return true, p.addConst(value.NewInteger(desc.i)), nil
	case expFloat:
		return true, p.addConst(value.NewFloat(desc.f)), nil
	case expStr:
		return true, p.addConst(value.NewString(desc.s)), nil
	default:
		i, err := p.dischargeTop(desc)
		return false, i, err
	}
}

// tableConstructor parses `{ ... }`. Array entries accumulate on the stack
// and flush through SetList every setListFlushThreshold entries plus a
// final tail flush; map entries emit their keyed write immediately and give
// their scratch registers back.
func (p *ParseProto) tableConstructor() (expDesc, error) {
	table := p.sp
	p.sp++

	inew := len(p.Bytecodes)
	p.Bytecodes = append(p.Bytecodes, ABC(OpNewTable, table, 0, 0))

	stored, narray, nmap := 0, 0, 0
	for {
		sp0 := p.sp

		t, err := p.lx.Peek()
		if err != nil {
			return expDesc{}, err
		}
		if t.Type == token.CurlyR {
			if _, err := p.lx.Next(); err != nil {
				return expDesc{}, err
			}
			return p.finishTable(inew, table, stored, narray, nmap), nil
		}

		// isMap is set when the entry is keyed; op/opConst/key carry the
		// chosen write family. Otherwise val holds an array entry.
		var isMap bool
		var op, opConst Op
		var key int
		var val expDesc

		switch t.Type {
		case token.CurlyL:
			if _, err := p.lx.Next(); err != nil {
				return expDesc{}, err
			}
			val, err = p.tableConstructor()
			if err != nil {
				return expDesc{}, err
			}
		case token.SqrL:
			if _, err := p.lx.Next(); err != nil {
				return expDesc{}, err
			}
			k, err := p.exp()
			if err != nil {
				return expDesc{}, err
			}
			if _, err := p.expect(token.SqrR); err != nil {
				return expDesc{}, err
			}
			if _, err := p.expect(token.Assign); err != nil {
				return expDesc{}, err
			}
			isMap = true
			switch {
			case k.kind == expLocal:
				op, opConst, key = OpSetTable, OpSetTableConst, k.t
			case k.kind == expStr:
				op, opConst, key = OpSetField, OpSetFieldConst, p.addConst(value.NewString(k.s))
			case k.kind == expInt && k.i >= 0 && k.i <= math.MaxUint8:
				op, opConst, key = OpSetInt, OpSetIntConst, int(k.i)
			case k.kind == expNil:
				return expDesc{}, p.errAt(t, "nil can not be table key")
			case k.kind == expFloat && math.IsNaN(k.f):
				return expDesc{}, p.errAt(t, "NaN can not be table key")
			default:
				ikey, err := p.dischargeTop(k)
				if err != nil {
					return expDesc{}, err
				}
				op, opConst, key = OpSetTable, OpSetTableConst, ikey
			}
		case token.Ident:
			name, err := p.readName()
			if err != nil {
				return expDesc{}, err
			}
			nt, err := p.lx.Peek()
			if err != nil {
				return expDesc{}, err
			}
			if nt.Type == token.Assign {
				if _, err := p.lx.Next(); err != nil {
					return expDesc{}, err
				}
				isMap = true
				op, opConst, key = OpSetField, OpSetFieldConst, p.addConst(value.NewString(name))
			} else {
				val, err = p.expWithAhead(token.Token{Type: token.Ident, Str: name, Line: t.Line, Column: t.Column})
				if err != nil {
					return expDesc{}, err
				}
			}
		default:
			val, err = p.exp()
			if err != nil {
				return expDesc{}, err
			}
		}

		if isMap {
			v, err := p.exp()
			if err != nil {
				return expDesc{}, err
			}
			isConst, iv, err := p.dischargeConst(v)
			if err != nil {
				return expDesc{}, err
			}
			if isConst {
				p.Bytecodes = append(p.Bytecodes, ABC(opConst, table, key, iv))
			} else {
				p.Bytecodes = append(p.Bytecodes, ABC(op, table, key, iv))
			}
			nmap++
			p.sp = sp0
		} else {
			if err := p.discharge(sp0, val); err != nil {
				return expDesc{}, err
			}
			narray++
			if p.sp-(table+1) == setListFlushThreshold {
				p.Bytecodes = append(p.Bytecodes, ABC(OpSetList, table, setListFlushThreshold, stored))
				stored += setListFlushThreshold
				p.sp = table + 1
			}
		}

		sep, err := p.lx.Next()
		if err != nil {
			return expDesc{}, err
		}
		switch sep.Type {
		case token.Semi, token.Comma:
		case token.CurlyR:
			return p.finishTable(inew, table, stored, narray, nmap), nil
		default:
			return expDesc{}, p.errAt(sep, "unexpected token %s in table constructor", sep)
		}
	}
}

// finishTable emits the tail SetList for any pending array entries, patches
// the placeholder NewTable with the final element counts, and hands back
// the register holding the table.
func (p *ParseProto) finishTable(inew, table, stored, narray, nmap int) expDesc {
	if p.sp > table+1 {
		p.Bytecodes = append(p.Bytecodes, ABC(OpSetList, table, p.sp-(table+1), stored))
	}
	p.Bytecodes[inew] = ABC(OpNewTable, table, clampU8(narray), clampU8(nmap))
	p.sp = table + 1
	return expDesc{kind: expLocal, t: table}
}

func clampU8(n int) int {
	if n > math.MaxUint8 {
		return math.MaxUint8
	}
	return n
}

// readName consumes an identifier token and returns its name.
func (p *ParseProto) readName() (string, error) {
	t, err := p.lx.Next()
	if err != nil {
		return "", err
	}
	if t.Type != token.Ident {
		return "", p.errAt(t, "expected name, got %s", t)
	}
	return t.Str, nil
}
