// Package bytecode serializes a compiled ParseProto to a compact binary
// image and reads it back, so a program can be executed without re-lexing
// and re-parsing its source. The format is length-prefixed throughout:
// header, constant pool, local-name list, opcode stream.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/lookbusy1344/lua-vm/compiler"
	"github.com/lookbusy1344/lua-vm/value"
)

// Magic identifies a bytecode image file.
var Magic = [4]byte{'L', 'V', 'B', 'C'}

// Version is the image format version.
const Version uint16 = 1

// Constant tags in the image's constant pool.
const (
	tagNil     = 0
	tagBoolean = 1
	tagInteger = 2
	tagFloat   = 3
	tagString  = 4
)

// Operand width classes. Every operand is a u8 except LoadConst's constant
// index (u16) and LoadInt's immediate (i16).
func operandRangeOK(op compiler.Op, slot int, v int) bool {
	if op == compiler.OpLoadConst && slot == 1 {
		return v >= 0 && v <= math.MaxUint16
	}
	if op == compiler.OpLoadInt && slot == 1 {
		return v >= math.MinInt16 && v <= math.MaxInt16
	}
	return v >= 0 && v <= math.MaxUint8
}

// Encode serializes proto. Only Nil, Boolean, Integer, Float and string
// constants are representable; the parser never produces anything else.
func Encode(proto *compiler.ParseProto) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	binary.Write(&buf, binary.LittleEndian, Version)

	binary.Write(&buf, binary.LittleEndian, uint32(len(proto.Constants)))
	for i, c := range proto.Constants {
		if err := encodeConstant(&buf, c); err != nil {
			return nil, WrapImageError("constants", i, err)
		}
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(proto.Locals)))
	for _, name := range proto.Locals {
		binary.Write(&buf, binary.LittleEndian, uint16(len(name)))
		buf.WriteString(name)
	}

	binary.Write(&buf, binary.LittleEndian, uint32(len(proto.Bytecodes)))
	for i, bc := range proto.Bytecodes {
		if err := encodeBytecode(&buf, bc); err != nil {
			return nil, WrapImageError("bytecodes", i, err)
		}
	}

	return buf.Bytes(), nil
}

func encodeConstant(buf *bytes.Buffer, c value.Value) error {
	switch c.Kind() {
	case value.KNil:
		buf.WriteByte(tagNil)
	case value.KBoolean:
		buf.WriteByte(tagBoolean)
		if c.AsBool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case value.KInteger:
		buf.WriteByte(tagInteger)
		binary.Write(buf, binary.LittleEndian, c.AsInteger())
	case value.KFloat:
		buf.WriteByte(tagFloat)
		binary.Write(buf, binary.LittleEndian, math.Float64bits(c.AsFloat()))
	case value.KShortString, value.KMidString, value.KLongString:
		b := c.Bytes()
		if len(b) > math.MaxUint32 {
			return NewImageError("constants", -1, "string constant too long")
		}
		buf.WriteByte(tagString)
		binary.Write(buf, binary.LittleEndian, uint32(len(b)))
		buf.Write(b)
	default:
		return NewImageError("constants", -1, "constant kind "+c.Kind().String()+" is not serializable")
	}
	return nil
}

func encodeBytecode(buf *bytes.Buffer, bc compiler.Bytecode) error {
	buf.WriteByte(byte(bc.Op))
	for slot, v := range []int{bc.A, bc.B, bc.C} {
		if !operandRangeOK(bc.Op, slot, v) {
			return NewImageError("bytecodes", -1, "operand out of range for "+bc.Op.String())
		}
	}
	buf.WriteByte(byte(bc.A))
	switch bc.Op {
	case compiler.OpLoadConst:
		binary.Write(buf, binary.LittleEndian, uint16(bc.B))
	case compiler.OpLoadInt:
		binary.Write(buf, binary.LittleEndian, int16(bc.B))
	default:
		buf.WriteByte(byte(bc.B))
	}
	buf.WriteByte(byte(bc.C))
	return nil
}

// Decode reads an image produced by Encode back into a ParseProto. String
// constants are re-tiered on the way in, so the tier invariant holds for
// decoded pools exactly as for freshly parsed ones.
func Decode(data []byte) (*compiler.ParseProto, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil || magic != Magic {
		return nil, NewImageError("header", -1, "bad magic")
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, WrapImageError("header", -1, err)
	}
	if version != Version {
		return nil, NewImageError("header", -1, "unsupported image version")
	}

	proto := &compiler.ParseProto{}

	var nconst uint32
	if err := binary.Read(r, binary.LittleEndian, &nconst); err != nil {
		return nil, WrapImageError("constants", -1, err)
	}
	proto.Constants = make([]value.Value, 0, nconst)
	for i := 0; i < int(nconst); i++ {
		c, err := decodeConstant(r)
		if err != nil {
			return nil, WrapImageError("constants", i, err)
		}
		proto.Constants = append(proto.Constants, c)
	}

	var nlocals uint32
	if err := binary.Read(r, binary.LittleEndian, &nlocals); err != nil {
		return nil, WrapImageError("constants", -1, err)
	}
	proto.Locals = make([]string, 0, nlocals)
	for i := 0; i < int(nlocals); i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return nil, WrapImageError("constants", i, err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, WrapImageError("constants", i, err)
		}
		proto.Locals = append(proto.Locals, string(name))
	}

	var ncode uint32
	if err := binary.Read(r, binary.LittleEndian, &ncode); err != nil {
		return nil, WrapImageError("bytecodes", -1, err)
	}
	proto.Bytecodes = make([]compiler.Bytecode, 0, ncode)
	for i := 0; i < int(ncode); i++ {
		bc, err := decodeBytecode(r)
		if err != nil {
			return nil, WrapImageError("bytecodes", i, err)
		}
		proto.Bytecodes = append(proto.Bytecodes, bc)
	}

	if r.Len() != 0 {
		return nil, NewImageError("bytecodes", -1, "trailing bytes after image")
	}
	return proto, nil
}

func decodeConstant(r *bytes.Reader) (value.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return value.Nil, err
	}
	switch tag {
	case tagNil:
		return value.Nil, nil
	case tagBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return value.Nil, err
		}
		return value.NewBool(b != 0), nil
	case tagInteger:
		var i int64
		if err := binary.Read(r, binary.LittleEndian, &i); err != nil {
			return value.Nil, err
		}
		return value.NewInteger(i), nil
	case tagFloat:
		var bits uint64
		if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
			return value.Nil, err
		}
		return value.NewFloat(math.Float64frombits(bits)), nil
	case tagString:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return value.Nil, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return value.Nil, err
		}
		return value.NewFromBytes(b), nil
	default:
		return value.Nil, NewImageError("constants", -1, "unknown constant tag")
	}
}

func decodeBytecode(r *bytes.Reader) (compiler.Bytecode, error) {
	opByte, err := r.ReadByte()
	if err != nil {
		return compiler.Bytecode{}, err
	}
	op := compiler.Op(opByte)
	if op > compiler.OpSetList {
		return compiler.Bytecode{}, NewImageError("bytecodes", -1, "unknown opcode")
	}

	a, err := r.ReadByte()
	if err != nil {
		return compiler.Bytecode{}, err
	}

	var b int
	switch op {
	case compiler.OpLoadConst:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return compiler.Bytecode{}, err
		}
		b = int(v)
	case compiler.OpLoadInt:
		var v int16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return compiler.Bytecode{}, err
		}
		b = int(v)
	default:
		v, err := r.ReadByte()
		if err != nil {
			return compiler.Bytecode{}, err
		}
		b = int(v)
	}

	c, err := r.ReadByte()
	if err != nil {
		return compiler.Bytecode{}, err
	}

	return compiler.ABC(op, int(a), b, int(c)), nil
}
