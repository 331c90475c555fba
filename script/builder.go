package script

import (
	"encoding/binary"
	"fmt"
)

// Builder incrementally assembles a script, always choosing the minimal push
// encoding for data. Errors are latched: once an add fails, every later call
// is a no-op and Script returns the first error.
type Builder struct {
	script []byte
	err    error
}

// NewBuilder returns an empty script builder.
func NewBuilder() *Builder {
	return &Builder{script: make([]byte, 0, 128)}
}

// AddOp appends a single opcode.
func (b *Builder) AddOp(op byte) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.script)+1 > MaxScriptSize {
		b.err = ErrScriptTooLarge
		return b
	}
	b.script = append(b.script, op)
	return b
}

// AddOps appends a run of opcodes.
func (b *Builder) AddOps(ops []byte) *Builder {
	for _, op := range ops {
		b.AddOp(op)
	}
	return b
}

// AddData appends a data push using the smallest possible encoding: small-int
// opcodes for 0..16 and 0x81, direct length opcodes up to 75 bytes, then
// OP_PUSHDATA1/2/4.
func (b *Builder) AddData(data []byte) *Builder {
	if b.err != nil {
		return b
	}
	if len(data) > MaxScriptElementSize {
		b.err = fmt.Errorf("%w: %d bytes", ErrElementTooLarge, len(data))
		return b
	}

	dataLen := len(data)
	switch {
	case dataLen == 0:
		b.script = append(b.script, OP_0)
	case dataLen == 1 && data[0] >= 1 && data[0] <= 16:
		b.script = append(b.script, OP_1-1+data[0])
	case dataLen == 1 && data[0] == 0x81:
		b.script = append(b.script, OP_1NEGATE)
	case dataLen <= 75:
		b.script = append(b.script, byte(dataLen))
		b.script = append(b.script, data...)
	case dataLen <= 0xff:
		b.script = append(b.script, OP_PUSHDATA1, byte(dataLen))
		b.script = append(b.script, data...)
	case dataLen <= 0xffff:
		b.script = append(b.script, OP_PUSHDATA2)
		b.script = binary.LittleEndian.AppendUint16(b.script, uint16(dataLen))
		b.script = append(b.script, data...)
	default:
		b.script = append(b.script, OP_PUSHDATA4)
		b.script = binary.LittleEndian.AppendUint32(b.script, uint32(dataLen))
		b.script = append(b.script, data...)
	}

	if len(b.script) > MaxScriptSize {
		b.err = ErrScriptTooLarge
	}
	return b
}

// AddFullData appends a data push without the element size check. It exists
// for tests that need deliberately oversized or non-minimal scripts and must
// not be used for scripts meant to reach the network.
func (b *Builder) AddFullData(data []byte) *Builder {
	if b.err != nil {
		return b
	}
	dataLen := len(data)
	switch {
	case dataLen == 0:
		b.script = append(b.script, OP_0)
		return b
	case dataLen <= 75:
		b.script = append(b.script, byte(dataLen))
	case dataLen <= 0xff:
		b.script = append(b.script, OP_PUSHDATA1, byte(dataLen))
	case dataLen <= 0xffff:
		b.script = append(b.script, OP_PUSHDATA2)
		b.script = binary.LittleEndian.AppendUint16(b.script, uint16(dataLen))
	default:
		b.script = append(b.script, OP_PUSHDATA4)
		b.script = binary.LittleEndian.AppendUint32(b.script, uint32(dataLen))
	}
	b.script = append(b.script, data...)
	return b
}

// AddInt64 appends a numeric push using the small-int opcodes where possible
// and minimal script-number encoding otherwise. CSV/CLTV operands are added
// this way.
func (b *Builder) AddInt64(val int64) *Builder {
	if b.err != nil {
		return b
	}
	if val == 0 {
		return b.AddOp(OP_0)
	}
	if val == -1 || (val >= 1 && val <= 16) {
		return b.AddOp(byte(OP_1 - 1 + val))
	}
	return b.AddData(Num(val).Bytes())
}

// Script returns the assembled bytes, or the first error any add produced.
func (b *Builder) Script() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.script, nil
}
