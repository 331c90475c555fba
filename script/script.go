package script

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Element is a single parsed script token: a fixed opcode, or a data push
// opcode together with the bytes it pushes. Data is nil for non-push tokens
// and for the small-int opcodes, whose value is carried by the opcode itself.
type Element struct {
	Opcode byte
	Data   []byte
}

// Tokenizer provides allocation-free iteration over the tokens of a raw
// script. It is modeled after the tokenizer the btcd script engine uses, with
// unknown opcodes treated as a parse failure since the library only deals in
// the standard opcode set.
type Tokenizer struct {
	script []byte
	offset int
	op     byte
	data   []byte
	err    error
}

// MakeTokenizer returns a tokenizer positioned at the start of the script.
func MakeTokenizer(script []byte) Tokenizer {
	return Tokenizer{script: script}
}

// Next advances to the next token and returns true on success. Once it
// returns false, Err distinguishes ordinary completion from a parse failure.
func (t *Tokenizer) Next() bool {
	if t.err != nil || t.offset >= len(t.script) {
		return false
	}

	op := t.script[t.offset]
	if !IsKnownOpcode(op) {
		t.err = fmt.Errorf("%w: unknown opcode 0x%02x at offset %d",
			ErrMalformedScript, op, t.offset)
		return false
	}

	switch {
	// Direct pushes: the opcode is the number of bytes that follow.
	case op >= OP_DATA_1 && op <= OP_DATA_75:
		dataLen := int(op)
		if t.offset+1+dataLen > len(t.script) {
			t.err = fmt.Errorf("%w: opcode %s requires %d bytes, "+
				"only %d remain", ErrMalformedScript,
				OpcodeName(op), dataLen,
				len(t.script)-t.offset-1)
			return false
		}
		t.op = op
		t.data = t.script[t.offset+1 : t.offset+1+dataLen]
		t.offset += 1 + dataLen

	case op == OP_PUSHDATA1 || op == OP_PUSHDATA2 || op == OP_PUSHDATA4:
		lenBytes := 1
		if op == OP_PUSHDATA2 {
			lenBytes = 2
		} else if op == OP_PUSHDATA4 {
			lenBytes = 4
		}
		if t.offset+1+lenBytes > len(t.script) {
			t.err = fmt.Errorf("%w: truncated %s length prefix",
				ErrMalformedScript, OpcodeName(op))
			return false
		}
		var dataLen int
		switch lenBytes {
		case 1:
			dataLen = int(t.script[t.offset+1])
		case 2:
			dataLen = int(binary.LittleEndian.Uint16(
				t.script[t.offset+1:]))
		case 4:
			dataLen = int(binary.LittleEndian.Uint32(
				t.script[t.offset+1:]))
		}
		start := t.offset + 1 + lenBytes
		if start+dataLen > len(t.script) {
			t.err = fmt.Errorf("%w: %s announces %d bytes, only "+
				"%d remain", ErrMalformedScript, OpcodeName(op),
				dataLen, len(t.script)-start)
			return false
		}
		t.op = op
		t.data = t.script[start : start+dataLen]
		t.offset = start + dataLen

	default:
		t.op = op
		t.data = nil
		t.offset++
	}

	return true
}

// Done returns true when all tokens have been consumed without error.
func (t *Tokenizer) Done() bool {
	return t.err == nil && t.offset >= len(t.script)
}

// Opcode returns the opcode of the current token.
func (t *Tokenizer) Opcode() byte { return t.op }

// Data returns the pushed bytes of the current token, nil for non-pushes.
func (t *Tokenizer) Data() []byte { return t.data }

// ByteIndex returns the offset of the next token to parse.
func (t *Tokenizer) ByteIndex() int { return t.offset }

// Err returns the parse failure encountered, if any.
func (t *Tokenizer) Err() error { return t.err }

// Decode parses serialized script bytes into their token sequence. It fails
// with ErrMalformedScript on truncated pushes or opcodes outside the standard
// table. The returned elements re-encode byte-exactly via Encode.
func Decode(scriptBytes []byte) ([]Element, error) {
	elements := make([]Element, 0, len(scriptBytes)/2)

	tokenizer := MakeTokenizer(scriptBytes)
	for tokenizer.Next() {
		elements = append(elements, Element{
			Opcode: tokenizer.Opcode(),
			Data:   tokenizer.Data(),
		})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return elements, nil
}

// Encode serializes a token sequence back into canonical script bytes. The
// push length encoding is dictated by each element's opcode, so
// Encode(Decode(s)) == s for every script Decode accepts. An element whose
// data length does not match its push opcode is rejected.
func Encode(elements []Element) ([]byte, error) {
	var out []byte
	for i, el := range elements {
		op := el.Opcode
		switch {
		case op >= OP_DATA_1 && op <= OP_DATA_75:
			if len(el.Data) != int(op) {
				return nil, fmt.Errorf("%w: element %d: %s "+
					"carries %d bytes", ErrMalformedScript,
					i, OpcodeName(op), len(el.Data))
			}
			out = append(out, op)
			out = append(out, el.Data...)

		case op == OP_PUSHDATA1:
			if len(el.Data) > 0xff {
				return nil, fmt.Errorf("%w: element %d",
					ErrElementTooLarge, i)
			}
			out = append(out, op, byte(len(el.Data)))
			out = append(out, el.Data...)

		case op == OP_PUSHDATA2:
			if len(el.Data) > 0xffff {
				return nil, fmt.Errorf("%w: element %d",
					ErrElementTooLarge, i)
			}
			out = append(out, op)
			out = binary.LittleEndian.AppendUint16(
				out, uint16(len(el.Data)))
			out = append(out, el.Data...)

		case op == OP_PUSHDATA4:
			out = append(out, op)
			out = binary.LittleEndian.AppendUint32(
				out, uint32(len(el.Data)))
			out = append(out, el.Data...)

		default:
			if len(el.Data) != 0 {
				return nil, fmt.Errorf("%w: element %d: %s "+
					"is not a push opcode",
					ErrMalformedScript, i, OpcodeName(op))
			}
			out = append(out, op)
		}
	}
	if len(out) > MaxScriptSize {
		return nil, ErrScriptTooLarge
	}
	return out, nil
}

// PushedData returns the data elements a push-only script carries, in order.
// It is used to split a P2SH scriptSig into signatures and redeem script.
func PushedData(scriptBytes []byte) ([][]byte, error) {
	var pushes [][]byte

	tokenizer := MakeTokenizer(scriptBytes)
	for tokenizer.Next() {
		op := tokenizer.Opcode()
		switch {
		case tokenizer.Data() != nil:
			pushes = append(pushes, tokenizer.Data())
		case op == OP_0:
			pushes = append(pushes, nil)
		case IsSmallInt(op):
			pushes = append(pushes, []byte{byte(AsSmallInt(op))})
		case op == OP_1NEGATE:
			pushes = append(pushes, []byte{0x81})
		default:
			return nil, fmt.Errorf("%w: %s in push-only context",
				ErrMalformedScript, OpcodeName(op))
		}
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	return pushes, nil
}

// Disasm renders a script in a one-line human readable form, mirroring the
// format used by bitcoind script dumps. Parse failures are reported in-line
// with an [error] marker rather than returned, since disassembly is a
// diagnostic surface.
func Disasm(scriptBytes []byte) string {
	var parts []string
	tokenizer := MakeTokenizer(scriptBytes)
	for tokenizer.Next() {
		if tokenizer.Data() != nil {
			parts = append(parts, hex.EncodeToString(tokenizer.Data()))
			continue
		}
		parts = append(parts, OpcodeName(tokenizer.Opcode()))
	}
	if tokenizer.Err() != nil {
		parts = append(parts, "[error]")
	}
	return strings.Join(parts, " ")
}

// Hash160 returns RIPEMD160(SHA256(b)), the commitment hash used by P2PKH
// and P2SH outputs.
func Hash160(b []byte) []byte {
	return btcutil.Hash160(b)
}

// Sha256 returns the single SHA256 commitment hash used by P2WSH outputs.
func Sha256(b []byte) []byte {
	h := chainhash.HashB(b)
	return h
}
