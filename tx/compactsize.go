package tx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// writeCompactSize writes a Bitcoin compact size uint to the buffer.
func writeCompactSize(w *bytes.Buffer, val uint64) {
	switch {
	case val < 253:
		w.WriteByte(byte(val))
	case val <= 0xffff:
		w.WriteByte(253)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(val))
		w.Write(b[:])
	case val <= 0xffffffff:
		w.WriteByte(254)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(val))
		w.Write(b[:])
	default:
		w.WriteByte(255)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], val)
		w.Write(b[:])
	}
}

// readCompactSize reads a Bitcoin compact size uint from the reader.
func readCompactSize(r *bytes.Reader) (uint64, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return 0, fmt.Errorf("%w: compact size prefix", ErrMalformedTx)
	}

	switch prefix {
	case 253:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("%w: compact size", ErrMalformedTx)
		}
		return uint64(binary.LittleEndian.Uint16(b[:])), nil
	case 254:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("%w: compact size", ErrMalformedTx)
		}
		return uint64(binary.LittleEndian.Uint32(b[:])), nil
	case 255:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, fmt.Errorf("%w: compact size", ErrMalformedTx)
		}
		return binary.LittleEndian.Uint64(b[:]), nil
	default:
		return uint64(prefix), nil
	}
}

// WriteVarBytes writes a compact size length prefix followed by the bytes.
// Exposed because taproot leaf hashing commits to scripts in this format.
func WriteVarBytes(w *bytes.Buffer, b []byte) {
	writeCompactSize(w, uint64(len(b)))
	w.Write(b)
}

func readVarBytes(r *bytes.Reader, maxLen uint64, field string) ([]byte, error) {
	count, err := readCompactSize(r)
	if err != nil {
		return nil, err
	}
	if count > maxLen {
		return nil, fmt.Errorf("%w: %s announces %d bytes",
			ErrMalformedTx, field, count)
	}
	if count == 0 {
		return nil, nil
	}
	b := make([]byte, count)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("%w: truncated %s", ErrMalformedTx, field)
	}
	return b, nil
}
