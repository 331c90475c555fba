package tx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// TxVersion is the default transaction version number.
	TxVersion int32 = 2

	// MaxTxInSequenceNum is the final sequence number, disabling both
	// locktime enforcement and BIP68 relative locks for the input.
	MaxTxInSequenceNum uint32 = 0xffffffff

	// witnessMarker and witnessFlag are the two bytes inserted after the
	// version in the BIP144 extended serialization.
	witnessMarker byte = 0x00
	witnessFlag   byte = 0x01

	// maxWitnessItemSize bounds a single witness stack item during
	// deserialization.
	maxWitnessItemSize = 11000

	// maxScriptAllocSize bounds scriptSig/scriptPubKey allocations during
	// deserialization.
	maxScriptAllocSize = 11000
)

var (
	// ErrMalformedTx is returned when serialized transaction bytes cannot
	// be parsed: truncated fields, a bad witness flag, or trailing bytes.
	ErrMalformedTx = errors.New("malformed transaction")
)

// OutPoint references the output of a previous transaction by txid and index.
type OutPoint struct {
	Hash  chainhash.Hash
	Index uint32
}

// NewOutPointFromString builds an outpoint from a display-order (big-endian)
// txid string, the form block explorers and the original tutorial code use.
func NewOutPointFromString(txid string, index uint32) (*OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("%w: txid %q", ErrMalformedTx, txid)
	}
	return &OutPoint{Hash: *hash, Index: index}, nil
}

// String renders the outpoint as txid:index in display order.
func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash.String(), o.Index)
}

// Witness is the ordered stack of byte strings attached to an input by the
// BIP144 extended serialization. A nil witness serializes as item count 0.
type Witness [][]byte

// SerializeSize returns the number of bytes the witness occupies on the wire.
func (w Witness) SerializeSize() int {
	n := compactSizeLen(uint64(len(w)))
	for _, item := range w {
		n += compactSizeLen(uint64(len(item))) + len(item)
	}
	return n
}

// TxIn is a transaction input. SignatureScript stays empty for pure segwit
// and taproot spends; Witness stays nil for legacy spends.
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Witness          Witness
	Sequence         uint32
}

// NewTxIn returns an input spending the given outpoint with the final
// sequence number.
func NewTxIn(prevOut *OutPoint, signatureScript []byte) *TxIn {
	return &TxIn{
		PreviousOutPoint: *prevOut,
		SignatureScript:  signatureScript,
		Sequence:         MaxTxInSequenceNum,
	}
}

// TxOut is a transaction output: an integer satoshi amount (never a float,
// amounts must stay exact) and the locking script.
type TxOut struct {
	Value    int64
	PkScript []byte
}

// NewTxOut returns an output paying the given amount to the locking script.
func NewTxOut(value int64, pkScript []byte) *TxOut {
	return &TxOut{Value: value, PkScript: pkScript}
}

// Transaction is the ordered set of inputs and outputs along with version
// and locktime. The zero value is not usable; construct with NewTransaction.
//
// It has two serializations: the base form (version, inputs, outputs,
// locktime) hashed for the legacy txid, and the BIP144 extended form that
// additionally carries marker/flag bytes and per-input witness stacks.
type Transaction struct {
	Version  int32
	TxIn     []*TxIn
	TxOut    []*TxOut
	LockTime uint32
}

// NewTransaction returns an empty transaction with the default version.
func NewTransaction() *Transaction {
	return &Transaction{Version: TxVersion}
}

// AddTxIn appends an input and returns its index.
func (t *Transaction) AddTxIn(ti *TxIn) int {
	t.TxIn = append(t.TxIn, ti)
	return len(t.TxIn) - 1
}

// AddTxOut appends an output and returns its index.
func (t *Transaction) AddTxOut(to *TxOut) int {
	t.TxOut = append(t.TxOut, to)
	return len(t.TxOut) - 1
}

// HasWitness reports whether any input carries witness data, which decides
// whether Serialize emits the extended form.
func (t *Transaction) HasWitness() bool {
	for _, ti := range t.TxIn {
		if len(ti.Witness) > 0 {
			return true
		}
	}
	return false
}

// SerializeNoWitness returns the base serialization: version, input count,
// inputs, output count, outputs, locktime. Witness data is always excluded.
// The legacy txid is the double SHA256 of these bytes.
func (t *Transaction) SerializeNoWitness() []byte {
	var buf bytes.Buffer
	t.serialize(&buf, false)
	return buf.Bytes()
}

// Serialize returns the wire serialization. When any input carries a
// witness, the BIP144 marker and flag bytes follow the version and one
// witness field per input is appended after the outputs; otherwise the bytes
// equal SerializeNoWitness.
func (t *Transaction) Serialize() []byte {
	var buf bytes.Buffer
	t.serialize(&buf, t.HasWitness())
	return buf.Bytes()
}

func (t *Transaction) serialize(buf *bytes.Buffer, withWitness bool) {
	var scratch [8]byte

	binary.LittleEndian.PutUint32(scratch[:4], uint32(t.Version))
	buf.Write(scratch[:4])

	if withWitness {
		buf.WriteByte(witnessMarker)
		buf.WriteByte(witnessFlag)
	}

	writeCompactSize(buf, uint64(len(t.TxIn)))
	for _, ti := range t.TxIn {
		buf.Write(ti.PreviousOutPoint.Hash[:])
		binary.LittleEndian.PutUint32(scratch[:4], ti.PreviousOutPoint.Index)
		buf.Write(scratch[:4])
		WriteVarBytes(buf, ti.SignatureScript)
		binary.LittleEndian.PutUint32(scratch[:4], ti.Sequence)
		buf.Write(scratch[:4])
	}

	writeCompactSize(buf, uint64(len(t.TxOut)))
	for _, to := range t.TxOut {
		binary.LittleEndian.PutUint64(scratch[:], uint64(to.Value))
		buf.Write(scratch[:])
		WriteVarBytes(buf, to.PkScript)
	}

	if withWitness {
		for _, ti := range t.TxIn {
			writeCompactSize(buf, uint64(len(ti.Witness)))
			for _, item := range ti.Witness {
				WriteVarBytes(buf, item)
			}
		}
	}

	binary.LittleEndian.PutUint32(scratch[:4], t.LockTime)
	buf.Write(scratch[:4])
}

// TxID returns the legacy transaction id: double SHA256 of the base
// serialization, unaffected by witness data. This is the id inputs reference.
func (t *Transaction) TxID() chainhash.Hash {
	return chainhash.DoubleHashH(t.SerializeNoWitness())
}

// WTxID returns the witness transaction id: double SHA256 of the full
// serialization. It equals TxID exactly when no input carries a witness.
func (t *Transaction) WTxID() chainhash.Hash {
	return chainhash.DoubleHashH(t.Serialize())
}

// Copy returns a deep copy, so a signed transaction can be derived from an
// unsigned skeleton without mutating it.
func (t *Transaction) Copy() *Transaction {
	newTx := &Transaction{
		Version:  t.Version,
		LockTime: t.LockTime,
		TxIn:     make([]*TxIn, 0, len(t.TxIn)),
		TxOut:    make([]*TxOut, 0, len(t.TxOut)),
	}
	for _, ti := range t.TxIn {
		newIn := &TxIn{
			PreviousOutPoint: ti.PreviousOutPoint,
			Sequence:         ti.Sequence,
		}
		if ti.SignatureScript != nil {
			newIn.SignatureScript = append([]byte(nil), ti.SignatureScript...)
		}
		if ti.Witness != nil {
			newIn.Witness = make(Witness, len(ti.Witness))
			for i, item := range ti.Witness {
				newIn.Witness[i] = append([]byte(nil), item...)
			}
		}
		newTx.TxIn = append(newTx.TxIn, newIn)
	}
	for _, to := range t.TxOut {
		newTx.TxOut = append(newTx.TxOut, &TxOut{
			Value:    to.Value,
			PkScript: append([]byte(nil), to.PkScript...),
		})
	}
	return newTx
}

// Deserialize parses wire bytes in either the base or the BIP144 extended
// form, detected by the marker/flag pair after the version. Trailing bytes
// are rejected.
func Deserialize(b []byte) (*Transaction, error) {
	r := bytes.NewReader(b)
	t := &Transaction{}

	var scratch [8]byte
	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return nil, fmt.Errorf("%w: version", ErrMalformedTx)
	}
	t.Version = int32(binary.LittleEndian.Uint32(scratch[:4]))

	count, err := readCompactSize(r)
	if err != nil {
		return nil, err
	}

	// A zero "input count" in the base layout is the witness marker; the
	// next byte must then be the flag.
	hasWitness := false
	if count == 0 {
		flag, err := r.ReadByte()
		if err != nil || flag != witnessFlag {
			return nil, fmt.Errorf("%w: witness flag", ErrMalformedTx)
		}
		hasWitness = true
		if count, err = readCompactSize(r); err != nil {
			return nil, err
		}
	}

	if count > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: input count %d", ErrMalformedTx, count)
	}
	for i := uint64(0); i < count; i++ {
		ti := &TxIn{}
		if _, err := io.ReadFull(r, ti.PreviousOutPoint.Hash[:]); err != nil {
			return nil, fmt.Errorf("%w: outpoint hash", ErrMalformedTx)
		}
		if _, err := io.ReadFull(r, scratch[:4]); err != nil {
			return nil, fmt.Errorf("%w: outpoint index", ErrMalformedTx)
		}
		ti.PreviousOutPoint.Index = binary.LittleEndian.Uint32(scratch[:4])
		if ti.SignatureScript, err = readVarBytes(
			r, maxScriptAllocSize, "scriptSig",
		); err != nil {
			return nil, err
		}
		if _, err := io.ReadFull(r, scratch[:4]); err != nil {
			return nil, fmt.Errorf("%w: sequence", ErrMalformedTx)
		}
		ti.Sequence = binary.LittleEndian.Uint32(scratch[:4])
		t.TxIn = append(t.TxIn, ti)
	}

	outCount, err := readCompactSize(r)
	if err != nil {
		return nil, err
	}
	if outCount > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: output count %d", ErrMalformedTx, outCount)
	}
	for i := uint64(0); i < outCount; i++ {
		to := &TxOut{}
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return nil, fmt.Errorf("%w: output value", ErrMalformedTx)
		}
		to.Value = int64(binary.LittleEndian.Uint64(scratch[:]))
		if to.PkScript, err = readVarBytes(
			r, maxScriptAllocSize, "scriptPubKey",
		); err != nil {
			return nil, err
		}
		t.TxOut = append(t.TxOut, to)
	}

	if hasWitness {
		sawItems := false
		for _, ti := range t.TxIn {
			itemCount, err := readCompactSize(r)
			if err != nil {
				return nil, err
			}
			if itemCount > uint64(r.Len()) {
				return nil, fmt.Errorf("%w: witness item count %d",
					ErrMalformedTx, itemCount)
			}
			for j := uint64(0); j < itemCount; j++ {
				item, err := readVarBytes(
					r, maxWitnessItemSize, "witness item",
				)
				if err != nil {
					return nil, err
				}
				if item == nil {
					item = []byte{}
				}
				ti.Witness = append(ti.Witness, item)
				sawItems = true
			}
		}
		// The extended form is only allowed when it carries data;
		// otherwise the base form must be used (BIP144).
		if !sawItems {
			return nil, fmt.Errorf("%w: witness flag without witness data",
				ErrMalformedTx)
		}
	}

	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return nil, fmt.Errorf("%w: locktime", ErrMalformedTx)
	}
	t.LockTime = binary.LittleEndian.Uint32(scratch[:4])

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedTx, r.Len())
	}
	return t, nil
}

func compactSizeLen(val uint64) int {
	switch {
	case val < 253:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}
