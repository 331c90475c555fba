package script

import "fmt"

// ScriptClass identifies the standard output template a scriptPubKey follows.
type ScriptClass int

const (
	NonStandardTy ScriptClass = iota
	PubKeyTy
	PubKeyHashTy
	ScriptHashTy
	WitnessV0PubKeyHashTy
	WitnessV0ScriptHashTy
	WitnessV1TaprootTy
	MultiSigTy
	NullDataTy
)

func (c ScriptClass) String() string {
	switch c {
	case PubKeyTy:
		return "pubkey"
	case PubKeyHashTy:
		return "pubkeyhash"
	case ScriptHashTy:
		return "scripthash"
	case WitnessV0PubKeyHashTy:
		return "witness_v0_keyhash"
	case WitnessV0ScriptHashTy:
		return "witness_v0_scripthash"
	case WitnessV1TaprootTy:
		return "witness_v1_taproot"
	case MultiSigTy:
		return "multisig"
	case NullDataTy:
		return "nulldata"
	default:
		return "nonstandard"
	}
}

// PayToPubKey returns the scriptPubKey <pubkey> OP_CHECKSIG for a 33-byte
// compressed or 65-byte uncompressed public key.
func PayToPubKey(pubKey []byte) ([]byte, error) {
	if len(pubKey) != 33 && len(pubKey) != 65 {
		return nil, fmt.Errorf("%w: pubkey is %d bytes",
			ErrUnexpectedKeySize, len(pubKey))
	}
	return NewBuilder().AddData(pubKey).AddOp(OP_CHECKSIG).Script()
}

// PayToPubKeyHash returns the canonical P2PKH scriptPubKey
// OP_DUP OP_HASH160 <20-byte hash> OP_EQUALVERIFY OP_CHECKSIG.
func PayToPubKeyHash(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, fmt.Errorf("%w: pubkey hash is %d bytes",
			ErrUnexpectedKeySize, len(pubKeyHash))
	}
	return NewBuilder().
		AddOp(OP_DUP).AddOp(OP_HASH160).
		AddData(pubKeyHash).
		AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).
		Script()
}

// PayToScriptHash returns the BIP16 P2SH scriptPubKey
// OP_HASH160 <20-byte hash> OP_EQUAL for the HASH160 of a redeem script.
func PayToScriptHash(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 20 {
		return nil, fmt.Errorf("%w: script hash is %d bytes",
			ErrUnexpectedKeySize, len(scriptHash))
	}
	return NewBuilder().
		AddOp(OP_HASH160).AddData(scriptHash).AddOp(OP_EQUAL).
		Script()
}

// PayToWitnessPubKeyHash returns the segwit v0 scriptPubKey
// OP_0 <20-byte hash>.
func PayToWitnessPubKeyHash(pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, fmt.Errorf("%w: pubkey hash is %d bytes",
			ErrUnexpectedKeySize, len(pubKeyHash))
	}
	return NewBuilder().AddOp(OP_0).AddData(pubKeyHash).Script()
}

// PayToWitnessScriptHash returns the segwit v0 scriptPubKey
// OP_0 <32-byte sha256>.
func PayToWitnessScriptHash(scriptHash []byte) ([]byte, error) {
	if len(scriptHash) != 32 {
		return nil, fmt.Errorf("%w: witness script hash is %d bytes",
			ErrUnexpectedKeySize, len(scriptHash))
	}
	return NewBuilder().AddOp(OP_0).AddData(scriptHash).Script()
}

// PayToTaproot returns the segwit v1 scriptPubKey OP_1 <32-byte x-only key>
// committing to a tweaked output key.
func PayToTaproot(outputKey []byte) ([]byte, error) {
	if len(outputKey) != 32 {
		return nil, fmt.Errorf("%w: output key is %d bytes",
			ErrUnexpectedKeySize, len(outputKey))
	}
	return NewBuilder().AddOp(OP_1).AddData(outputKey).Script()
}

// MultiSig returns an m-of-n CHECKMULTISIG redeem script over the given
// public keys, in the order provided. Spenders must supply signatures in the
// same key order.
func MultiSig(required int, pubKeys [][]byte) ([]byte, error) {
	if required < 1 || len(pubKeys) < required || len(pubKeys) > 16 {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidMultisigParams,
			required, len(pubKeys))
	}
	builder := NewBuilder().AddInt64(int64(required))
	for _, key := range pubKeys {
		if len(key) != 33 && len(key) != 65 {
			return nil, fmt.Errorf("%w: pubkey is %d bytes",
				ErrUnexpectedKeySize, len(key))
		}
		builder.AddData(key)
	}
	return builder.
		AddInt64(int64(len(pubKeys))).
		AddOp(OP_CHECKMULTISIG).
		Script()
}

// CheckSequenceVerify returns the relative-timelock redeem script
// <sequence> OP_CHECKSEQUENCEVERIFY OP_DROP OP_DUP OP_HASH160 <hash>
// OP_EQUALVERIFY OP_CHECKSIG. The sequence operand must already be BIP68
// encoded; spending inputs must set at least this sequence.
func CheckSequenceVerify(sequence int64, pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, fmt.Errorf("%w: pubkey hash is %d bytes",
			ErrUnexpectedKeySize, len(pubKeyHash))
	}
	return NewBuilder().
		AddInt64(sequence).
		AddOp(OP_CHECKSEQUENCEVERIFY).AddOp(OP_DROP).
		AddOp(OP_DUP).AddOp(OP_HASH160).
		AddData(pubKeyHash).
		AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).
		Script()
}

// CheckLockTimeVerify returns the absolute-timelock redeem script
// <locktime> OP_CHECKLOCKTIMEVERIFY OP_DROP OP_DUP OP_HASH160 <hash>
// OP_EQUALVERIFY OP_CHECKSIG.
func CheckLockTimeVerify(lockTime int64, pubKeyHash []byte) ([]byte, error) {
	if len(pubKeyHash) != 20 {
		return nil, fmt.Errorf("%w: pubkey hash is %d bytes",
			ErrUnexpectedKeySize, len(pubKeyHash))
	}
	return NewBuilder().
		AddInt64(lockTime).
		AddOp(OP_CHECKLOCKTIMEVERIFY).AddOp(OP_DROP).
		AddOp(OP_DUP).AddOp(OP_HASH160).
		AddData(pubKeyHash).
		AddOp(OP_EQUALVERIFY).AddOp(OP_CHECKSIG).
		Script()
}

// NullData returns a provably unspendable OP_RETURN output embedding the
// given payload.
func NullData(data []byte) ([]byte, error) {
	return NewBuilder().AddOp(OP_RETURN).AddData(data).Script()
}

// IsPayToScriptHash reports whether the script matches the exact P2SH form.
func IsPayToScriptHash(s []byte) bool {
	return len(s) == 23 &&
		s[0] == OP_HASH160 &&
		s[1] == OP_DATA_20 &&
		s[22] == OP_EQUAL
}

// IsPayToWitnessPubKeyHash reports whether the script is OP_0 <20 bytes>.
func IsPayToWitnessPubKeyHash(s []byte) bool {
	return len(s) == 22 && s[0] == OP_0 && s[1] == OP_DATA_20
}

// IsPayToWitnessScriptHash reports whether the script is OP_0 <32 bytes>.
func IsPayToWitnessScriptHash(s []byte) bool {
	return len(s) == 34 && s[0] == OP_0 && s[1] == OP_DATA_32
}

// IsPayToTaproot reports whether the script is OP_1 <32 bytes>.
func IsPayToTaproot(s []byte) bool {
	return len(s) == 34 && s[0] == OP_1 && s[1] == OP_DATA_32
}

// IsPayToPubKeyHash reports whether the script matches the exact P2PKH form.
func IsPayToPubKeyHash(s []byte) bool {
	return len(s) == 25 &&
		s[0] == OP_DUP &&
		s[1] == OP_HASH160 &&
		s[2] == OP_DATA_20 &&
		s[23] == OP_EQUALVERIFY &&
		s[24] == OP_CHECKSIG
}

// GetScriptClass classifies a scriptPubKey against the standard templates.
func GetScriptClass(s []byte) ScriptClass {
	switch {
	case IsPayToPubKeyHash(s):
		return PubKeyHashTy
	case IsPayToScriptHash(s):
		return ScriptHashTy
	case IsPayToWitnessPubKeyHash(s):
		return WitnessV0PubKeyHashTy
	case IsPayToWitnessScriptHash(s):
		return WitnessV0ScriptHashTy
	case IsPayToTaproot(s):
		return WitnessV1TaprootTy
	}

	elements, err := Decode(s)
	if err != nil {
		return NonStandardTy
	}

	switch {
	case isPubKey(elements):
		return PubKeyTy
	case isMultiSig(elements):
		return MultiSigTy
	case isNullData(elements):
		return NullDataTy
	}
	return NonStandardTy
}

// ExtractWitnessProgram returns the witness version and program of a segwit
// scriptPubKey, or ok=false if the script is not a witness program.
func ExtractWitnessProgram(s []byte) (version int, program []byte, ok bool) {
	if len(s) < 4 || len(s) > 42 {
		return 0, nil, false
	}
	if s[0] != OP_0 && (s[0] < OP_1 || s[0] > OP_16) {
		return 0, nil, false
	}
	progLen := int(s[1])
	if progLen < 2 || progLen > 40 || len(s) != 2+progLen {
		return 0, nil, false
	}
	if s[0] == OP_0 {
		version = 0
	} else {
		version = AsSmallInt(s[0])
	}
	return version, s[2:], true
}

func isPubKey(elements []Element) bool {
	return len(elements) == 2 &&
		(len(elements[0].Data) == 33 || len(elements[0].Data) == 65) &&
		elements[1].Opcode == OP_CHECKSIG
}

func isMultiSig(elements []Element) bool {
	if len(elements) < 4 {
		return false
	}
	last := len(elements) - 1
	if elements[last].Opcode != OP_CHECKMULTISIG {
		return false
	}
	if !IsSmallInt(elements[0].Opcode) || !IsSmallInt(elements[last-1].Opcode) {
		return false
	}
	required := AsSmallInt(elements[0].Opcode)
	total := AsSmallInt(elements[last-1].Opcode)
	if required < 1 || total < required || total != last-2 {
		return false
	}
	for _, el := range elements[1 : last-1] {
		if len(el.Data) != 33 && len(el.Data) != 65 {
			return false
		}
	}
	return true
}

func isNullData(elements []Element) bool {
	if len(elements) == 0 || elements[0].Opcode != OP_RETURN {
		return false
	}
	for _, el := range elements[1:] {
		if el.Data == nil && !IsSmallInt(el.Opcode) &&
			el.Opcode != OP_1NEGATE {
			return false
		}
	}
	return true
}
