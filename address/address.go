package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"

	"github.com/forgebtc/txforge/script"
)

var (
	// ErrUnknownAddressType is returned when an address string does not
	// match any supported encoding for the given network.
	ErrUnknownAddressType = errors.New("unknown address type")

	// ErrWrongNetwork is returned when an address decodes correctly but
	// carries the version byte or prefix of a different network.
	ErrWrongNetwork = errors.New("address is for a different network")
)

// Address is an encoded spending destination that knows how to produce the
// locking script committing to it.
type Address interface {
	// String returns the canonical encoding of the address.
	String() string

	// ScriptPubKey returns the locking script paying to the address.
	ScriptPubKey() ([]byte, error)
}

// PubKeyHash is a base58check pay-to-pubkey-hash address.
type PubKeyHash struct {
	hash [20]byte
	net  Network
}

// NewPubKeyHash builds a P2PKH address from a 20-byte hash160.
func NewPubKeyHash(pubKeyHash []byte, net Network) (*PubKeyHash, error) {
	if len(pubKeyHash) != 20 {
		return nil, fmt.Errorf("pubkey hash must be 20 bytes, got %d",
			len(pubKeyHash))
	}
	addr := &PubKeyHash{net: net}
	copy(addr.hash[:], pubKeyHash)
	return addr, nil
}

func (a *PubKeyHash) String() string {
	return base58.CheckEncode(a.hash[:], a.net.PubKeyHashID)
}

func (a *PubKeyHash) ScriptPubKey() ([]byte, error) {
	return script.PayToPubKeyHash(a.hash[:])
}

// Hash160 returns the pubkey hash the address commits to.
func (a *PubKeyHash) Hash160() [20]byte {
	return a.hash
}

// ScriptHash is a base58check pay-to-script-hash address.
type ScriptHash struct {
	hash [20]byte
	net  Network
}

// NewScriptHash builds a P2SH address from a 20-byte hash160 of the redeem
// script.
func NewScriptHash(scriptHash []byte, net Network) (*ScriptHash, error) {
	if len(scriptHash) != 20 {
		return nil, fmt.Errorf("script hash must be 20 bytes, got %d",
			len(scriptHash))
	}
	addr := &ScriptHash{net: net}
	copy(addr.hash[:], scriptHash)
	return addr, nil
}

// NewScriptHashFromScript builds a P2SH address from the redeem script
// itself.
func NewScriptHashFromScript(redeemScript []byte, net Network) (*ScriptHash, error) {
	return NewScriptHash(script.Hash160(redeemScript), net)
}

func (a *ScriptHash) String() string {
	return base58.CheckEncode(a.hash[:], a.net.ScriptHashID)
}

func (a *ScriptHash) ScriptPubKey() ([]byte, error) {
	return script.PayToScriptHash(a.hash[:])
}

// WitnessPubKeyHash is a bech32 segwit v0 pay-to-witness-pubkey-hash
// address.
type WitnessPubKeyHash struct {
	hash [20]byte
	net  Network
}

// NewWitnessPubKeyHash builds a P2WPKH address from a 20-byte hash160.
func NewWitnessPubKeyHash(pubKeyHash []byte, net Network) (*WitnessPubKeyHash, error) {
	if len(pubKeyHash) != 20 {
		return nil, fmt.Errorf("witness pubkey hash must be 20 bytes, got %d",
			len(pubKeyHash))
	}
	addr := &WitnessPubKeyHash{net: net}
	copy(addr.hash[:], pubKeyHash)
	return addr, nil
}

func (a *WitnessPubKeyHash) String() string {
	s, err := encodeSegwit(a.net.Bech32HRP, 0, a.hash[:])
	if err != nil {
		return ""
	}
	return s
}

func (a *WitnessPubKeyHash) ScriptPubKey() ([]byte, error) {
	return script.PayToWitnessPubKeyHash(a.hash[:])
}

// WitnessScriptHash is a bech32 segwit v0 pay-to-witness-script-hash
// address.
type WitnessScriptHash struct {
	hash [32]byte
	net  Network
}

// NewWitnessScriptHash builds a P2WSH address from the 32-byte sha256 of the
// witness script.
func NewWitnessScriptHash(scriptHash []byte, net Network) (*WitnessScriptHash, error) {
	if len(scriptHash) != 32 {
		return nil, fmt.Errorf("witness script hash must be 32 bytes, got %d",
			len(scriptHash))
	}
	addr := &WitnessScriptHash{net: net}
	copy(addr.hash[:], scriptHash)
	return addr, nil
}

func (a *WitnessScriptHash) String() string {
	s, err := encodeSegwit(a.net.Bech32HRP, 0, a.hash[:])
	if err != nil {
		return ""
	}
	return s
}

func (a *WitnessScriptHash) ScriptPubKey() ([]byte, error) {
	return script.PayToWitnessScriptHash(a.hash[:])
}

// Taproot is a bech32m segwit v1 pay-to-taproot address.
type Taproot struct {
	outputKey [32]byte
	net       Network
}

// NewTaproot builds a P2TR address from a 32-byte x-only output key.
func NewTaproot(outputKey []byte, net Network) (*Taproot, error) {
	if len(outputKey) != 32 {
		return nil, fmt.Errorf("taproot output key must be 32 bytes, got %d",
			len(outputKey))
	}
	addr := &Taproot{net: net}
	copy(addr.outputKey[:], outputKey)
	return addr, nil
}

func (a *Taproot) String() string {
	s, err := encodeSegwit(a.net.Bech32HRP, 1, a.outputKey[:])
	if err != nil {
		return ""
	}
	return s
}

func (a *Taproot) ScriptPubKey() ([]byte, error) {
	return script.PayToTaproot(a.outputKey[:])
}

// Decode parses an address string for the given network and returns the
// typed address. Base58check strings are matched on their version byte and
// bech32 strings on their prefix, witness version and checksum variant.
func Decode(addr string, net Network) (Address, error) {
	// Base58check first, it has no prefix to dispatch on.
	if decoded, version, err := base58.CheckDecode(addr); err == nil {
		switch version {
		case net.PubKeyHashID:
			return NewPubKeyHash(decoded, net)
		case net.ScriptHashID:
			return NewScriptHash(decoded, net)
		default:
			return nil, fmt.Errorf("%w: version byte %#02x",
				ErrWrongNetwork, version)
		}
	}

	hrp, data, bech32Version, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAddressType, addr)
	}
	if hrp != net.Bech32HRP {
		return nil, fmt.Errorf("%w: prefix %q", ErrWrongNetwork, hrp)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty witness data", ErrUnknownAddressType)
	}

	witnessVersion := data[0]
	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("invalid witness program: %w", err)
	}

	// BIP350: version 0 uses the bech32 checksum, all later versions use
	// bech32m.
	switch {
	case witnessVersion == 0 && bech32Version != bech32.Version0:
		return nil, fmt.Errorf("%w: version 0 program with bech32m checksum",
			ErrUnknownAddressType)
	case witnessVersion != 0 && bech32Version != bech32.VersionM:
		return nil, fmt.Errorf("%w: version %d program with bech32 checksum",
			ErrUnknownAddressType, witnessVersion)
	}

	switch {
	case witnessVersion == 0 && len(program) == 20:
		return NewWitnessPubKeyHash(program, net)
	case witnessVersion == 0 && len(program) == 32:
		return NewWitnessScriptHash(program, net)
	case witnessVersion == 0:
		return nil, fmt.Errorf("%w: version 0 program of %d bytes",
			ErrUnknownAddressType, len(program))
	case witnessVersion == 1 && len(program) == 32:
		return NewTaproot(program, net)
	default:
		return nil, fmt.Errorf("%w: witness version %d",
			ErrUnknownAddressType, witnessVersion)
	}
}

// encodeSegwit converts a witness program to base32 groups, prepends the
// witness version and encodes with the checksum variant BIP350 requires for
// that version.
func encodeSegwit(hrp string, witnessVersion byte, program []byte) (string, error) {
	grp, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", err
	}
	data := append([]byte{witnessVersion}, grp...)

	if witnessVersion == 0 {
		return bech32.Encode(hrp, data)
	}
	return bech32.EncodeM(hrp, data)
}
