package taproot

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// ControlBlockBaseSize is the size of a control block carrying an
	// empty inclusion proof: one byte for leaf version and parity plus
	// the 32-byte x-only internal key.
	ControlBlockBaseSize = 33

	// ControlBlockNodeSize is the size of each inclusion proof step.
	ControlBlockNodeSize = 32

	// ControlBlockMaxNodeCount bounds the inclusion proof depth.
	ControlBlockMaxNodeCount = 128

	// ControlBlockMaxSize is the largest well formed control block.
	ControlBlockMaxSize = ControlBlockBaseSize +
		ControlBlockMaxNodeCount*ControlBlockNodeSize

	// leafVersionMask extracts the leaf version bits from the control
	// block's first byte, leaving the output key parity bit behind.
	leafVersionMask = 0xfe
)

// ControlBlock is the final witness element of a tapscript spend. It reveals
// the internal key and the merkle path proving the revealed script was
// committed to by the output key.
type ControlBlock struct {
	// InternalKey is the untweaked key the output key was derived from.
	InternalKey *secp256k1.PublicKey

	// OutputKeyYIsOdd records the parity of the output key, needed to
	// reconstruct the full point from its x-only witness program form.
	OutputKeyYIsOdd bool

	// LeafVersion is the version of the revealed leaf.
	LeafVersion uint8

	// InclusionProof is the concatenated sibling hashes from the leaf up
	// to the root, 32 bytes per step.
	InclusionProof []byte
}

// ToBytes serializes the control block to its witness encoding.
func (c *ControlBlock) ToBytes() []byte {
	var buf bytes.Buffer

	versionAndParity := c.LeafVersion
	if c.OutputKeyYIsOdd {
		versionAndParity |= 0x01
	}
	buf.WriteByte(versionAndParity)
	buf.Write(schnorr.SerializePubKey(c.InternalKey))
	buf.Write(c.InclusionProof)
	return buf.Bytes()
}

// RootHash computes the merkle root committed to by this control block given
// the revealed leaf script, hashing the leaf and folding in each inclusion
// proof step with the sorted-pair branch rule.
func (c *ControlBlock) RootHash(revealedScript []byte) chainhash.Hash {
	leaf := Leaf{LeafVersion: c.LeafVersion, Script: revealedScript}
	running := leaf.TapHash()

	numNodes := len(c.InclusionProof) / ControlBlockNodeSize
	for i := 0; i < numNodes; i++ {
		sibling := c.InclusionProof[i*ControlBlockNodeSize : (i+1)*ControlBlockNodeSize]
		running = branchHash(running[:], sibling)
	}
	return running
}

// VerifyLeafCommitment checks that the revealed script, under this control
// block's inclusion proof, hashes up to a root whose tweak of the internal
// key reproduces the given output key. This is the commitment check a
// script-path spend must pass.
func (c *ControlBlock) VerifyLeafCommitment(outputKey *secp256k1.PublicKey, revealedScript []byte) error {
	rootHash := c.RootHash(revealedScript)

	expectedKey, err := TweakPubKey(c.InternalKey, rootHash[:])
	if err != nil {
		return err
	}

	if !bytes.Equal(
		schnorr.SerializePubKey(expectedKey),
		schnorr.SerializePubKey(outputKey),
	) {
		return fmt.Errorf("%w: output key does not commit to script",
			ErrMerkleProofInvalid)
	}
	if isOddPubKey(expectedKey) != c.OutputKeyYIsOdd {
		return fmt.Errorf("%w: output key parity mismatch",
			ErrMerkleProofInvalid)
	}
	return nil
}

// ParseControlBlock decodes a control block from its witness encoding.
func ParseControlBlock(ctrlBlock []byte) (*ControlBlock, error) {
	switch {
	case len(ctrlBlock) < ControlBlockBaseSize:
		return nil, fmt.Errorf("%w: %d bytes is below the %d byte minimum",
			ErrInvalidControlBlock, len(ctrlBlock), ControlBlockBaseSize)
	case len(ctrlBlock) > ControlBlockMaxSize:
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte maximum",
			ErrInvalidControlBlock, len(ctrlBlock), ControlBlockMaxSize)
	case (len(ctrlBlock)-ControlBlockBaseSize)%ControlBlockNodeSize != 0:
		return nil, fmt.Errorf("%w: inclusion proof is not a whole number "+
			"of %d byte nodes", ErrInvalidControlBlock, ControlBlockNodeSize)
	}

	leafVersion := ctrlBlock[0] & leafVersionMask
	outputKeyYIsOdd := ctrlBlock[0]&0x01 == 0x01

	internalKey, err := schnorr.ParsePubKey(ctrlBlock[1:ControlBlockBaseSize])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidControlBlock, err)
	}

	return &ControlBlock{
		InternalKey:     internalKey,
		OutputKeyYIsOdd: outputKeyYIsOdd,
		LeafVersion:     leafVersion,
		InclusionProof:  ctrlBlock[ControlBlockBaseSize:],
	}, nil
}
