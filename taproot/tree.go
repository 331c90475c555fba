package taproot

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/forgebtc/txforge/tx"
)

// BIP341 domain separation tags.
var (
	tagTapLeaf   = []byte("TapLeaf")
	tagTapBranch = []byte("TapBranch")
	tagTapTweak  = []byte("TapTweak")
)

const (
	// BaseLeafVersion is the initial tapscript leaf version.
	BaseLeafVersion byte = 0xc0
)

// Node is a node in a tapscript merkle tree: either a Leaf or a Branch.
type Node interface {
	// TapHash returns the tagged merkle hash of the node.
	TapHash() chainhash.Hash

	// Left and Right return the children, nil for leaves.
	Left() Node
	Right() Node
}

// Leaf is a single script alternative committed into the tree, identified by
// its tagged leaf hash over the leaf version and the script.
type Leaf struct {
	LeafVersion byte
	Script      []byte
}

// NewLeaf returns a leaf with an explicit leaf version.
func NewLeaf(leafVersion byte, script []byte) Leaf {
	return Leaf{LeafVersion: leafVersion, Script: script}
}

// NewBaseLeaf returns a leaf with the base tapscript version.
func NewBaseLeaf(script []byte) Leaf {
	return NewLeaf(BaseLeafVersion, script)
}

// TapHash computes TaggedHash("TapLeaf", version || compact_size(script) ||
// script).
func (l Leaf) TapHash() chainhash.Hash {
	var leafEncoding bytes.Buffer
	leafEncoding.WriteByte(l.LeafVersion)
	tx.WriteVarBytes(&leafEncoding, l.Script)
	return *chainhash.TaggedHash(tagTapLeaf, leafEncoding.Bytes())
}

// Left implements Node, always nil for a leaf.
func (l Leaf) Left() Node { return nil }

// Right implements Node, always nil for a leaf.
func (l Leaf) Right() Node { return nil }

// Branch is an internal tree node over two subtrees.
type Branch struct {
	left, right Node
}

// NewBranch combines two subtrees into a branch.
func NewBranch(left, right Node) Branch {
	return Branch{left: left, right: right}
}

// TapHash hashes the two child hashes sorted lexicographically, so the
// commitment is independent of child order.
func (b Branch) TapHash() chainhash.Hash {
	leftHash := b.left.TapHash()
	rightHash := b.right.TapHash()
	return branchHash(leftHash[:], rightHash[:])
}

// Left implements Node.
func (b Branch) Left() Node { return b.left }

// Right implements Node.
func (b Branch) Right() Node { return b.right }

// branchHash computes TaggedHash("TapBranch", sorted(l, r)).
func branchHash(l, r []byte) chainhash.Hash {
	if bytes.Compare(l, r) > 0 {
		l, r = r, l
	}
	return *chainhash.TaggedHash(tagTapBranch, l, r)
}

// LeafProof ties a leaf to its inclusion proof: the flat ordered list of
// 32-byte sibling hashes from the leaf's sibling up to the root's children.
type LeafProof struct {
	Leaf

	// RootNode is the root of the tree the leaf belongs to.
	RootNode Node

	// InclusionProof is the concatenated sibling hashes, captured during
	// tree assembly so spend-time code never walks the tree.
	InclusionProof []byte
}

// ToControlBlock completes the proof into a control block for the given
// internal key, resolving the output key parity bit.
func (p *LeafProof) ToControlBlock(internalKey *secp256k1.PublicKey) (*ControlBlock, error) {
	rootHash := p.RootNode.TapHash()
	outputKey, err := TweakPubKey(internalKey, rootHash[:])
	if err != nil {
		return nil, err
	}

	return &ControlBlock{
		InternalKey:     internalKey,
		OutputKeyYIsOdd: isOddPubKey(outputKey),
		LeafVersion:     p.LeafVersion,
		InclusionProof:  p.InclusionProof,
	}, nil
}

// IndexedTree is a fully assembled tapscript tree: the root for computing
// the commitment, plus a complete inclusion proof per leaf, addressable by
// leaf hash.
type IndexedTree struct {
	RootNode       Node
	LeafProofs     []LeafProof
	LeafProofIndex map[chainhash.Hash]int
}

// RootHash returns the merkle root committed into the output key.
func (t *IndexedTree) RootHash() chainhash.Hash {
	return t.RootNode.TapHash()
}

// AssembleTree builds the commitment tree over the given leaves and
// accumulates every leaf's inclusion proof along the way.
//
// Pairing rule, fixed and deterministic: adjacent leaves are combined left to
// right into branches; an odd trailing leaf is merged into the previous
// branch; the resulting branches are then merged pairwise in rounds until a
// single root remains. Any other pairing policy yields a different (but
// superficially valid) root, so this rule is part of the package contract.
func AssembleTree(leaves ...Leaf) (*IndexedTree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	// A lone leaf is its own root and needs no inclusion proof.
	if len(leaves) == 1 {
		leaf := leaves[0]
		return &IndexedTree{
			RootNode: leaf,
			LeafProofIndex: map[chainhash.Hash]int{
				leaf.TapHash(): 0,
			},
			LeafProofs: []LeafProof{{
				Leaf:     leaf,
				RootNode: leaf,
			}},
		}, nil
	}

	scriptTree := &IndexedTree{
		LeafProofs:     make([]LeafProof, len(leaves)),
		LeafProofIndex: make(map[chainhash.Hash]int, len(leaves)),
	}
	for i, leaf := range leaves {
		scriptTree.LeafProofIndex[leaf.TapHash()] = i
	}

	var branches []Branch
	for i := 0; i < len(leaves); i += 2 {
		// An odd trailing leaf merges into the branch built just
		// before it.
		if i == len(leaves)-1 {
			branchToMerge := branches[len(branches)-1]
			leaf := leaves[i]
			branches[len(branches)-1] = NewBranch(branchToMerge, leaf)

			branchHash := branchToMerge.TapHash()
			scriptTree.LeafProofs[i].Leaf = leaf
			scriptTree.LeafProofs[i].InclusionProof = append(
				scriptTree.LeafProofs[i].InclusionProof,
				branchHash[:]...,
			)

			lastLeafHash := leaf.TapHash()
			for _, child := range leafDescendants(branchToMerge) {
				idx := scriptTree.LeafProofIndex[child.TapHash()]
				scriptTree.LeafProofs[idx].InclusionProof = append(
					scriptTree.LeafProofs[idx].InclusionProof,
					lastLeafHash[:]...,
				)
			}
			continue
		}

		left, right := leaves[i], leaves[i+1]
		branches = append(branches, NewBranch(left, right))

		leftHash := left.TapHash()
		rightHash := right.TapHash()

		scriptTree.LeafProofs[i].Leaf = left
		scriptTree.LeafProofs[i].InclusionProof = append(
			scriptTree.LeafProofs[i].InclusionProof,
			rightHash[:]...,
		)
		scriptTree.LeafProofs[i+1].Leaf = right
		scriptTree.LeafProofs[i+1].InclusionProof = append(
			scriptTree.LeafProofs[i+1].InclusionProof,
			leftHash[:]...,
		)
	}

	// Merge branches pairwise until one root remains, extending the proof
	// of every descendant leaf with its new sibling subtree hash.
	var rootNode Node
	for len(branches) != 0 {
		if len(branches) == 1 {
			rootNode = branches[0]
			break
		}

		left, right := branches[0], branches[1]
		newBranch := NewBranch(left, right)
		branches = append(branches[2:], newBranch)

		leftHash, rightHash := left.TapHash(), right.TapHash()

		for _, leaf := range leafDescendants(left) {
			idx := scriptTree.LeafProofIndex[leaf.TapHash()]
			scriptTree.LeafProofs[idx].InclusionProof = append(
				scriptTree.LeafProofs[idx].InclusionProof,
				rightHash[:]...,
			)
		}
		for _, leaf := range leafDescendants(right) {
			idx := scriptTree.LeafProofIndex[leaf.TapHash()]
			scriptTree.LeafProofs[idx].InclusionProof = append(
				scriptTree.LeafProofs[idx].InclusionProof,
				leftHash[:]...,
			)
		}
	}

	scriptTree.RootNode = rootNode
	for i := range scriptTree.LeafProofs {
		scriptTree.LeafProofs[i].RootNode = rootNode
	}
	return scriptTree, nil
}

// leafDescendants collects the leaves of a subtree.
func leafDescendants(node Node) []Node {
	if node.Left() == nil && node.Right() == nil {
		return []Node{node}
	}
	left := leafDescendants(node.Left())
	right := leafDescendants(node.Right())
	return append(left, right...)
}
