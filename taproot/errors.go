package taproot

import "errors"

var (
	// ErrEmptyTree is returned when a script tree is assembled from zero
	// leaves. Key-path-only outputs commit to an empty merkle root
	// instead of an empty tree.
	ErrEmptyTree = errors.New("script tree has no leaves")

	// ErrInvalidTweak is returned when the computed tweak scalar is not
	// within the curve order. Cryptographically negligible, still checked.
	ErrInvalidTweak = errors.New("tweak scalar out of range")

	// ErrInvalidControlBlock is returned when control block bytes do not
	// parse: bad length, or an inclusion proof that is not a whole number
	// of 32-byte nodes.
	ErrInvalidControlBlock = errors.New("invalid control block")

	// ErrMerkleProofInvalid is returned when a revealed script and control
	// block do not reproduce the committed output key.
	ErrMerkleProofInvalid = errors.New("taproot merkle proof invalid")
)
