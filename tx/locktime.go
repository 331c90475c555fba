package tx

import (
	"fmt"

	"github.com/forgebtc/txforge/script"
)

const (
	SequenceLockTimeMask        = 0x0000ffff
	SequenceLockTimeTypeFlag    = 1 << 22
	SequenceLockTimeGranularity = 9
	SecondsMod                  = 1 << SequenceLockTimeGranularity
	SecondsMax                  = SequenceLockTimeMask << SequenceLockTimeGranularity
	SequenceLockTimeDisableFlag = 1 << 31

	// Below this value an nLockTime is interpreted as a block height,
	// at or above it as a unix timestamp.
	LockTimeThreshold = 500_000_000
)

// RelativeLocktimeType distinguishes the two BIP68 relative lock encodings.
type RelativeLocktimeType uint

const (
	LocktimeTypeSecond RelativeLocktimeType = iota
	LocktimeTypeBlock
)

// RelativeLocktime is a BIP68 relative timelock value, carried by an input's
// sequence number and enforced by OP_CHECKSEQUENCEVERIFY.
type RelativeLocktime struct {
	Type  RelativeLocktimeType
	Value uint32
}

// AbsoluteLocktime is an nLockTime value, enforced by
// OP_CHECKLOCKTIMEVERIFY against the transaction locktime field.
type AbsoluteLocktime uint32

// IsSeconds reports whether the locktime is a unix timestamp rather than a
// block height.
func (l AbsoluteLocktime) IsSeconds() bool {
	return l >= LockTimeThreshold
}

// Sequence encodes the relative locktime into an input sequence number per
// BIP68. Second-based locks are floored to the 512s granularity.
func (l RelativeLocktime) Sequence() (uint32, error) {
	if l.Type == LocktimeTypeSecond {
		seconds := l.Value - (l.Value % SecondsMod)
		if seconds > SecondsMax {
			return 0, fmt.Errorf("relative lock of %d seconds exceeds max %d",
				seconds, SecondsMax)
		}
		return SequenceLockTimeTypeFlag | (seconds >> SequenceLockTimeGranularity), nil
	}
	if l.Value > SequenceLockTimeMask {
		return 0, fmt.Errorf("relative lock of %d blocks exceeds max %d",
			l.Value, SequenceLockTimeMask)
	}
	return l.Value, nil
}

// DecodeSequence interprets a script-number operand (as pushed before
// OP_CHECKSEQUENCEVERIFY) as a BIP68 relative locktime.
func DecodeSequence(operand []byte) (*RelativeLocktime, error) {
	num, err := script.MakeNum(operand, true, 5)
	if err != nil {
		return nil, err
	}
	seq := int64(num)
	if seq < 0 {
		return nil, fmt.Errorf("negative sequence %d", seq)
	}
	if seq&SequenceLockTimeDisableFlag != 0 {
		return nil, fmt.Errorf("sequence %d has relative locks disabled", seq)
	}
	if seq&SequenceLockTimeTypeFlag != 0 {
		seconds := (seq & SequenceLockTimeMask) << SequenceLockTimeGranularity
		return &RelativeLocktime{
			Type:  LocktimeTypeSecond,
			Value: uint32(seconds),
		}, nil
	}
	return &RelativeLocktime{
		Type:  LocktimeTypeBlock,
		Value: uint32(seq & SequenceLockTimeMask),
	}, nil
}
