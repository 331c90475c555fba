package tx_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/tx"
)

func TestRelativeLocktimeSequence(t *testing.T) {
	testCases := []struct {
		desc     string
		lock     tx.RelativeLocktime
		expected uint32
	}{
		{
			desc:     "one block",
			lock:     tx.RelativeLocktime{Type: tx.LocktimeTypeBlock, Value: 1},
			expected: 1,
		},
		{
			desc:     "max blocks",
			lock:     tx.RelativeLocktime{Type: tx.LocktimeTypeBlock, Value: 65535},
			expected: 65535,
		},
		{
			desc:     "512 seconds is one granule",
			lock:     tx.RelativeLocktime{Type: tx.LocktimeTypeSecond, Value: 512},
			expected: tx.SequenceLockTimeTypeFlag | 1,
		},
		{
			desc:     "seconds floor to granularity",
			lock:     tx.RelativeLocktime{Type: tx.LocktimeTypeSecond, Value: 1000},
			expected: tx.SequenceLockTimeTypeFlag | 1,
		},
		{
			desc:     "one day",
			lock:     tx.RelativeLocktime{Type: tx.LocktimeTypeSecond, Value: 86400},
			expected: tx.SequenceLockTimeTypeFlag | (86400 >> tx.SequenceLockTimeGranularity),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			seq, err := tc.lock.Sequence()
			require.NoError(t, err)
			require.Equal(t, tc.expected, seq)

			decoded, err := tx.DecodeSequence(script.Num(int64(seq)).Bytes())
			require.NoError(t, err)
			require.Equal(t, tc.lock.Type, decoded.Type)

			// Second locks decode to the floored value.
			expectedValue := tc.lock.Value
			if tc.lock.Type == tx.LocktimeTypeSecond {
				expectedValue -= expectedValue % tx.SecondsMod
			}
			require.Equal(t, expectedValue, decoded.Value)
		})
	}
}

func TestRelativeLocktimeRejectsOverflow(t *testing.T) {
	_, err := tx.RelativeLocktime{
		Type: tx.LocktimeTypeBlock, Value: 65536,
	}.Sequence()
	require.Error(t, err)

	_, err = tx.RelativeLocktime{
		Type: tx.LocktimeTypeSecond, Value: tx.SecondsMax + tx.SecondsMod,
	}.Sequence()
	require.Error(t, err)
}

func TestDecodeSequenceRejectsDisabled(t *testing.T) {
	operand := script.Num(int64(tx.SequenceLockTimeDisableFlag)).Bytes()
	_, err := tx.DecodeSequence(operand)
	require.Error(t, err)

	_, err = tx.DecodeSequence(script.Num(-1).Bytes())
	require.Error(t, err)
}

func TestAbsoluteLocktime(t *testing.T) {
	require.False(t, tx.AbsoluteLocktime(499_999_999).IsSeconds())
	require.True(t, tx.AbsoluteLocktime(500_000_000).IsSeconds())
}
