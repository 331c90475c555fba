package script_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebtc/txforge/script"
)

// genPubKeyHash is hash160 of the secp256k1 generator point's compressed
// serialization, the program used by the BIP173 example addresses.
const genPubKeyHash = "751e76e8199196d454941c45d1b3a323f1433bd6"

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecodeEncodeRoundTrip(t *testing.T) {
	pubKeyHash := mustHex(t, genPubKeyHash)

	p2pkh, err := script.PayToPubKeyHash(pubKeyHash)
	require.NoError(t, err)

	multisig, err := script.MultiSig(2, [][]byte{
		bytes.Repeat([]byte{0x02}, 33),
		bytes.Repeat([]byte{0x03}, 33),
		append([]byte{0x02}, bytes.Repeat([]byte{0x01}, 32)...),
	})
	require.NoError(t, err)

	csv, err := script.CheckSequenceVerify(144, pubKeyHash)
	require.NoError(t, err)

	bigPush, err := script.NewBuilder().
		AddData(bytes.Repeat([]byte{0xab}, 200)).
		AddOp(script.OP_DROP).
		AddOp(script.OP_TRUE).
		Script()
	require.NoError(t, err)

	for _, scr := range [][]byte{p2pkh, multisig, csv, bigPush} {
		elements, err := script.Decode(scr)
		require.NoError(t, err)

		encoded, err := script.Encode(elements)
		require.NoError(t, err)
		require.Equal(t, scr, encoded)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	testCases := []struct {
		desc   string
		script []byte
	}{
		{
			desc:   "direct push past end",
			script: []byte{script.OP_DATA_5, 0x01, 0x02, 0x03},
		},
		{
			desc:   "pushdata1 missing length byte",
			script: []byte{script.OP_PUSHDATA1},
		},
		{
			desc: "pushdata2 length exceeds remainder",
			script: []byte{
				script.OP_PUSHDATA2, 0xff, 0x00, 0x01,
			},
		},
		{
			desc:   "unknown opcode",
			script: []byte{script.OP_DUP, 0xbb},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := script.Decode(tc.script)
			require.ErrorIs(t, err, script.ErrMalformedScript)
		})
	}
}

func TestBuilderMinimalPushes(t *testing.T) {
	testCases := []struct {
		desc     string
		data     []byte
		expected []byte
	}{
		{"empty", nil, []byte{script.OP_0}},
		{"one", []byte{0x01}, []byte{script.OP_1}},
		{"sixteen", []byte{0x10}, []byte{script.OP_16}},
		{"minus one", []byte{0x81}, []byte{script.OP_1NEGATE}},
		{"seventeen", []byte{0x11}, []byte{script.OP_DATA_1, 0x11}},
		{
			"75 bytes",
			bytes.Repeat([]byte{0xaa}, 75),
			append([]byte{script.OP_DATA_75}, bytes.Repeat([]byte{0xaa}, 75)...),
		},
		{
			"76 bytes",
			bytes.Repeat([]byte{0xaa}, 76),
			append(
				[]byte{script.OP_PUSHDATA1, 76},
				bytes.Repeat([]byte{0xaa}, 76)...,
			),
		},
		{
			"256 bytes",
			bytes.Repeat([]byte{0xaa}, 256),
			append(
				[]byte{script.OP_PUSHDATA2, 0x00, 0x01},
				bytes.Repeat([]byte{0xaa}, 256)...,
			),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			scr, err := script.NewBuilder().AddData(tc.data).Script()
			require.NoError(t, err)
			require.Equal(t, tc.expected, scr)
		})
	}
}

func TestBuilderAddInt64(t *testing.T) {
	testCases := []struct {
		val      int64
		expected []byte
	}{
		{0, []byte{script.OP_0}},
		{-1, []byte{script.OP_1NEGATE}},
		{16, []byte{script.OP_16}},
		{17, []byte{script.OP_DATA_1, 17}},
		{127, []byte{script.OP_DATA_1, 0x7f}},
		{128, []byte{script.OP_DATA_2, 0x80, 0x00}},
		{-128, []byte{script.OP_DATA_2, 0x80, 0x80}},
		{1000, []byte{script.OP_DATA_2, 0xe8, 0x03}},
		{500_000_000, []byte{script.OP_DATA_4, 0x00, 0x65, 0xcd, 0x1d}},
	}

	for _, tc := range testCases {
		scr, err := script.NewBuilder().AddInt64(tc.val).Script()
		require.NoError(t, err)
		require.Equal(t, tc.expected, scr, "value %d", tc.val)
	}
}

func TestBuilderRejectsOversizedElement(t *testing.T) {
	_, err := script.NewBuilder().
		AddData(bytes.Repeat([]byte{0x00}, script.MaxScriptElementSize+1)).
		Script()
	require.ErrorIs(t, err, script.ErrElementTooLarge)
}

func TestStandardScripts(t *testing.T) {
	pubKeyHash := mustHex(t, genPubKeyHash)

	p2pkh, err := script.PayToPubKeyHash(pubKeyHash)
	require.NoError(t, err)
	require.Equal(t,
		mustHex(t, "76a914751e76e8199196d454941c45d1b3a323f1433bd688ac"),
		p2pkh,
	)
	require.True(t, script.IsPayToPubKeyHash(p2pkh))
	require.Equal(t, script.PubKeyHashTy, script.GetScriptClass(p2pkh))

	p2wpkh, err := script.PayToWitnessPubKeyHash(pubKeyHash)
	require.NoError(t, err)
	require.Equal(t,
		mustHex(t, "0014751e76e8199196d454941c45d1b3a323f1433bd6"),
		p2wpkh,
	)
	require.True(t, script.IsPayToWitnessPubKeyHash(p2wpkh))

	version, program, ok := script.ExtractWitnessProgram(p2wpkh)
	require.True(t, ok)
	require.Equal(t, 0, version)
	require.Equal(t, pubKeyHash, program)

	outputKey := bytes.Repeat([]byte{0x55}, 32)
	p2tr, err := script.PayToTaproot(outputKey)
	require.NoError(t, err)
	require.True(t, script.IsPayToTaproot(p2tr))

	version, program, ok = script.ExtractWitnessProgram(p2tr)
	require.True(t, ok)
	require.Equal(t, 1, version)
	require.Equal(t, outputKey, program)

	redeem, err := script.MultiSig(1, [][]byte{bytes.Repeat([]byte{0x02}, 33)})
	require.NoError(t, err)
	p2sh, err := script.PayToScriptHash(script.Hash160(redeem))
	require.NoError(t, err)
	require.True(t, script.IsPayToScriptHash(p2sh))
	require.Equal(t, script.ScriptHashTy, script.GetScriptClass(p2sh))
}

func TestScriptNum(t *testing.T) {
	testCases := []struct {
		num     script.Num
		encoded []byte
	}{
		{0, nil},
		{1, []byte{0x01}},
		{-1, []byte{0x81}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x00}},
		{-127, []byte{0xff}},
		{-128, []byte{0x80, 0x80}},
		{32767, []byte{0xff, 0x7f}},
		{65535, []byte{0xff, 0xff, 0x00}},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.encoded, tc.num.Bytes(), "encoding %d", tc.num)

		decoded, err := script.MakeNum(tc.encoded, true, 4)
		require.NoError(t, err)
		require.Equal(t, tc.num, decoded)
	}

	// Non-minimal encodings are rejected when minimality is required and
	// accepted otherwise.
	_, err := script.MakeNum([]byte{0x01, 0x00}, true, 4)
	require.Error(t, err)
	n, err := script.MakeNum([]byte{0x01, 0x00}, false, 4)
	require.NoError(t, err)
	require.Equal(t, script.Num(1), n)

	// Encodings longer than numLen are rejected.
	_, err = script.MakeNum([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, true, 4)
	require.Error(t, err)
}
