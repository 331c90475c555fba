package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebtc/txforge/engine"
	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/tx"
)

// testFlags are the standard flags minus clean stack, letting opcode tests
// leave scratch values behind.
const testFlags = engine.StandardVerifyFlags &^ engine.ScriptVerifyCleanStack

// harnessTx returns a transaction whose first input carries the given
// scriptSig.
func harnessTx(scriptSig []byte) *tx.Transaction {
	transaction := tx.NewTransaction()
	transaction.AddTxIn(tx.NewTxIn(&tx.OutPoint{}, scriptSig))
	transaction.AddTxOut(tx.NewTxOut(1_000, []byte{script.OP_TRUE}))
	return transaction
}

func runScripts(t *testing.T, scriptSig, pkScript []byte,
	flags engine.ScriptFlags) error {

	t.Helper()
	vm, err := engine.NewEngine(
		pkScript, harnessTx(scriptSig), 0, flags, 0, nil,
	)
	require.NoError(t, err)
	return vm.Execute()
}

func TestExecuteValidScripts(t *testing.T) {
	testCases := []struct {
		desc      string
		scriptSig []byte
		pkScript  []byte
	}{
		{
			desc:      "addition",
			scriptSig: []byte{script.OP_2, script.OP_3},
			pkScript:  []byte{script.OP_ADD, script.OP_5, script.OP_EQUAL},
		},
		{
			desc:      "hash equality",
			scriptSig: []byte{script.OP_DATA_1, 0x61},
			pkScript: append(
				[]byte{script.OP_SHA256, script.OP_DATA_32},
				append(
					script.Sha256([]byte{0x61}),
					script.OP_EQUAL,
				)...,
			),
		},
		{
			desc:      "conditional true branch",
			scriptSig: []byte{script.OP_1},
			pkScript: []byte{
				script.OP_IF, script.OP_7, script.OP_ELSE, script.OP_9,
				script.OP_ENDIF, script.OP_7, script.OP_EQUAL,
			},
		},
		{
			desc:      "conditional false branch",
			scriptSig: []byte{script.OP_0},
			pkScript: []byte{
				script.OP_IF, script.OP_7, script.OP_ELSE, script.OP_9,
				script.OP_ENDIF, script.OP_9, script.OP_EQUAL,
			},
		},
		{
			desc:      "alt stack round trip",
			scriptSig: []byte{script.OP_4},
			pkScript: []byte{
				script.OP_TOALTSTACK, script.OP_FROMALTSTACK,
				script.OP_4, script.OP_EQUAL,
			},
		},
		{
			desc:      "stack shuffling",
			scriptSig: []byte{script.OP_1, script.OP_2, script.OP_3},
			pkScript: []byte{
				script.OP_ROT, script.OP_DROP, script.OP_DROP,
				script.OP_2, script.OP_EQUAL,
			},
		},
		{
			desc:      "numeric comparison",
			scriptSig: []byte{script.OP_10, script.OP_5},
			pkScript: []byte{
				script.OP_GREATERTHAN,
			},
		},
		{
			desc:      "within range",
			scriptSig: []byte{script.OP_5, script.OP_1, script.OP_10},
			pkScript:  []byte{script.OP_WITHIN},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			require.NoError(t, runScripts(
				t, tc.scriptSig, tc.pkScript, engine.StandardVerifyFlags,
			))
		})
	}
}

func TestExecuteFailures(t *testing.T) {
	testCases := []struct {
		desc      string
		scriptSig []byte
		pkScript  []byte
		flags     engine.ScriptFlags
		code      engine.ErrorCode
	}{
		{
			desc:      "false result",
			scriptSig: []byte{script.OP_1, script.OP_2},
			pkScript:  []byte{script.OP_EQUAL},
			flags:     testFlags,
			code:      engine.ErrEvalFalse,
		},
		{
			desc:      "op return",
			scriptSig: []byte{script.OP_1},
			pkScript:  []byte{script.OP_RETURN},
			flags:     testFlags,
			code:      engine.ErrEarlyReturn,
		},
		{
			desc:      "verify failure",
			scriptSig: []byte{script.OP_0},
			pkScript:  []byte{script.OP_VERIFY},
			flags:     testFlags,
			code:      engine.ErrVerify,
		},
		{
			desc:      "unbalanced conditional",
			scriptSig: []byte{script.OP_1},
			pkScript:  []byte{script.OP_IF, script.OP_1},
			flags:     testFlags,
			code:      engine.ErrUnbalancedConditional,
		},
		{
			desc: "disabled opcode",
			scriptSig: []byte{
				script.OP_DATA_2, 0x01, 0x01,
				script.OP_DATA_2, 0x02, 0x02,
			},
			pkScript: []byte{script.OP_CAT},
			flags:    testFlags,
			code:     engine.ErrDisabledOpcode,
		},
		{
			desc:      "empty stack pop",
			scriptSig: nil,
			pkScript:  []byte{script.OP_DROP},
			flags:     testFlags,
			code:      engine.ErrInvalidStackOperation,
		},
		{
			desc:      "dirty stack with clean stack flag",
			scriptSig: []byte{script.OP_1, script.OP_1},
			pkScript:  []byte{script.OP_1},
			flags:     engine.StandardVerifyFlags,
			code:      engine.ErrCleanStack,
		},
		{
			desc:      "non-minimal push",
			scriptSig: []byte{script.OP_PUSHDATA1, 0x01, 0x07},
			pkScript:  []byte{script.OP_7, script.OP_EQUAL},
			flags:     testFlags,
			code:      engine.ErrMinimalData,
		},
		{
			// The push itself is minimal, only the operand breaks the
			// minimal if rule.
			desc:      "non-minimal if operand",
			scriptSig: []byte{script.OP_DATA_2, 0x01, 0x01},
			pkScript:  []byte{script.OP_IF, script.OP_1, script.OP_ENDIF},
			flags:     testFlags,
			code:      engine.ErrMinimalIf,
		},
		{
			desc:      "discouraged nop",
			scriptSig: []byte{script.OP_1},
			pkScript:  []byte{script.OP_NOP1},
			flags:     testFlags | engine.ScriptDiscourageUpgradableNops,
			code:      engine.ErrDiscourageUpgradableNOPs,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := runScripts(t, tc.scriptSig, tc.pkScript, tc.flags)
			require.Error(t, err)
			require.True(t, engine.IsErrorCode(err, tc.code),
				"got %v, want code %d", err, tc.code)
		})
	}
}

func TestExecuteP2SHMultiPushScriptSig(t *testing.T) {
	// A pay-to-script-hash spend whose scriptSig carries several pushes
	// ahead of the redeem script. The script-hash check phase necessarily
	// finishes with more than one stack item, so the clean stack rule may
	// only be applied after the redeem script itself.
	redeemScript, err := script.NewBuilder().
		AddOp(script.OP_ADD).
		AddOp(script.OP_3).
		AddOp(script.OP_EQUAL).
		Script()
	require.NoError(t, err)

	pkScript, err := script.PayToScriptHash(script.Hash160(redeemScript))
	require.NoError(t, err)

	scriptSig, err := script.NewBuilder().
		AddOp(script.OP_1).
		AddOp(script.OP_2).
		AddData(redeemScript).
		Script()
	require.NoError(t, err)

	require.NoError(t, runScripts(
		t, scriptSig, pkScript, engine.StandardVerifyFlags,
	))

	t.Run("redeem script leaves dirty stack", func(t *testing.T) {
		dirtyRedeem, err := script.NewBuilder().
			AddOp(script.OP_DUP).
			Script()
		require.NoError(t, err)

		pkScript, err := script.PayToScriptHash(script.Hash160(dirtyRedeem))
		require.NoError(t, err)

		scriptSig, err := script.NewBuilder().
			AddOp(script.OP_1).
			AddData(dirtyRedeem).
			Script()
		require.NoError(t, err)

		err = runScripts(t, scriptSig, pkScript, engine.StandardVerifyFlags)
		require.True(t, engine.IsErrorCode(err, engine.ErrCleanStack))
	})
}

func TestCheckLockTimeVerify(t *testing.T) {
	pkScript, err := script.NewBuilder().
		AddInt64(800_000).
		AddOp(script.OP_CHECKLOCKTIMEVERIFY).
		AddOp(script.OP_DROP).
		AddOp(script.OP_TRUE).
		Script()
	require.NoError(t, err)

	t.Run("satisfied", func(t *testing.T) {
		transaction := harnessTx(nil)
		transaction.LockTime = 800_000
		transaction.TxIn[0].Sequence = 0

		vm, err := engine.NewEngine(
			pkScript, transaction, 0, engine.StandardVerifyFlags, 0, nil,
		)
		require.NoError(t, err)
		require.NoError(t, vm.Execute())
	})

	t.Run("locktime too low", func(t *testing.T) {
		transaction := harnessTx(nil)
		transaction.LockTime = 799_999
		transaction.TxIn[0].Sequence = 0

		vm, err := engine.NewEngine(
			pkScript, transaction, 0, engine.StandardVerifyFlags, 0, nil,
		)
		require.NoError(t, err)
		err = vm.Execute()
		require.True(t, engine.IsErrorCode(err, engine.ErrUnsatisfiedLockTime))
	})

	t.Run("finalized input", func(t *testing.T) {
		transaction := harnessTx(nil)
		transaction.LockTime = 800_000

		// A final sequence disables locktime enforcement, so the
		// check must fail rather than silently pass.
		vm, err := engine.NewEngine(
			pkScript, transaction, 0, engine.StandardVerifyFlags, 0, nil,
		)
		require.NoError(t, err)
		err = vm.Execute()
		require.True(t, engine.IsErrorCode(err, engine.ErrUnsatisfiedLockTime))
	})
}

func TestCheckSequenceVerify(t *testing.T) {
	pkScript, err := script.NewBuilder().
		AddInt64(144).
		AddOp(script.OP_CHECKSEQUENCEVERIFY).
		AddOp(script.OP_DROP).
		AddOp(script.OP_TRUE).
		Script()
	require.NoError(t, err)

	t.Run("satisfied", func(t *testing.T) {
		transaction := harnessTx(nil)
		transaction.TxIn[0].Sequence = 144

		vm, err := engine.NewEngine(
			pkScript, transaction, 0, engine.StandardVerifyFlags, 0, nil,
		)
		require.NoError(t, err)
		require.NoError(t, vm.Execute())
	})

	t.Run("sequence too low", func(t *testing.T) {
		transaction := harnessTx(nil)
		transaction.TxIn[0].Sequence = 143

		vm, err := engine.NewEngine(
			pkScript, transaction, 0, engine.StandardVerifyFlags, 0, nil,
		)
		require.NoError(t, err)
		err = vm.Execute()
		require.True(t, engine.IsErrorCode(err, engine.ErrUnsatisfiedLockTime))
	})
}

func TestNewEngineRejectsBadInput(t *testing.T) {
	t.Run("index out of range", func(t *testing.T) {
		_, err := engine.NewEngine(
			[]byte{script.OP_TRUE}, harnessTx(nil), 2,
			engine.StandardVerifyFlags, 0, nil,
		)
		require.True(t, engine.IsErrorCode(err, engine.ErrInvalidIndex))
	})

	t.Run("unparsable script", func(t *testing.T) {
		_, err := engine.NewEngine(
			[]byte{script.OP_DATA_5, 0x01}, harnessTx(nil), 0,
			engine.StandardVerifyFlags, 0, nil,
		)
		require.Error(t, err)
	})

	t.Run("witness on non-witness output", func(t *testing.T) {
		transaction := harnessTx(nil)
		transaction.TxIn[0].Witness = tx.Witness{{0x01}}

		_, err := engine.NewEngine(
			[]byte{script.OP_TRUE}, transaction, 0,
			engine.StandardVerifyFlags, 0, nil,
		)
		require.True(t, engine.IsErrorCode(err, engine.ErrWitnessUnexpected))
	})

	t.Run("witness program with scriptSig", func(t *testing.T) {
		pkScript, err := script.PayToWitnessPubKeyHash(make([]byte, 20))
		require.NoError(t, err)

		_, err = engine.NewEngine(
			pkScript, harnessTx([]byte{script.OP_TRUE}), 0,
			engine.StandardVerifyFlags, 0, nil,
		)
		require.True(t, engine.IsErrorCode(err, engine.ErrWitnessMalleated))
	})
}

func TestStepCallback(t *testing.T) {
	transaction := harnessTx([]byte{script.OP_2, script.OP_3})
	pkScript := []byte{script.OP_ADD, script.OP_5, script.OP_EQUAL}

	vm, err := engine.NewEngine(
		pkScript, transaction, 0, engine.StandardVerifyFlags, 0, nil,
	)
	require.NoError(t, err)

	var steps int
	vm.SetStepCallback(func(info *engine.StepInfo) error {
		steps++
		return nil
	})

	require.NoError(t, vm.Execute())
	// Two scriptSig pushes plus three pkScript opcodes.
	require.Equal(t, 5, steps)
}

func TestDisasmString(t *testing.T) {
	scr, err := script.NewBuilder().
		AddOp(script.OP_DUP).
		AddOp(script.OP_HASH160).
		AddData(make([]byte, 20)).
		AddOp(script.OP_EQUALVERIFY).
		AddOp(script.OP_CHECKSIG).
		Script()
	require.NoError(t, err)

	dis := script.Disasm(scr)
	require.Contains(t, dis, "OP_DUP")
	require.Contains(t, dis, "OP_HASH160")
	require.Contains(t, dis, "OP_CHECKSIG")
}
