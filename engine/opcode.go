// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/ripemd160"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/tx"
)

const (
	// MaxOpsPerScript is the maximum number of non-push operations per
	// script.
	MaxOpsPerScript = 201

	// MaxPubKeysPerMultiSig is the maximum number of public keys an
	// OP_CHECKMULTISIG may be given.
	MaxPubKeysPerMultiSig = 20
)

// An opcode defines the information related to an opcode. opfunc is the
// function to call to perform the opcode on the script.
type opcode struct {
	value  byte
	name   string
	opfunc func(*opcode, []byte, *Engine) error
}

// opcodeArray holds the handler function for every possible opcode value.
// Data push opcodes and the unknown range are filled in by init.
var opcodeArray = [256]opcode{
	script.OP_0:        {script.OP_0, "OP_0", opcodeFalse},
	script.OP_1NEGATE:  {script.OP_1NEGATE, "OP_1NEGATE", opcode1Negate},
	script.OP_RESERVED: {script.OP_RESERVED, "OP_RESERVED", opcodeReserved},
	script.OP_1:        {script.OP_1, "OP_1", opcodeN},
	script.OP_2:        {script.OP_2, "OP_2", opcodeN},
	script.OP_3:        {script.OP_3, "OP_3", opcodeN},
	script.OP_4:        {script.OP_4, "OP_4", opcodeN},
	script.OP_5:        {script.OP_5, "OP_5", opcodeN},
	script.OP_6:        {script.OP_6, "OP_6", opcodeN},
	script.OP_7:        {script.OP_7, "OP_7", opcodeN},
	script.OP_8:        {script.OP_8, "OP_8", opcodeN},
	script.OP_9:        {script.OP_9, "OP_9", opcodeN},
	script.OP_10:       {script.OP_10, "OP_10", opcodeN},
	script.OP_11:       {script.OP_11, "OP_11", opcodeN},
	script.OP_12:       {script.OP_12, "OP_12", opcodeN},
	script.OP_13:       {script.OP_13, "OP_13", opcodeN},
	script.OP_14:       {script.OP_14, "OP_14", opcodeN},
	script.OP_15:       {script.OP_15, "OP_15", opcodeN},
	script.OP_16:       {script.OP_16, "OP_16", opcodeN},

	// Control opcodes.
	script.OP_NOP:                 {script.OP_NOP, "OP_NOP", opcodeNop},
	script.OP_VER:                 {script.OP_VER, "OP_VER", opcodeReserved},
	script.OP_IF:                  {script.OP_IF, "OP_IF", opcodeIf},
	script.OP_NOTIF:               {script.OP_NOTIF, "OP_NOTIF", opcodeNotIf},
	script.OP_VERIF:               {script.OP_VERIF, "OP_VERIF", opcodeReserved},
	script.OP_VERNOTIF:            {script.OP_VERNOTIF, "OP_VERNOTIF", opcodeReserved},
	script.OP_ELSE:                {script.OP_ELSE, "OP_ELSE", opcodeElse},
	script.OP_ENDIF:               {script.OP_ENDIF, "OP_ENDIF", opcodeEndif},
	script.OP_VERIFY:              {script.OP_VERIFY, "OP_VERIFY", opcodeVerify},
	script.OP_RETURN:              {script.OP_RETURN, "OP_RETURN", opcodeReturn},
	script.OP_CHECKLOCKTIMEVERIFY: {script.OP_CHECKLOCKTIMEVERIFY, "OP_CHECKLOCKTIMEVERIFY", opcodeCheckLockTimeVerify},
	script.OP_CHECKSEQUENCEVERIFY: {script.OP_CHECKSEQUENCEVERIFY, "OP_CHECKSEQUENCEVERIFY", opcodeCheckSequenceVerify},

	// Stack opcodes.
	script.OP_TOALTSTACK:   {script.OP_TOALTSTACK, "OP_TOALTSTACK", opcodeToAltStack},
	script.OP_FROMALTSTACK: {script.OP_FROMALTSTACK, "OP_FROMALTSTACK", opcodeFromAltStack},
	script.OP_2DROP:        {script.OP_2DROP, "OP_2DROP", opcode2Drop},
	script.OP_2DUP:         {script.OP_2DUP, "OP_2DUP", opcode2Dup},
	script.OP_3DUP:         {script.OP_3DUP, "OP_3DUP", opcode3Dup},
	script.OP_2OVER:        {script.OP_2OVER, "OP_2OVER", opcode2Over},
	script.OP_2ROT:         {script.OP_2ROT, "OP_2ROT", opcode2Rot},
	script.OP_2SWAP:        {script.OP_2SWAP, "OP_2SWAP", opcode2Swap},
	script.OP_IFDUP:        {script.OP_IFDUP, "OP_IFDUP", opcodeIfDup},
	script.OP_DEPTH:        {script.OP_DEPTH, "OP_DEPTH", opcodeDepth},
	script.OP_DROP:         {script.OP_DROP, "OP_DROP", opcodeDrop},
	script.OP_DUP:          {script.OP_DUP, "OP_DUP", opcodeDup},
	script.OP_NIP:          {script.OP_NIP, "OP_NIP", opcodeNip},
	script.OP_OVER:         {script.OP_OVER, "OP_OVER", opcodeOver},
	script.OP_PICK:         {script.OP_PICK, "OP_PICK", opcodePick},
	script.OP_ROLL:         {script.OP_ROLL, "OP_ROLL", opcodeRoll},
	script.OP_ROT:          {script.OP_ROT, "OP_ROT", opcodeRot},
	script.OP_SWAP:         {script.OP_SWAP, "OP_SWAP", opcodeSwap},
	script.OP_TUCK:         {script.OP_TUCK, "OP_TUCK", opcodeTuck},

	// Splice opcodes.
	script.OP_CAT:    {script.OP_CAT, "OP_CAT", opcodeDisabled},
	script.OP_SUBSTR: {script.OP_SUBSTR, "OP_SUBSTR", opcodeDisabled},
	script.OP_LEFT:   {script.OP_LEFT, "OP_LEFT", opcodeDisabled},
	script.OP_RIGHT:  {script.OP_RIGHT, "OP_RIGHT", opcodeDisabled},
	script.OP_SIZE:   {script.OP_SIZE, "OP_SIZE", opcodeSize},

	// Bitwise logic opcodes.
	script.OP_INVERT:      {script.OP_INVERT, "OP_INVERT", opcodeDisabled},
	script.OP_AND:         {script.OP_AND, "OP_AND", opcodeDisabled},
	script.OP_OR:          {script.OP_OR, "OP_OR", opcodeDisabled},
	script.OP_XOR:         {script.OP_XOR, "OP_XOR", opcodeDisabled},
	script.OP_EQUAL:       {script.OP_EQUAL, "OP_EQUAL", opcodeEqual},
	script.OP_EQUALVERIFY: {script.OP_EQUALVERIFY, "OP_EQUALVERIFY", opcodeEqualVerify},
	script.OP_RESERVED1:   {script.OP_RESERVED1, "OP_RESERVED1", opcodeReserved},
	script.OP_RESERVED2:   {script.OP_RESERVED2, "OP_RESERVED2", opcodeReserved},

	// Numeric related opcodes.
	script.OP_1ADD:               {script.OP_1ADD, "OP_1ADD", opcode1Add},
	script.OP_1SUB:               {script.OP_1SUB, "OP_1SUB", opcode1Sub},
	script.OP_2MUL:               {script.OP_2MUL, "OP_2MUL", opcodeDisabled},
	script.OP_2DIV:               {script.OP_2DIV, "OP_2DIV", opcodeDisabled},
	script.OP_NEGATE:             {script.OP_NEGATE, "OP_NEGATE", opcodeNegate},
	script.OP_ABS:                {script.OP_ABS, "OP_ABS", opcodeAbs},
	script.OP_NOT:                {script.OP_NOT, "OP_NOT", opcodeNot},
	script.OP_0NOTEQUAL:          {script.OP_0NOTEQUAL, "OP_0NOTEQUAL", opcode0NotEqual},
	script.OP_ADD:                {script.OP_ADD, "OP_ADD", opcodeAdd},
	script.OP_SUB:                {script.OP_SUB, "OP_SUB", opcodeSub},
	script.OP_MUL:                {script.OP_MUL, "OP_MUL", opcodeDisabled},
	script.OP_DIV:                {script.OP_DIV, "OP_DIV", opcodeDisabled},
	script.OP_MOD:                {script.OP_MOD, "OP_MOD", opcodeDisabled},
	script.OP_LSHIFT:             {script.OP_LSHIFT, "OP_LSHIFT", opcodeDisabled},
	script.OP_RSHIFT:             {script.OP_RSHIFT, "OP_RSHIFT", opcodeDisabled},
	script.OP_BOOLAND:            {script.OP_BOOLAND, "OP_BOOLAND", opcodeBoolAnd},
	script.OP_BOOLOR:             {script.OP_BOOLOR, "OP_BOOLOR", opcodeBoolOr},
	script.OP_NUMEQUAL:           {script.OP_NUMEQUAL, "OP_NUMEQUAL", opcodeNumEqual},
	script.OP_NUMEQUALVERIFY:     {script.OP_NUMEQUALVERIFY, "OP_NUMEQUALVERIFY", opcodeNumEqualVerify},
	script.OP_NUMNOTEQUAL:        {script.OP_NUMNOTEQUAL, "OP_NUMNOTEQUAL", opcodeNumNotEqual},
	script.OP_LESSTHAN:           {script.OP_LESSTHAN, "OP_LESSTHAN", opcodeLessThan},
	script.OP_GREATERTHAN:        {script.OP_GREATERTHAN, "OP_GREATERTHAN", opcodeGreaterThan},
	script.OP_LESSTHANOREQUAL:    {script.OP_LESSTHANOREQUAL, "OP_LESSTHANOREQUAL", opcodeLessThanOrEqual},
	script.OP_GREATERTHANOREQUAL: {script.OP_GREATERTHANOREQUAL, "OP_GREATERTHANOREQUAL", opcodeGreaterThanOrEqual},
	script.OP_MIN:                {script.OP_MIN, "OP_MIN", opcodeMin},
	script.OP_MAX:                {script.OP_MAX, "OP_MAX", opcodeMax},
	script.OP_WITHIN:             {script.OP_WITHIN, "OP_WITHIN", opcodeWithin},

	// Crypto opcodes.
	script.OP_RIPEMD160:           {script.OP_RIPEMD160, "OP_RIPEMD160", opcodeRipemd160},
	script.OP_SHA1:                {script.OP_SHA1, "OP_SHA1", opcodeSha1},
	script.OP_SHA256:              {script.OP_SHA256, "OP_SHA256", opcodeSha256},
	script.OP_HASH160:             {script.OP_HASH160, "OP_HASH160", opcodeHash160},
	script.OP_HASH256:             {script.OP_HASH256, "OP_HASH256", opcodeHash256},
	script.OP_CODESEPARATOR:       {script.OP_CODESEPARATOR, "OP_CODESEPARATOR", opcodeCodeSeparator},
	script.OP_CHECKSIG:            {script.OP_CHECKSIG, "OP_CHECKSIG", opcodeCheckSig},
	script.OP_CHECKSIGVERIFY:      {script.OP_CHECKSIGVERIFY, "OP_CHECKSIGVERIFY", opcodeCheckSigVerify},
	script.OP_CHECKMULTISIG:       {script.OP_CHECKMULTISIG, "OP_CHECKMULTISIG", opcodeCheckMultiSig},
	script.OP_CHECKMULTISIGVERIFY: {script.OP_CHECKMULTISIGVERIFY, "OP_CHECKMULTISIGVERIFY", opcodeCheckMultiSigVerify},
	script.OP_CHECKSIGADD:         {script.OP_CHECKSIGADD, "OP_CHECKSIGADD", opcodeCheckSigAdd},

	// Reserved NOP opcodes.
	script.OP_NOP1:  {script.OP_NOP1, "OP_NOP1", opcodeNop},
	script.OP_NOP4:  {script.OP_NOP4, "OP_NOP4", opcodeNop},
	script.OP_NOP5:  {script.OP_NOP5, "OP_NOP5", opcodeNop},
	script.OP_NOP6:  {script.OP_NOP6, "OP_NOP6", opcodeNop},
	script.OP_NOP7:  {script.OP_NOP7, "OP_NOP7", opcodeNop},
	script.OP_NOP8:  {script.OP_NOP8, "OP_NOP8", opcodeNop},
	script.OP_NOP9:  {script.OP_NOP9, "OP_NOP9", opcodeNop},
	script.OP_NOP10: {script.OP_NOP10, "OP_NOP10", opcodeNop},
}

func init() {
	for op := script.OP_DATA_1; op <= script.OP_PUSHDATA4; op++ {
		opcodeArray[op] = opcode{byte(op), script.OpcodeName(byte(op)), opcodePushData}
	}
	for op := script.OP_CHECKSIGADD + 1; op <= 0xff; op++ {
		opcodeArray[op] = opcode{byte(op), script.OpcodeName(byte(op)), opcodeInvalid}
	}
}

// *******************************************
// Opcode implementation functions start here.
// *******************************************

// opcodeDisabled is a common handler for disabled opcodes. While it would
// ordinarily make more sense to detect if the script contains any disabled
// opcodes before executing in an initial parse step, the consensus rules
// dictate the script doesn't fail until the program counter passes over a
// disabled opcode (even when they appear in a branch that is not executed).
func opcodeDisabled(op *opcode, data []byte, vm *Engine) error {
	str := fmt.Sprintf("attempt to execute disabled opcode %s", op.name)
	return scriptError(ErrDisabledOpcode, str)
}

// opcodeReserved is a common handler for all reserved opcodes.
func opcodeReserved(op *opcode, data []byte, vm *Engine) error {
	str := fmt.Sprintf("attempt to execute reserved opcode %s", op.name)
	return scriptError(ErrReservedOpcode, str)
}

// opcodeInvalid is a common handler for all invalid opcodes.
func opcodeInvalid(op *opcode, data []byte, vm *Engine) error {
	str := fmt.Sprintf("attempt to execute invalid opcode %s", op.name)
	return scriptError(ErrReservedOpcode, str)
}

// opcodeFalse pushes an empty array to the data stack to represent false.
// Note that 0, when encoded as a number according to the numeric encoding
// consensus rules, is an empty array.
func opcodeFalse(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushByteArray(nil)
	return nil
}

// opcodePushData is a common handler for the vast majority of opcodes that
// push raw data (bytes) to the data stack.
func opcodePushData(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushByteArray(data)
	return nil
}

// opcode1Negate pushes -1, encoded as a number, to the data stack.
func opcode1Negate(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushInt(script.Num(-1))
	return nil
}

// opcodeN is a common handler for the small integer data push opcodes. It
// pushes the numeric value the opcode represents (which will be from 1 to 16)
// onto the data stack.
func opcodeN(op *opcode, data []byte, vm *Engine) error {
	// The opcodes are all defined consecutively, so the numeric value is
	// the difference.
	vm.dstack.PushInt(script.Num(op.value - (script.OP_1 - 1)))
	return nil
}

// opcodeNop is a common handler for the NOP family of opcodes. As the name
// implies it generally does nothing, however, it will return an error when
// the flag to discourage use of NOPs is set for select opcodes.
func opcodeNop(op *opcode, data []byte, vm *Engine) error {
	switch op.value {
	case script.OP_NOP1, script.OP_NOP4, script.OP_NOP5,
		script.OP_NOP6, script.OP_NOP7, script.OP_NOP8,
		script.OP_NOP9, script.OP_NOP10:

		if vm.hasFlag(ScriptDiscourageUpgradableNops) {
			str := fmt.Sprintf("%v reserved for soft-fork upgrades", op.name)
			return scriptError(ErrDiscourageUpgradableNOPs, str)
		}
	}
	return nil
}

// popIfBool enforces the "minimal if" policy. In order to eliminate an
// additional source of nuisance malleability, post-segwit for version 0
// witness programs, the OP_IF and OP_NOTIF operand MUST either be an empty
// byte slice, or [0x01]. Tapscript makes the rule consensus.
func popIfBool(vm *Engine) (bool, error) {
	if !vm.taprootCtx && !vm.hasFlag(ScriptVerifyMinimalIf) {
		return vm.dstack.PopBool()
	}

	so, err := vm.dstack.PopByteArray()
	if err != nil {
		return false, err
	}

	if len(so) > 1 {
		str := fmt.Sprintf("conditional has data of length %d", len(so))
		return false, scriptError(ErrMinimalIf, str)
	}
	if len(so) == 1 && so[0] != 1 {
		str := fmt.Sprintf("conditional failed on non-bool data %x", so)
		return false, scriptError(ErrMinimalIf, str)
	}

	return asBool(so), nil
}

// opcodeIf treats the top item on the data stack as a boolean and removes it.
//
// An appropriate entry is added to the conditional stack depending on whether
// the boolean is true and whether this if is on an executing branch in order
// to allow proper execution of further opcodes depending on the conditional
// logic.
//
// Conditional stack transformation: [...] -> [... OpCondValue]
func opcodeIf(op *opcode, data []byte, vm *Engine) error {
	condVal := opCondFalse
	if vm.isBranchExecuting() {
		ok, err := popIfBool(vm)
		if err != nil {
			return err
		}
		if ok {
			condVal = opCondTrue
		}
	} else {
		condVal = opCondSkip
	}
	vm.condStack = append(vm.condStack, condVal)
	return nil
}

// opcodeNotIf is the same as opcodeIf with the boolean inverted.
//
// Conditional stack transformation: [...] -> [... OpCondValue]
func opcodeNotIf(op *opcode, data []byte, vm *Engine) error {
	condVal := opCondFalse
	if vm.isBranchExecuting() {
		ok, err := popIfBool(vm)
		if err != nil {
			return err
		}
		if !ok {
			condVal = opCondTrue
		}
	} else {
		condVal = opCondSkip
	}
	vm.condStack = append(vm.condStack, condVal)
	return nil
}

// opcodeElse inverts conditional execution for the remainder of the matching
// if block.
//
// Conditional stack transformation: [... OpCondValue] -> [... !OpCondValue]
func opcodeElse(op *opcode, data []byte, vm *Engine) error {
	if len(vm.condStack) == 0 {
		str := fmt.Sprintf("encountered opcode %s with no matching "+
			"opcode to begin conditional execution", op.name)
		return scriptError(ErrUnbalancedConditional, str)
	}

	conditionalIdx := len(vm.condStack) - 1
	switch vm.condStack[conditionalIdx] {
	case opCondTrue:
		vm.condStack[conditionalIdx] = opCondFalse
	case opCondFalse:
		vm.condStack[conditionalIdx] = opCondTrue
	case opCondSkip:
		// Value doesn't change in skip since it indicates this opcode
		// is nested in a non-executed branch.
	}
	return nil
}

// opcodeEndif terminates a conditional block, removing the value from the
// conditional execution stack.
//
// Conditional stack transformation: [... OpCondValue] -> [...]
func opcodeEndif(op *opcode, data []byte, vm *Engine) error {
	if len(vm.condStack) == 0 {
		str := fmt.Sprintf("encountered opcode %s with no matching "+
			"opcode to begin conditional execution", op.name)
		return scriptError(ErrUnbalancedConditional, str)
	}

	vm.condStack = vm.condStack[:len(vm.condStack)-1]
	return nil
}

// abstractVerify examines the top item on the data stack as a boolean value
// and verifies it evaluates to true. An error is returned either when there
// is no item on the stack or when that item evaluates to false.
func abstractVerify(op *opcode, vm *Engine, c ErrorCode) error {
	verified, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !verified {
		str := fmt.Sprintf("%s failed", op.name)
		return scriptError(c, str)
	}
	return nil
}

// opcodeVerify examines the top item on the data stack as a boolean value and
// verifies it evaluates to true.
func opcodeVerify(op *opcode, data []byte, vm *Engine) error {
	return abstractVerify(op, vm, ErrVerify)
}

// opcodeReturn returns an appropriate error since it is always an error to
// return early from a script.
func opcodeReturn(op *opcode, data []byte, vm *Engine) error {
	return scriptError(ErrEarlyReturn, "script returned early")
}

// verifyLockTime is a helper function used to validate locktimes.
func verifyLockTime(txLockTime, threshold, lockTime int64) error {
	// The lockTimes in both the script and transaction must be of the same
	// type.
	if !((txLockTime < threshold && lockTime < threshold) ||
		(txLockTime >= threshold && lockTime >= threshold)) {
		str := fmt.Sprintf("mismatched locktime types -- tx locktime %d, "+
			"stack locktime %d", txLockTime, lockTime)
		return scriptError(ErrUnsatisfiedLockTime, str)
	}

	if lockTime > txLockTime {
		str := fmt.Sprintf("locktime requirement not satisfied -- locktime "+
			"is greater than the transaction locktime: %d > %d",
			lockTime, txLockTime)
		return scriptError(ErrUnsatisfiedLockTime, str)
	}

	return nil
}

// opcodeCheckLockTimeVerify compares the top item on the data stack to the
// LockTime field of the transaction containing the script signature
// validating if the transaction outputs are spendable yet.
func opcodeCheckLockTimeVerify(op *opcode, data []byte, vm *Engine) error {
	// If the ScriptVerifyCheckLockTimeVerify script flag is not set, treat
	// opcode as OP_NOP2 instead.
	if !vm.hasFlag(ScriptVerifyCheckLockTimeVerify) {
		if vm.hasFlag(ScriptDiscourageUpgradableNops) {
			return scriptError(ErrDiscourageUpgradableNOPs,
				"OP_NOP2 reserved for soft-fork upgrades")
		}
		return nil
	}

	// The current transaction locktime is a uint32 resulting in a maximum
	// locktime of 2^32-1 (the year 2106). However, scriptNums are signed
	// and therefore a standard 4-byte scriptNum would only support up to a
	// maximum of 2^31-1 (the year 2038). Thus, a 5-byte scriptNum is used
	// here since it will support up to 2^39-1 which allows dates beyond the
	// current locktime limit.
	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	lockTime, err := script.MakeNum(so, vm.dstack.verifyMinimalData, 5)
	if err != nil {
		return err
	}

	// In the rare event that the argument needs to be < 0 due to some
	// arithmetic being done first, you can always use
	// 0 OP_MAX OP_CHECKLOCKTIMEVERIFY.
	if lockTime < 0 {
		str := fmt.Sprintf("negative lock time: %d", lockTime)
		return scriptError(ErrNegativeLockTime, str)
	}

	err = verifyLockTime(int64(vm.tx.LockTime), tx.LockTimeThreshold,
		int64(lockTime))
	if err != nil {
		return err
	}

	// The lock time feature can also be disabled, thereby bypassing
	// OP_CHECKLOCKTIMEVERIFY, if every transaction input has been finalized
	// by setting its sequence to the maximum value.
	if vm.tx.TxIn[vm.txIdx].Sequence == tx.MaxTxInSequenceNum {
		return scriptError(ErrUnsatisfiedLockTime,
			"transaction input is finalized")
	}

	return nil
}

// opcodeCheckSequenceVerify compares the top item on the data stack to the
// sequence of the transaction input validating if the relative lock time of
// the output being spent has passed.
func opcodeCheckSequenceVerify(op *opcode, data []byte, vm *Engine) error {
	// If the ScriptVerifyCheckSequenceVerify script flag is not set, treat
	// opcode as OP_NOP3 instead.
	if !vm.hasFlag(ScriptVerifyCheckSequenceVerify) {
		if vm.hasFlag(ScriptDiscourageUpgradableNops) {
			return scriptError(ErrDiscourageUpgradableNOPs,
				"OP_NOP3 reserved for soft-fork upgrades")
		}
		return nil
	}

	// A 5-byte scriptNum for the same reason as OP_CHECKLOCKTIMEVERIFY.
	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}
	stackSequence, err := script.MakeNum(so, vm.dstack.verifyMinimalData, 5)
	if err != nil {
		return err
	}

	if stackSequence < 0 {
		str := fmt.Sprintf("negative sequence: %d", stackSequence)
		return scriptError(ErrNegativeLockTime, str)
	}

	sequence := int64(stackSequence)

	// To provide for future soft-fork extensibility, if the operand has
	// the disabled lock-time flag set, CHECKSEQUENCEVERIFY behaves as a
	// NOP.
	if sequence&int64(tx.SequenceLockTimeDisableFlag) != 0 {
		return nil
	}

	// Transaction version numbers not high enough to trigger CSV rules
	// must fail.
	if vm.tx.Version < 2 {
		str := fmt.Sprintf("invalid transaction version: %d", vm.tx.Version)
		return scriptError(ErrUnsatisfiedLockTime, str)
	}

	// Sequence numbers with their most significant bit set are not
	// consensus constrained.
	txSequence := int64(vm.tx.TxIn[vm.txIdx].Sequence)
	if txSequence&int64(tx.SequenceLockTimeDisableFlag) != 0 {
		str := fmt.Sprintf("transaction sequence has sequence "+
			"locktime disabled bit set: 0x%x", txSequence)
		return scriptError(ErrUnsatisfiedLockTime, str)
	}

	// Mask off non-consensus bits before doing comparisons.
	lockTimeMask := int64(tx.SequenceLockTimeTypeFlag |
		tx.SequenceLockTimeMask)
	return verifyLockTime(txSequence&lockTimeMask,
		tx.SequenceLockTimeTypeFlag, sequence&lockTimeMask)
}

// opcodeToAltStack removes the top item from the main data stack and pushes
// it onto the alternate data stack.
//
// Main data stack transformation: [... x1 x2 x3] -> [... x1 x2]
// Alt data stack transformation:  [... y1 y2 y3] -> [... y1 y2 y3 x3]
func opcodeToAltStack(op *opcode, data []byte, vm *Engine) error {
	so, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	vm.astack.PushByteArray(so)
	return nil
}

// opcodeFromAltStack removes the top item from the alternate data stack and
// pushes it onto the main data stack.
//
// Main data stack transformation: [... x1 x2 x3] -> [... x1 x2 x3 y3]
// Alt data stack transformation:  [... y1 y2 y3] -> [... y1 y2]
func opcodeFromAltStack(op *opcode, data []byte, vm *Engine) error {
	so, err := vm.astack.PopByteArray()
	if err != nil {
		return err
	}
	vm.dstack.PushByteArray(so)
	return nil
}

// opcode2Drop removes the top 2 items from the data stack.
//
// Stack transformation: [... x1 x2 x3] -> [... x1]
func opcode2Drop(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DropN(2)
}

// opcode2Dup duplicates the top 2 items on the data stack.
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x2 x3 x2 x3]
func opcode2Dup(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DupN(2)
}

// opcode3Dup duplicates the top 3 items on the data stack.
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x2 x3 x1 x2 x3]
func opcode3Dup(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DupN(3)
}

// opcode2Over duplicates the 2 items before the top 2 items on the data
// stack.
//
// Stack transformation: [... x1 x2 x3 x4] -> [... x1 x2 x3 x4 x1 x2]
func opcode2Over(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.OverN(2)
}

// opcode2Rot rotates the top 6 items on the data stack to the left twice.
//
// Stack transformation: [... x1 x2 x3 x4 x5 x6] -> [... x3 x4 x5 x6 x1 x2]
func opcode2Rot(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.RotN(2)
}

// opcode2Swap swaps the top 2 items on the data stack with the 2 that come
// before them.
//
// Stack transformation: [... x1 x2 x3 x4] -> [... x3 x4 x1 x2]
func opcode2Swap(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.SwapN(2)
}

// opcodeIfDup duplicates the item on the top of the data stack if it is not
// zero.
//
// Stack transformation (x1==0): [... x1] -> [... x1]
// Stack transformation (x1!=0): [... x1] -> [... x1 x1]
func opcodeIfDup(op *opcode, data []byte, vm *Engine) error {
	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}

	if asBool(so) {
		vm.dstack.PushByteArray(so)
	}
	return nil
}

// opcodeDepth pushes the depth of the data stack prior to executing this
// opcode, encoded as a number, onto the data stack.
//
// Stack transformation: [...] -> [... <num of items on the stack>]
// Example with 2 items: [x1 x2] -> [x1 x2 2]
func opcodeDepth(op *opcode, data []byte, vm *Engine) error {
	vm.dstack.PushInt(script.Num(vm.dstack.Depth()))
	return nil
}

// opcodeDrop removes the top item from the data stack.
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x2]
func opcodeDrop(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DropN(1)
}

// opcodeDup duplicates the top item on the data stack.
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x2 x3 x3]
func opcodeDup(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.DupN(1)
}

// opcodeNip removes the item before the top item on the data stack.
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x3]
func opcodeNip(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.NipN(1)
}

// opcodeOver duplicates the item before the top item on the data stack.
//
// Stack transformation: [... x1 x2 x3] -> [... x1 x2 x3 x2]
func opcodeOver(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.OverN(1)
}

// opcodePick treats the top item on the data stack as an integer and
// duplicates the item on the stack that number of items back to the top.
//
// Stack transformation: [xn ... x2 x1 x0 n] -> [xn ... x2 x1 x0 xn]
// Example with n=1: [x2 x1 x0 1] -> [x2 x1 x0 x1]
// Example with n=2: [x2 x1 x0 2] -> [x2 x1 x0 x2]
func opcodePick(op *opcode, data []byte, vm *Engine) error {
	val, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	return vm.dstack.PickN(val.Int32())
}

// opcodeRoll treats the top item on the data stack as an integer and moves
// the item on the stack that number of items back to the top.
//
// Stack transformation: [xn ... x2 x1 x0 n] -> [... x2 x1 x0 xn]
// Example with n=1: [x2 x1 x0 1] -> [x2 x0 x1]
// Example with n=2: [x2 x1 x0 2] -> [x1 x0 x2]
func opcodeRoll(op *opcode, data []byte, vm *Engine) error {
	val, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	return vm.dstack.RollN(val.Int32())
}

// opcodeRot rotates the top 3 items on the data stack to the left.
//
// Stack transformation: [... x1 x2 x3] -> [... x2 x3 x1]
func opcodeRot(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.RotN(1)
}

// opcodeSwap swaps the top two items on the stack.
//
// Stack transformation: [... x1 x2] -> [... x2 x1]
func opcodeSwap(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.SwapN(1)
}

// opcodeTuck inserts a duplicate of the top item of the data stack before the
// second-to-top item.
//
// Stack transformation: [... x1 x2] -> [... x2 x1 x2]
func opcodeTuck(op *opcode, data []byte, vm *Engine) error {
	return vm.dstack.Tuck()
}

// opcodeSize pushes the size of the top item of the data stack onto the data
// stack.
//
// Stack transformation: [... x1] -> [... x1 len(x1)]
func opcodeSize(op *opcode, data []byte, vm *Engine) error {
	so, err := vm.dstack.PeekByteArray(0)
	if err != nil {
		return err
	}

	vm.dstack.PushInt(script.Num(len(so)))
	return nil
}

// opcodeEqual removes the top 2 items of the data stack, compares them as raw
// bytes, and pushes the result, encoded as a boolean, back to the stack.
//
// Stack transformation: [... x1 x2] -> [... bool]
func opcodeEqual(op *opcode, data []byte, vm *Engine) error {
	a, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	b, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	vm.dstack.PushBool(bytes.Equal(a, b))
	return nil
}

// opcodeEqualVerify is a combination of opcodeEqual and opcodeVerify.
//
// Stack transformation: [... x1 x2] -> [... bool] -> [...]
func opcodeEqualVerify(op *opcode, data []byte, vm *Engine) error {
	err := opcodeEqual(op, data, vm)
	if err == nil {
		err = abstractVerify(op, vm, ErrEqualVerify)
	}
	return err
}

// opcode1Add treats the top item on the data stack as an integer and replaces
// it with its incremented value (plus 1).
//
// Stack transformation: [... x1 x2] -> [... x1 x2+1]
func opcode1Add(op *opcode, data []byte, vm *Engine) error {
	m, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	vm.dstack.PushInt(m + 1)
	return nil
}

// opcode1Sub treats the top item on the data stack as an integer and replaces
// it with its decremented value (minus 1).
//
// Stack transformation: [... x1 x2] -> [... x1 x2-1]
func opcode1Sub(op *opcode, data []byte, vm *Engine) error {
	m, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	vm.dstack.PushInt(m - 1)
	return nil
}

// opcodeNegate treats the top item on the data stack as an integer and
// replaces it with its negation.
//
// Stack transformation: [... x1 x2] -> [... x1 -x2]
func opcodeNegate(op *opcode, data []byte, vm *Engine) error {
	m, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	vm.dstack.PushInt(-m)
	return nil
}

// opcodeAbs treats the top item on the data stack as an integer and replaces
// it with its absolute value.
//
// Stack transformation: [... x1 x2] -> [... x1 abs(x2)]
func opcodeAbs(op *opcode, data []byte, vm *Engine) error {
	m, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if m < 0 {
		m = -m
	}
	vm.dstack.PushInt(m)
	return nil
}

// opcodeNot treats the top item on the data stack as an integer and replaces
// it with its "inverted" value (0 becomes 1, non-zero becomes 0).
//
// Stack transformation (x2==0): [... x1 0] -> [... x1 1]
// Stack transformation (x2!=0): [... x1 1] -> [... x1 0]
func opcodeNot(op *opcode, data []byte, vm *Engine) error {
	m, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if m == 0 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcode0NotEqual treats the top item on the data stack as an integer and
// replaces it with either a 0 if it is zero, or a 1 if it is not 0.
//
// Stack transformation (x2==0): [... x1 0] -> [... x1 0]
// Stack transformation (x2!=0): [... x1 1] -> [... x1 1]
func opcode0NotEqual(op *opcode, data []byte, vm *Engine) error {
	m, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if m != 0 {
		m = 1
	}
	vm.dstack.PushInt(m)
	return nil
}

// opcodeAdd treats the top two items on the data stack as integers and
// replaces them with their sum.
//
// Stack transformation: [... x1 x2] -> [... x1+x2]
func opcodeAdd(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	vm.dstack.PushInt(v0 + v1)
	return nil
}

// opcodeSub treats the top two items on the data stack as integers and
// replaces them with the result of subtracting the top entry from the
// second-to-top entry.
//
// Stack transformation: [... x1 x2] -> [... x1-x2]
func opcodeSub(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	vm.dstack.PushInt(v1 - v0)
	return nil
}

// opcodeBoolAnd treats the top two items on the data stack as integers. When
// both of them are not zero, they are replaced with a 1, otherwise a 0.
//
// Stack transformation (x1==0, x2==0): [... 0 0] -> [... 0]
// Stack transformation (x1!=0, x2==0): [... 5 0] -> [... 0]
// Stack transformation (x1==0, x2!=0): [... 0 7] -> [... 0]
// Stack transformation (x1!=0, x2!=0): [... 4 8] -> [... 1]
func opcodeBoolAnd(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v0 != 0 && v1 != 0 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcodeBoolOr treats the top two items on the data stack as integers. When
// either of them are not zero, they are replaced with a 1, otherwise a 0.
//
// Stack transformation (x1==0, x2==0): [... 0 0] -> [... 0]
// Stack transformation (x1!=0, x2==0): [... 5 0] -> [... 1]
// Stack transformation (x1==0, x2!=0): [... 0 7] -> [... 1]
// Stack transformation (x1!=0, x2!=0): [... 4 8] -> [... 1]
func opcodeBoolOr(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v0 != 0 || v1 != 0 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcodeNumEqual treats the top two items on the data stack as integers. When
// they are equal, they are replaced with a 1, otherwise a 0.
//
// Stack transformation (x1==x2): [... 5 5] -> [... 1]
// Stack transformation (x1!=x2): [... 5 7] -> [... 0]
func opcodeNumEqual(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v0 == v1 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcodeNumEqualVerify is a combination of opcodeNumEqual and opcodeVerify.
//
// Stack transformation: [... x1 x2] -> [... bool] -> [...]
func opcodeNumEqualVerify(op *opcode, data []byte, vm *Engine) error {
	err := opcodeNumEqual(op, data, vm)
	if err == nil {
		err = abstractVerify(op, vm, ErrNumEqualVerify)
	}
	return err
}

// opcodeNumNotEqual treats the top two items on the data stack as integers.
// When they are NOT equal, they are replaced with a 1, otherwise a 0.
//
// Stack transformation (x1==x2): [... 5 5] -> [... 0]
// Stack transformation (x1!=x2): [... 5 7] -> [... 1]
func opcodeNumNotEqual(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v0 != v1 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcodeLessThan treats the top two items on the data stack as integers. When
// the second-to-top item is less than the top item, they are replaced with a
// 1, otherwise a 0.
//
// Stack transformation: [... x1 x2] -> [... bool]
func opcodeLessThan(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v1 < v0 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcodeGreaterThan treats the top two items on the data stack as integers.
// When the second-to-top item is greater than the top item, they are replaced
// with a 1, otherwise a 0.
//
// Stack transformation: [... x1 x2] -> [... bool]
func opcodeGreaterThan(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v1 > v0 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcodeLessThanOrEqual treats the top two items on the data stack as
// integers. When the second-to-top item is less than or equal to the top
// item, they are replaced with a 1, otherwise a 0.
//
// Stack transformation: [... x1 x2] -> [... bool]
func opcodeLessThanOrEqual(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v1 <= v0 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcodeGreaterThanOrEqual treats the top two items on the data stack as
// integers. When the second-to-top item is greater than or equal to the top
// item, they are replaced with a 1, otherwise a 0.
//
// Stack transformation: [... x1 x2] -> [... bool]
func opcodeGreaterThanOrEqual(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v1 >= v0 {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// opcodeMin treats the top two items on the data stack as integers and
// replaces them with the minimum of the two.
//
// Stack transformation: [... x1 x2] -> [... min(x1, x2)]
func opcodeMin(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v1 < v0 {
		vm.dstack.PushInt(v1)
	} else {
		vm.dstack.PushInt(v0)
	}
	return nil
}

// opcodeMax treats the top two items on the data stack as integers and
// replaces them with the maximum of the two.
//
// Stack transformation: [... x1 x2] -> [... max(x1, x2)]
func opcodeMax(op *opcode, data []byte, vm *Engine) error {
	v0, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	v1, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if v1 > v0 {
		vm.dstack.PushInt(v1)
	} else {
		vm.dstack.PushInt(v0)
	}
	return nil
}

// opcodeWithin treats the top 3 items on the data stack as integers. When the
// value to test is within the specified range (left inclusive), they are
// replaced with a 1, otherwise a 0.
//
// The top item is the max value, the second-top-item is the minimum value,
// and the third-to-top item is the value to test.
//
// Stack transformation: [... x1 min max] -> [... bool]
func opcodeWithin(op *opcode, data []byte, vm *Engine) error {
	maxVal, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	minVal, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	x, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	if x >= minVal && x < maxVal {
		vm.dstack.PushInt(script.Num(1))
	} else {
		vm.dstack.PushInt(script.Num(0))
	}
	return nil
}

// calcHash calculates the hash of hasher over buf.
func calcHash(buf []byte, hasher hash.Hash) []byte {
	hasher.Write(buf)
	return hasher.Sum(nil)
}

// opcodeRipemd160 treats the top item of the data stack as raw bytes and
// replaces it with ripemd160(data).
//
// Stack transformation: [... x1] -> [... ripemd160(x1)]
func opcodeRipemd160(op *opcode, data []byte, vm *Engine) error {
	buf, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	vm.dstack.PushByteArray(calcHash(buf, ripemd160.New()))
	return nil
}

// opcodeSha1 treats the top item of the data stack as raw bytes and replaces
// it with sha1(data).
//
// Stack transformation: [... x1] -> [... sha1(x1)]
func opcodeSha1(op *opcode, data []byte, vm *Engine) error {
	buf, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	hash := sha1.Sum(buf)
	vm.dstack.PushByteArray(hash[:])
	return nil
}

// opcodeSha256 treats the top item of the data stack as raw bytes and
// replaces it with sha256(data).
//
// Stack transformation: [... x1] -> [... sha256(x1)]
func opcodeSha256(op *opcode, data []byte, vm *Engine) error {
	buf, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	hash := sha256.Sum256(buf)
	vm.dstack.PushByteArray(hash[:])
	return nil
}

// opcodeHash160 treats the top item of the data stack as raw bytes and
// replaces it with ripemd160(sha256(data)).
//
// Stack transformation: [... x1] -> [... ripemd160(sha256(x1))]
func opcodeHash160(op *opcode, data []byte, vm *Engine) error {
	buf, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	hash := sha256.Sum256(buf)
	vm.dstack.PushByteArray(calcHash(hash[:], ripemd160.New()))
	return nil
}

// opcodeHash256 treats the top item of the data stack as raw bytes and
// replaces it with sha256(sha256(data)).
//
// Stack transformation: [... x1] -> [... sha256(sha256(x1))]
func opcodeHash256(op *opcode, data []byte, vm *Engine) error {
	buf, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	vm.dstack.PushByteArray(chainhash.DoubleHashB(buf))
	return nil
}

// opcodeCodeSeparator stores the current script offset as the most recently
// seen OP_CODESEPARATOR, for use in signature checking.
func opcodeCodeSeparator(op *opcode, data []byte, vm *Engine) error {
	vm.lastCodeSep = vm.tokenizer.ByteIndex()
	return nil
}

// opcodeCheckSig treats the top 2 items on the stack as a public key and a
// signature and replaces them with a bool based on whether the signature was
// successfully verified through the engine's signature checker over the
// script from the most recent OP_CODESEPARATOR.
//
// Stack transformation: [... signature pubkey] -> [... bool]
func opcodeCheckSig(op *opcode, data []byte, vm *Engine) error {
	pkBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	sigBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	valid, err := vm.sigChecker.CheckSig(sigBytes, pkBytes, vm.subScript())
	if err != nil {
		return err
	}

	if !valid && vm.hasFlag(ScriptVerifyNullFail) && len(sigBytes) > 0 {
		return scriptError(ErrNullFail,
			"signature not empty on failed checksig")
	}

	vm.dstack.PushBool(valid)
	return nil
}

// opcodeCheckSigVerify is a combination of opcodeCheckSig and opcodeVerify.
//
// Stack transformation: [... signature pubkey] -> [... bool] -> [...]
func opcodeCheckSigVerify(op *opcode, data []byte, vm *Engine) error {
	err := opcodeCheckSig(op, data, vm)
	if err == nil {
		err = abstractVerify(op, vm, ErrCheckSigVerify)
	}
	return err
}

// opcodeCheckSigAdd implements the OP_CHECKSIGADD operation defined in
// BIP342, valid only during tapscript execution. It increments an
// accumulator when the signature verifies, enabling batch-friendly
// multisignature scripts.
//
// Stack transformation: [... signature num pubkey] -> [... num+(0|1)]
func opcodeCheckSigAdd(op *opcode, data []byte, vm *Engine) error {
	if !vm.taprootCtx {
		return scriptError(ErrReservedOpcode,
			"OP_CHECKSIGADD outside tapscript execution")
	}

	pkBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}
	accum, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	sigBytes, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	// An empty signature skips verification and leaves the accumulator
	// untouched.
	if len(sigBytes) == 0 {
		vm.dstack.PushInt(accum)
		return nil
	}

	valid, err := vm.sigChecker.CheckSig(sigBytes, pkBytes, vm.subScript())
	if err != nil {
		return err
	}
	if !valid {
		return scriptError(ErrNullFail,
			"signature not empty on failed checksigadd")
	}

	vm.dstack.PushInt(accum + 1)
	return nil
}

// opcodeCheckMultiSig treats the top item on the stack as an integer number
// of public keys, followed by that many entries as raw data representing the
// public keys, followed by the integer number of signatures, followed by that
// many entries as raw data representing the signatures.
//
// All of the aforementioned stack items are replaced with a bool based on
// whether the signatures were successfully verified. The opcode additionally
// consumes one extra, unused element; a quirk of the original implementation
// that is consensus now.
//
// Stack transformation:
// [... dummy [sig ...] numsigs [pubkey ...] numpubkeys] -> [... bool]
func opcodeCheckMultiSig(op *opcode, data []byte, vm *Engine) error {
	numKeys, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}

	numPubKeys := int(numKeys.Int32())
	if numPubKeys < 0 || numPubKeys > MaxPubKeysPerMultiSig {
		str := fmt.Sprintf("number of pubkeys %d is invalid", numPubKeys)
		return scriptError(ErrInvalidPubKeyCount, str)
	}
	vm.numOps += numPubKeys
	if vm.numOps > MaxOpsPerScript {
		str := fmt.Sprintf("exceeded max operation limit of %d",
			MaxOpsPerScript)
		return scriptError(ErrTooManyOperations, str)
	}

	pubKeys := make([][]byte, 0, numPubKeys)
	for i := 0; i < numPubKeys; i++ {
		pubKey, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		pubKeys = append(pubKeys, pubKey)
	}

	numSigs, err := vm.dstack.PopInt()
	if err != nil {
		return err
	}
	numSignatures := int(numSigs.Int32())
	if numSignatures < 0 {
		str := fmt.Sprintf("number of signatures %d is negative",
			numSignatures)
		return scriptError(ErrInvalidSignatureCount, str)
	}
	if numSignatures > numPubKeys {
		str := fmt.Sprintf("more signatures than pubkeys: %d > %d",
			numSignatures, numPubKeys)
		return scriptError(ErrInvalidSignatureCount, str)
	}

	signatures := make([][]byte, 0, numSignatures)
	for i := 0; i < numSignatures; i++ {
		signature, err := vm.dstack.PopByteArray()
		if err != nil {
			return err
		}
		signatures = append(signatures, signature)
	}

	// The original implementation pops one too many elements. Unfortunately
	// this is now part of the consensus and a hard fork would be required
	// to fix it.
	dummy, err := vm.dstack.PopByteArray()
	if err != nil {
		return err
	}

	// Since the dummy argument is otherwise not checked, it could be any
	// value which unfortunately provides a source of malleability. Thus,
	// there is a script flag to force an error when the value is NOT 0.
	if vm.hasFlag(ScriptStrictMultiSig) && len(dummy) != 0 {
		str := fmt.Sprintf("multisig dummy argument has length %d "+
			"instead of 0", len(dummy))
		return scriptError(ErrSigNullDummy, str)
	}

	subScript := vm.subScript()

	success := true
	numPubKeys++
	pubKeyIdx := -1
	signatureIdx := 0
	for numSignatures > 0 {
		// When there are more signatures than public keys remaining,
		// there is no way to succeed since too many signatures are
		// invalid, so exit early.
		pubKeyIdx++
		numPubKeys--
		if numSignatures > numPubKeys {
			success = false
			break
		}

		signature := signatures[signatureIdx]
		pubKey := pubKeys[pubKeyIdx]

		if len(signature) == 0 {
			continue
		}

		valid, err := vm.sigChecker.CheckSig(signature, pubKey, subScript)
		if err != nil {
			return err
		}
		if valid {
			// PubKey verified, move on to the next signature.
			signatureIdx++
			numSignatures--
		}
	}

	if !success && vm.hasFlag(ScriptVerifyNullFail) {
		for _, sig := range signatures {
			if len(sig) > 0 {
				return scriptError(ErrNullFail,
					"not all signatures empty on failed checkmultisig")
			}
		}
	}

	vm.dstack.PushBool(success)
	return nil
}

// opcodeCheckMultiSigVerify is a combination of opcodeCheckMultiSig and
// opcodeVerify.
//
// Stack transformation:
// [... dummy [sig ...] numsigs [pubkey ...] numpubkeys] -> [... bool] -> [...]
func opcodeCheckMultiSigVerify(op *opcode, data []byte, vm *Engine) error {
	err := opcodeCheckMultiSig(op, data, vm)
	if err == nil {
		err = abstractVerify(op, vm, ErrCheckMultiSigVerify)
	}
	return err
}

// OpcodeByName is a map that can be used to lookup an opcode by its
// human-readable name.
var OpcodeByName = make(map[string]byte)

func init() {
	for _, op := range opcodeArray {
		if op.name != "" {
			OpcodeByName[op.name] = op.value
		}
	}
	OpcodeByName["OP_FALSE"] = script.OP_FALSE
	OpcodeByName["OP_TRUE"] = script.OP_TRUE
	OpcodeByName["OP_NOP2"] = script.OP_CHECKLOCKTIMEVERIFY
	OpcodeByName["OP_NOP3"] = script.OP_CHECKSEQUENCEVERIFY
}
