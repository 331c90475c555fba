// Copyright (c) 2013-2018 The btcsuite developers
// Copyright (c) 2015-2018 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package engine

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/sirupsen/logrus"

	"github.com/forgebtc/txforge/script"
	"github.com/forgebtc/txforge/sighash"
	"github.com/forgebtc/txforge/taproot"
	"github.com/forgebtc/txforge/tx"
)

// ScriptFlags is a bitmask defining additional operations or tests that will
// be done when executing a script pair.
type ScriptFlags uint32

const (
	// ScriptBip16 defines whether the bip16 threshold has passed and thus
	// pay-to-script hash transactions will be fully validated.
	ScriptBip16 ScriptFlags = 1 << iota

	// ScriptStrictMultiSig defines whether to verify the stack item
	// used by CHECKMULTISIG is zero length.
	ScriptStrictMultiSig

	// ScriptDiscourageUpgradableNops defines whether to verify that
	// NOP1 through NOP10 are reserved for future soft-fork upgrades.
	ScriptDiscourageUpgradableNops

	// ScriptVerifyCheckLockTimeVerify defines whether to verify that
	// a transaction output is spendable based on the locktime.
	// This is BIP0065.
	ScriptVerifyCheckLockTimeVerify

	// ScriptVerifyCheckSequenceVerify defines whether to allow execution
	// pathways of a script to be restricted based on the age of the
	// output being spent. This is BIP0112.
	ScriptVerifyCheckSequenceVerify

	// ScriptVerifyCleanStack defines that the stack must contain only
	// one stack element after evaluation and that the element must be
	// true if interpreted as a boolean. This is rule 6 of BIP0062.
	ScriptVerifyCleanStack

	// ScriptVerifyMinimalData defines that data pushes must use the
	// smallest push operator. This is both rules 3 and 4 of BIP0062.
	ScriptVerifyMinimalData

	// ScriptVerifyNullFail defines that signatures must be empty if
	// a CHECKSIG or CHECKMULTISIG operation fails.
	ScriptVerifyNullFail

	// ScriptVerifyWitness defines whether or not to verify a transaction
	// output using a witness program template.
	ScriptVerifyWitness

	// ScriptVerifyDiscourageUpgradeableWitnessProgram makes witness
	// programs with versions 2-16 non-standard.
	ScriptVerifyDiscourageUpgradeableWitnessProgram

	// ScriptVerifyMinimalIf makes a script with an OP_IF/OP_NOTIF whose
	// operand is anything other than empty vector or [0x01] non-standard.
	ScriptVerifyMinimalIf

	// ScriptVerifyTaproot defines whether or not to verify a transaction
	// output using the taproot validation rules.
	ScriptVerifyTaproot
)

// StandardVerifyFlags are the script flags applied when executing
// transaction scripts the way the network enforces them for relay.
const StandardVerifyFlags = ScriptBip16 |
	ScriptStrictMultiSig |
	ScriptVerifyCheckLockTimeVerify |
	ScriptVerifyCheckSequenceVerify |
	ScriptVerifyCleanStack |
	ScriptVerifyMinimalData |
	ScriptVerifyNullFail |
	ScriptVerifyWitness |
	ScriptVerifyMinimalIf |
	ScriptVerifyTaproot

const (
	// MaxStackSize is the maximum combined height of stack and alt stack
	// during execution.
	MaxStackSize = 1000

	// MaxScriptSize is the maximum allowed length of a raw script.
	MaxScriptSize = 10000

	// BaseSegwitWitnessVersion is the original witness version that
	// defines the initial set of segwit validation logic.
	BaseSegwitWitnessVersion = 0

	// TaprootWitnessVersion is the witness version that defines the
	// taproot verification logic.
	TaprootWitnessVersion = 1

	// annexTag is the byte prefix marking the final witness element of a
	// taproot spend as an annex.
	annexTag = 0x50
)

// Conditional execution states for the conditional stack.
const (
	opCondFalse = 0
	opCondTrue  = 1
	opCondSkip  = 2
)

// Engine is the virtual machine that executes scripts.
type Engine struct {
	flags       ScriptFlags
	tx          *tx.Transaction
	txIdx       int
	inputAmount int64
	prevOuts    []sighash.PrevOutput

	sigChecker     SigChecker
	scriptPubKey   []byte
	script         []byte
	opcodeIdx      int
	lastCodeSep    int
	tokenizer      script.Tokenizer
	dstack         stack
	astack         stack
	condStack      []int
	numOps         int
	bip16          bool
	witnessVersion int
	witnessProgram []byte
	annex          []byte
	taprootCtx     bool

	// stepCallback is an optional function that will be called every time
	// a step has been performed during script execution.
	//
	// NOTE: This is only meant to be used in debugging, and SHOULD NOT BE
	// USED during regular operation.
	stepCallback func(*StepInfo) error
}

// StepInfo houses the current VM state information that is passed back to
// the stepCallback during script execution.
type StepInfo struct {
	// OpcodeIndex is the index of the next opcode that will be executed.
	OpcodeIndex int

	// Stack is the Engine's current content on the stack.
	Stack [][]byte

	// AltStack is the Engine's current content on the alt stack.
	AltStack [][]byte
}

// hasFlag returns whether the script engine instance has the passed flag
// set.
func (vm *Engine) hasFlag(flag ScriptFlags) bool {
	return vm.flags&flag == flag
}

// isBranchExecuting returns whether or not the current conditional branch is
// actively executing. For example, when the data stack has an OP_FALSE on it
// and an OP_IF is encountered, the branch is inactive until an OP_ELSE or
// OP_ENDIF is encountered. It properly handles nested conditionals.
func (vm *Engine) isBranchExecuting() bool {
	if len(vm.condStack) == 0 {
		return true
	}
	return vm.condStack[len(vm.condStack)-1] == opCondTrue
}

// subScript returns the script since the most recent OP_CODESEPARATOR.
func (vm *Engine) subScript() []byte {
	return vm.script[vm.lastCodeSep:]
}

// isOpcodeConditional returns whether or not the opcode is a conditional
// opcode which changes the conditional execution stack when executed.
func isOpcodeConditional(opcode byte) bool {
	switch opcode {
	case script.OP_IF, script.OP_NOTIF, script.OP_ELSE, script.OP_ENDIF:
		return true
	default:
		return false
	}
}

// isOpcodeAlwaysIllegal returns whether or not the opcode is always illegal
// when passed over by the program counter even if in a non-executed branch
// (it isn't a coincidence that they are conditionals).
func isOpcodeAlwaysIllegal(opcode byte) bool {
	switch opcode {
	case script.OP_VERIF, script.OP_VERNOTIF:
		return true
	default:
		return false
	}
}

// isOpcodeDisabled returns whether or not the opcode is disabled and thus is
// always bad to see in the instruction stream (even if turned off by a
// conditional).
func isOpcodeDisabled(opcode byte) bool {
	switch opcode {
	case script.OP_CAT, script.OP_SUBSTR, script.OP_LEFT, script.OP_RIGHT,
		script.OP_INVERT, script.OP_AND, script.OP_OR, script.OP_XOR,
		script.OP_2MUL, script.OP_2DIV, script.OP_MUL, script.OP_DIV,
		script.OP_MOD, script.OP_LSHIFT, script.OP_RSHIFT:
		return true
	default:
		return false
	}
}

// checkMinimalDataPush returns whether or not the provided opcode is the
// smallest possible way to represent the given data. For example, the value
// 15 could be pushed with OP_DATA_1 15 (among other variations); however,
// OP_15 is a single opcode that represents the same value and is only a
// single byte versus two bytes.
func checkMinimalDataPush(op *opcode, data []byte) error {
	opcodeVal := op.value
	dataLen := len(data)
	switch {
	case dataLen == 0 && opcodeVal != script.OP_0:
		str := fmt.Sprintf("zero length data push is encoded with opcode %s "+
			"instead of OP_0", op.name)
		return scriptError(ErrMinimalData, str)
	case dataLen == 1 && data[0] >= 1 && data[0] <= 16:
		if opcodeVal != script.OP_1+data[0]-1 {
			str := fmt.Sprintf("data push of the value %d encoded with opcode "+
				"%s instead of OP_%d", data[0], op.name, data[0])
			return scriptError(ErrMinimalData, str)
		}
	case dataLen == 1 && data[0] == 0x81:
		if opcodeVal != script.OP_1NEGATE {
			str := fmt.Sprintf("data push of the value -1 encoded with opcode "+
				"%s instead of OP_1NEGATE", op.name)
			return scriptError(ErrMinimalData, str)
		}
	case dataLen <= 75:
		if int(opcodeVal) != dataLen {
			str := fmt.Sprintf("data push of %d bytes encoded with opcode %s "+
				"instead of OP_DATA_%d", dataLen, op.name, dataLen)
			return scriptError(ErrMinimalData, str)
		}
	case dataLen <= 255:
		if opcodeVal != script.OP_PUSHDATA1 {
			str := fmt.Sprintf("data push of %d bytes encoded with opcode %s "+
				"instead of OP_PUSHDATA1", dataLen, op.name)
			return scriptError(ErrMinimalData, str)
		}
	case dataLen <= 65535:
		if opcodeVal != script.OP_PUSHDATA2 {
			str := fmt.Sprintf("data push of %d bytes encoded with opcode %s "+
				"instead of OP_PUSHDATA2", dataLen, op.name)
			return scriptError(ErrMinimalData, str)
		}
	}
	return nil
}

// executeOpcode performs execution on the passed opcode. It takes into
// account whether or not it is hidden by conditionals, but some rules still
// must be tested in this case.
func (vm *Engine) executeOpcode(op *opcode, data []byte) error {
	if isOpcodeDisabled(op.value) {
		str := fmt.Sprintf("attempt to execute disabled opcode %s", op.name)
		return scriptError(ErrDisabledOpcode, str)
	}

	if isOpcodeAlwaysIllegal(op.value) {
		str := fmt.Sprintf("attempt to execute reserved opcode %s", op.name)
		return scriptError(ErrReservedOpcode, str)
	}

	// Note that this includes OP_RESERVED which counts as a push
	// operation. Tapscript has no operation limit.
	if !vm.taprootCtx && op.value > script.OP_16 {
		vm.numOps++
		if vm.numOps > MaxOpsPerScript {
			str := fmt.Sprintf("exceeded max operation limit of %d",
				MaxOpsPerScript)
			return scriptError(ErrTooManyOperations, str)
		}
	} else if len(data) > script.MaxScriptElementSize {
		str := fmt.Sprintf("element size %d exceeds max allowed size %d",
			len(data), script.MaxScriptElementSize)
		return scriptError(ErrElementTooBig, str)
	}

	// Nothing left to do when this is not a conditional opcode and it is
	// not in an executing branch.
	if !vm.isBranchExecuting() && !isOpcodeConditional(op.value) {
		return nil
	}

	// Ensure all executed data push opcodes use the minimal encoding when
	// the minimal data verification flag is set.
	if vm.dstack.verifyMinimalData && vm.isBranchExecuting() &&
		op.value <= script.OP_PUSHDATA4 {

		if err := checkMinimalDataPush(op, data); err != nil {
			return err
		}
	}

	return op.opfunc(op, data, vm)
}

// DisasmPC returns the string for the disassembly of the opcode that will be
// next to execute when Step is called.
func (vm *Engine) DisasmPC() (string, error) {
	// Create a copy of the current tokenizer and parse the next opcode in
	// the copy to avoid mutating the current one.
	peekTokenizer := vm.tokenizer
	if !peekTokenizer.Next() {
		if err := peekTokenizer.Err(); err != nil {
			return "", err
		}
		str := fmt.Sprintf("program counter beyond script (bytes %x)",
			vm.script)
		return "", scriptError(ErrInvalidProgramCounter, str)
	}

	return fmt.Sprintf("%04x: %s %x", vm.opcodeIdx,
		script.OpcodeName(peekTokenizer.Opcode()),
		peekTokenizer.Data()), nil
}

// DisasmScript returns the disassembly string for the script currently being
// executed.
func (vm *Engine) DisasmScript() string {
	return script.Disasm(vm.script)
}

// CheckErrorCondition returns nil if the running script has ended and was
// successful, leaving exactly one true boolean on the stack. An error
// otherwise.
//
// The clean stack rule only applies after the final script in an execution,
// never to the intermediate script-hash check of a pay-to-script-hash spend,
// so callers indicate which script just finished via finalScript.
func (vm *Engine) CheckErrorCondition(finalScript bool) error {
	// The final script must end with exactly one data stack item when the
	// verify clean stack flag is set, a rule tapscript makes
	// unconditional. Otherwise, there must be at least one data stack
	// item in order to interpret it as a boolean.
	if finalScript && (vm.taprootCtx || vm.hasFlag(ScriptVerifyCleanStack)) &&
		vm.dstack.Depth() != 1 {
		str := fmt.Sprintf("stack must contain exactly one item (contains %d)",
			vm.dstack.Depth())
		return scriptError(ErrCleanStack, str)
	}

	v, err := vm.dstack.PopBool()
	if err != nil {
		return err
	}
	if !v {
		// Log interesting data.
		logrus.Tracef("%v", newLogClosure(func() string {
			var buf strings.Builder
			buf.WriteString("scripts failed:\n")
			buf.WriteString(vm.DisasmScript())
			return buf.String()
		}))
		return scriptError(ErrEvalFalse,
			"false stack entry at end of script execution")
	}
	return nil
}

// Step executes the next instruction and moves the program counter to the
// next opcode in the script. Step will return true in the case that the last
// opcode of the current script was successfully executed.
//
// The result of calling Step or any other method is undefined if an error is
// returned.
func (vm *Engine) Step() (done bool, err error) {
	if !vm.tokenizer.Next() {
		if err := vm.tokenizer.Err(); err != nil {
			return false, err
		}
		str := fmt.Sprintf("attempt to step beyond script (bytes %x)",
			vm.script)
		return true, scriptError(ErrInvalidProgramCounter, str)
	}

	// Execute the opcode while taking into account several things such as
	// disabled opcodes, illegal opcodes, maximum allowed operations per
	// script, maximum script element sizes, and conditionals.
	opValue := vm.tokenizer.Opcode()
	op := &opcodeArray[opValue]
	err = vm.executeOpcode(op, vm.tokenizer.Data())
	if err != nil {
		return true, err
	}

	// The number of elements in the combination of the data and alt
	// stacks must not exceed the maximum number of stack elements allowed.
	combinedStackSize := vm.dstack.Depth() + vm.astack.Depth()
	if combinedStackSize > MaxStackSize {
		str := fmt.Sprintf("combined stack size %d > max allowed %d",
			combinedStackSize, MaxStackSize)
		return false, scriptError(ErrStackOverflow, str)
	}

	vm.opcodeIdx++
	if vm.tokenizer.Done() {
		// Illegal to have a conditional that straddles two scripts.
		if len(vm.condStack) != 0 {
			return false, scriptError(ErrUnbalancedConditional,
				"end of script reached in conditional execution")
		}

		// Alt stack doesn't persist between scripts.
		_ = vm.astack.DropN(vm.astack.Depth())

		// The number of operations is per script.
		vm.numOps = 0

		vm.opcodeIdx = 0
		vm.lastCodeSep = 0
		return true, nil
	}

	return false, nil
}

// runScript executes one script to completion on the current stacks.
func (vm *Engine) runScript(scr []byte) error {
	vm.script = scr
	vm.tokenizer = script.MakeTokenizer(scr)
	vm.opcodeIdx = 0
	vm.lastCodeSep = 0

	// An empty script executes trivially.
	if len(scr) == 0 {
		return nil
	}

	var stepInfo *StepInfo
	done := false
	for !done {
		logrus.Tracef("%v", newLogClosure(func() string {
			dis, err := vm.DisasmPC()
			if err != nil {
				return fmt.Sprintf("stepping - failed to disasm pc: %v", err)
			}
			return fmt.Sprintf("stepping %v", dis)
		}))

		var err error
		done, err = vm.Step()
		if err != nil {
			return err
		}

		logrus.Tracef("%v", newLogClosure(func() string {
			var dstr, astr string

			// Log the non-empty stacks when tracing.
			if vm.dstack.Depth() != 0 {
				dstr = "Stack:\n" + vm.dstack.String()
			}
			if vm.astack.Depth() != 0 {
				astr = "AltStack:\n" + vm.astack.String()
			}
			return dstr + astr
		}))

		if vm.stepCallback != nil {
			stepInfo = &StepInfo{
				OpcodeIndex: vm.opcodeIdx,
				Stack:       copyStack(vm.dstack.stk),
				AltStack:    copyStack(vm.astack.stk),
			}
			if err := vm.stepCallback(stepInfo); err != nil {
				return err
			}
		}
	}
	return nil
}

// Execute will execute all scripts in the script engine and return either
// nil for successful validation or an error if one occurred.
func (vm *Engine) Execute() error {
	if vm.witnessProgram != nil {
		return vm.verifyWitnessProgram()
	}

	scriptSig := vm.tx.TxIn[vm.txIdx].SignatureScript
	if err := vm.runScript(scriptSig); err != nil {
		return err
	}

	// Keep the stack produced by the signature script around so the
	// redeem script phase can start from it after the script hash check.
	var savedFirstStack [][]byte
	if vm.bip16 {
		savedFirstStack = copyStack(vm.dstack.stk)
	}

	if err := vm.runScript(vm.scriptPubKey); err != nil {
		return err
	}

	if vm.bip16 {
		// The public key script phase only verified the script hash.
		// What remains is executing the revealed redeem script against
		// the rest of the signature script's pushes.
		if err := vm.CheckErrorCondition(false); err != nil {
			return err
		}
		if len(savedFirstStack) == 0 {
			return scriptError(ErrInvalidStackOperation,
				"no redeem script in pay-to-script-hash spend")
		}

		redeemScript := savedFirstStack[len(savedFirstStack)-1]
		setStack(&vm.dstack, savedFirstStack[:len(savedFirstStack)-1])

		if err := checkScriptParses(redeemScript); err != nil {
			return err
		}
		if err := vm.runScript(redeemScript); err != nil {
			return err
		}
	}

	return vm.CheckErrorCondition(true)
}

// verifyWitnessProgram validates the witness of the input against the
// witness program extracted from the public key script.
func (vm *Engine) verifyWitnessProgram() error {
	witness := vm.tx.TxIn[vm.txIdx].Witness

	switch vm.witnessVersion {
	case BaseSegwitWitnessVersion:
		return vm.verifyWitnessV0(witness)

	case TaprootWitnessVersion:
		if !vm.hasFlag(ScriptVerifyTaproot) {
			return nil
		}
		return vm.verifyTaprootSpend(witness)

	default:
		if vm.hasFlag(ScriptVerifyDiscourageUpgradeableWitnessProgram) {
			str := fmt.Sprintf("new witness program versions invalid: %x",
				vm.witnessProgram)
			return scriptError(ErrDiscourageUpgradableWitnessProgram, str)
		}
		// Unknown witness versions succeed unconditionally so they
		// stay soft-forkable.
		return nil
	}
}

// verifyWitnessV0 runs segwit v0 validation: P2WPKH for 20-byte programs and
// P2WSH for 32-byte programs.
func (vm *Engine) verifyWitnessV0(witness tx.Witness) error {
	vm.sigChecker = &WitnessV0SigChecker{
		Tx:       vm.tx,
		InputIdx: vm.txIdx,
		Amount:   vm.inputAmount,
	}

	switch len(vm.witnessProgram) {
	case 20:
		// The witness program is a pubkey hash. The execution script
		// is the equivalent pay-to-pubkey-hash script, which doubles
		// as the BIP143 scriptCode.
		if len(witness) != 2 {
			str := fmt.Sprintf("p2wpkh witness has %d items instead of 2",
				len(witness))
			return scriptError(ErrWitnessProgramMismatch, str)
		}

		pkScript, err := script.PayToPubKeyHash(vm.witnessProgram)
		if err != nil {
			return err
		}
		setStack(&vm.dstack, witness)
		if err := vm.runScript(pkScript); err != nil {
			return err
		}

	case 32:
		// The witness program is the sha256 of the witness script,
		// revealed as the final witness item.
		if len(witness) == 0 {
			return scriptError(ErrWitnessProgramEmpty,
				"p2wsh witness is empty")
		}

		witnessScript := witness[len(witness)-1]
		scriptHash := sha256.Sum256(witnessScript)
		if !bytes.Equal(scriptHash[:], vm.witnessProgram) {
			return scriptError(ErrWitnessProgramMismatch,
				"witness script hash mismatch")
		}

		if err := checkScriptParses(witnessScript); err != nil {
			return err
		}
		setStack(&vm.dstack, witness[:len(witness)-1])
		if err := vm.runScript(witnessScript); err != nil {
			return err
		}

	default:
		str := fmt.Sprintf("witness program must be 20 or 32 bytes for "+
			"version 0, got %d", len(vm.witnessProgram))
		return scriptError(ErrWitnessProgramWrongLength, str)
	}

	return vm.CheckErrorCondition(true)
}

// verifyTaprootSpend runs BIP341/BIP342 validation: a single-element witness
// is a key-path spend verified directly against the output key, anything
// longer reveals a leaf script and control block and executes the leaf.
func (vm *Engine) verifyTaprootSpend(witness tx.Witness) error {
	if len(witness) == 0 {
		return scriptError(ErrWitnessProgramEmpty, "taproot witness is empty")
	}

	// An annex is permitted as the final element when there are at least
	// two, and is committed to by the signature digests.
	if len(witness) > 1 {
		last := witness[len(witness)-1]
		if len(last) > 0 && last[0] == annexTag {
			vm.annex = last
			witness = witness[:len(witness)-1]
		}
	}

	outputKey, err := schnorr.ParsePubKey(vm.witnessProgram)
	if err != nil {
		return scriptError(ErrWitnessProgramMismatch,
			fmt.Sprintf("invalid taproot output key: %v", err))
	}

	if len(witness) == 1 {
		return vm.verifyTaprootKeySpend(witness[0], outputKey)
	}

	// Script path: the final element is the control block, the one before
	// it the revealed leaf script.
	ctrlBlock, err := taproot.ParseControlBlock(witness[len(witness)-1])
	if err != nil {
		return scriptError(ErrTaprootMerkleProofInvalid, err.Error())
	}
	leafScript := witness[len(witness)-2]

	if err := ctrlBlock.VerifyLeafCommitment(outputKey, leafScript); err != nil {
		return scriptError(ErrTaprootMerkleProofInvalid, err.Error())
	}

	leaf := taproot.Leaf{
		LeafVersion: ctrlBlock.LeafVersion,
		Script:      leafScript,
	}
	leafHash := leaf.TapHash()

	vm.taprootCtx = true
	vm.sigChecker = &TapscriptSigChecker{
		Tx:          vm.tx,
		InputIdx:    vm.txIdx,
		PrevOuts:    vm.prevOuts,
		TapLeafHash: leafHash[:],
		Annex:       vm.annex,
	}

	if err := checkScriptParses(leafScript); err != nil {
		return err
	}
	setStack(&vm.dstack, witness[:len(witness)-2])
	if err := vm.runScript(leafScript); err != nil {
		return err
	}

	return vm.CheckErrorCondition(true)
}

// verifyTaprootKeySpend verifies the single schnorr signature of a key-path
// spend against the output key from the witness program.
func (vm *Engine) verifyTaprootKeySpend(sigBytes []byte, outputKey *secp256k1.PublicKey) error {
	hashType := sighash.Default
	switch len(sigBytes) {
	case schnorr.SignatureSize + 1:
		hashType = sighash.Type(sigBytes[schnorr.SignatureSize])
		if hashType == sighash.Default {
			return scriptError(ErrInvalidSigHashType,
				"explicit SIGHASH_DEFAULT byte on schnorr signature")
		}
		sigBytes = sigBytes[:schnorr.SignatureSize]
	case schnorr.SignatureSize:
	default:
		str := fmt.Sprintf("taproot signature has invalid length %d",
			len(sigBytes))
		return scriptError(ErrTaprootSigInvalid, str)
	}
	if err := hashType.Valid(); err != nil {
		return scriptError(ErrInvalidSigHashType, err.Error())
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return scriptError(ErrTaprootSigInvalid, err.Error())
	}

	var opts []sighash.TaprootOption
	if len(vm.annex) > 0 {
		opts = append(opts, sighash.WithAnnex(vm.annex))
	}
	digest, err := sighash.CalcTaproot(
		vm.tx, vm.txIdx, vm.prevOuts, hashType, opts...,
	)
	if err != nil {
		return err
	}

	if !sig.Verify(digest, outputKey) {
		return scriptError(ErrTaprootSigInvalid,
			"taproot key path signature verification failed")
	}
	return nil
}

// copyStack makes a deep copy of the provided slice.
func copyStack(stk [][]byte) [][]byte {
	c := make([][]byte, len(stk))
	for i := range stk {
		c[i] = make([]byte, len(stk[i]))
		copy(c[i], stk[i])
	}
	return c
}

// getStack returns the contents of stack as a byte array bottom up.
func getStack(stack *stack) [][]byte {
	array := make([][]byte, stack.Depth())
	for i := range array {
		// PeekByteArray can't fail due to overflow, already checked.
		array[len(array)-i-1], _ = stack.PeekByteArray(int32(i))
	}
	return array
}

// setStack sets the stack to the contents of the array where the last item
// in the array is the top item in the stack.
func setStack(stack *stack, data [][]byte) {
	// This can not error. Only errors are for invalid arguments.
	_ = stack.DropN(stack.Depth())
	for i := range data {
		stack.PushByteArray(data[i])
	}
}

// GetStack returns the contents of the primary stack as an array where the
// last item in the array is the top of the stack.
func (vm *Engine) GetStack() [][]byte {
	return getStack(&vm.dstack)
}

// SetStack sets the contents of the primary stack to the contents of the
// provided array where the last item in the array will be the top of the
// stack.
func (vm *Engine) SetStack(data [][]byte) {
	setStack(&vm.dstack, data)
}

// GetAltStack returns the contents of the alternate stack as an array where
// the last item in the array is the top of the stack.
func (vm *Engine) GetAltStack() [][]byte {
	return getStack(&vm.astack)
}

// SetAltStack sets the contents of the alternate stack to the contents of
// the provided array where the last item in the array will be the top of the
// stack.
func (vm *Engine) SetAltStack(data [][]byte) {
	setStack(&vm.astack, data)
}

// SetStepCallback registers a function invoked after every execution step
// with a copy of the VM state. Debugging aid only.
func (vm *Engine) SetStepCallback(cb func(*StepInfo) error) {
	vm.stepCallback = cb
}

// NewEngine returns a new script engine for the provided public key script,
// transaction, and input index. The flags modify the behavior of the script
// engine according to the description provided by each flag.
//
// amount is the value of the output being spent, required by the segwit v0
// digest. prevOuts lists every spent output of the transaction in input
// order and is required by the taproot digests; it may be nil for
// pre-taproot spends.
func NewEngine(scriptPubKey []byte, transaction *tx.Transaction, txIdx int,
	flags ScriptFlags, amount int64, prevOuts []sighash.PrevOutput) (*Engine, error) {

	if txIdx < 0 || txIdx >= len(transaction.TxIn) {
		str := fmt.Sprintf("transaction input index %d is out of range (0-%d)",
			txIdx, len(transaction.TxIn)-1)
		return nil, scriptError(ErrInvalidIndex, str)
	}
	txIn := transaction.TxIn[txIdx]

	vm := Engine{
		flags:        flags,
		tx:           transaction,
		txIdx:        txIdx,
		inputAmount:  amount,
		prevOuts:     prevOuts,
		scriptPubKey: scriptPubKey,
	}

	for _, scr := range [][]byte{txIn.SignatureScript, scriptPubKey} {
		if len(scr) > MaxScriptSize {
			str := fmt.Sprintf("script size %d is larger than max allowed "+
				"size %d", len(scr), MaxScriptSize)
			return nil, scriptError(ErrScriptTooBig, str)
		}
		if err := checkScriptParses(scr); err != nil {
			return nil, err
		}
	}

	if vm.hasFlag(ScriptVerifyMinimalData) {
		vm.dstack.verifyMinimalData = true
		vm.astack.verifyMinimalData = true
	}

	if vm.hasFlag(ScriptVerifyWitness) {
		if version, program, ok := script.ExtractWitnessProgram(scriptPubKey); ok {
			// A native witness spend must carry an empty signature
			// script, anything else is malleable.
			if len(txIn.SignatureScript) != 0 {
				return nil, scriptError(ErrWitnessMalleated,
					"signature script must be empty for witness spends")
			}
			vm.witnessVersion = version
			vm.witnessProgram = program
		} else if len(txIn.Witness) != 0 {
			return nil, scriptError(ErrWitnessUnexpected,
				"witness data on non-witness output")
		}
	}

	if vm.witnessProgram == nil {
		vm.sigChecker = &LegacySigChecker{Tx: transaction, InputIdx: txIdx}
		if vm.hasFlag(ScriptBip16) && script.IsPayToScriptHash(scriptPubKey) {
			if err := checkSigPushOnly(txIn.SignatureScript); err != nil {
				return nil, err
			}
			vm.bip16 = true
		}
	}

	return &vm, nil
}

// checkScriptParses returns an error if the provided script fails to parse.
func checkScriptParses(scr []byte) error {
	tokenizer := script.MakeTokenizer(scr)
	for tokenizer.Next() {
		// Nothing to do.
	}
	return tokenizer.Err()
}

// checkSigPushOnly returns an error if the script contains anything other
// than data pushes.
func checkSigPushOnly(scr []byte) error {
	tokenizer := script.MakeTokenizer(scr)
	for tokenizer.Next() {
		if tokenizer.Opcode() > script.OP_16 {
			return scriptError(ErrInvalidStackOperation,
				"signature script is not push only")
		}
	}
	return tokenizer.Err()
}

// logClosure is a closure that can be printed with %v to be used to generate
// expensive-to-create data for a detailed log level and avoid doing the work
// if the data isn't printed.
type logClosure func() string

func (c logClosure) String() string {
	return c()
}

func newLogClosure(c func() string) logClosure {
	return logClosure(c)
}
