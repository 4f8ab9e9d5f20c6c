// Package tisc names the TISC instruction and program-format vocabulary
// shared by the t81-lang front-end, its canary artifact and the t81-vm
// compatibility contract.
package tisc

import (
	"slices"
	"sort"
)

// Opcode is the contract name of a TISC instruction kind, exactly as it
// appears in supported_opcodes and in TISC JSON documents.
type Opcode string

const (
	// ========================================================================
	// Control
	// ========================================================================

	OpNop  Opcode = "Nop"  // No operation
	OpHalt Opcode = "Halt" // Stop execution and commit state

	// ========================================================================
	// Memory
	// ========================================================================

	OpLoadImm Opcode = "LoadImm" // r[a] = b
	OpLoad    Opcode = "Load"    // r[a] = mem[b]
	OpStore   Opcode = "Store"   // mem[a] = r[b]

	// ========================================================================
	// Arithmetic
	// ========================================================================

	OpAdd Opcode = "Add" // r[a] = r[b] + r[c]
	OpSub Opcode = "Sub" // r[a] = r[b] - r[c]
	OpMul Opcode = "Mul" // r[a] = r[b] * r[c]
	OpDiv Opcode = "Div" // r[a] = r[b] / r[c], faults on zero divisor
	OpMod Opcode = "Mod" // r[a] = r[b] % r[c], faults on zero divisor
	OpCmp Opcode = "Cmp" // r[a] = sign(r[b] - r[c])

	// ========================================================================
	// Jumps
	// ========================================================================

	OpJump          Opcode = "Jump"          // pc = a
	OpJumpIfZero    Opcode = "JumpIfZero"    // if r[b] == 0 { pc = a }
	OpJumpIfNotZero Opcode = "JumpIfNotZero" // if r[b] != 0 { pc = a }

	// ========================================================================
	// Faults
	// ========================================================================

	OpTrap Opcode = "Trap" // Raise a runtime fault
)

// requiredOpcodes is the compatibility floor: every VM the front-end
// targets must list all of these in supported_opcodes.
var requiredOpcodes = []Opcode{
	OpNop,
	OpHalt,
	OpLoadImm,
	OpLoad,
	OpStore,
	OpAdd,
	OpSub,
	OpMul,
	OpDiv,
	OpMod,
	OpJump,
	OpJumpIfZero,
	OpJumpIfNotZero,
	OpCmp,
	OpTrap,
}

// String returns the contract name of the opcode.
func (op Opcode) String() string {
	return string(op)
}

// Known reports whether op is part of the front-end's vocabulary.
func (op Opcode) Known() bool {
	return slices.Contains(requiredOpcodes, op)
}

// RequiredOpcodes returns a fresh copy of the opcode compatibility floor.
func RequiredOpcodes() []Opcode {
	return slices.Clone(requiredOpcodes)
}

// MissingOpcodes returns the required opcodes absent from supported,
// sorted by name so reports are stable regardless of input order.
func MissingOpcodes(supported []string) []string {
	have := make(map[string]struct{}, len(supported))
	for _, name := range supported {
		have[name] = struct{}{}
	}

	var missing []string
	for _, op := range requiredOpcodes {
		if _, ok := have[string(op)]; !ok {
			missing = append(missing, string(op))
		}
	}
	sort.Strings(missing)
	return missing
}
