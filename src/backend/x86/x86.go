// Package x86 generates x86-64 assembly, GAS syntax, from the intermediate
// syntax tree representation. The output follows the System V AMD64 calling
// convention and links against the C standard library for printf, puts,
// strtol and exit.
//
// The x86-64 stack grows downwards and must be 16-byte aligned at every call
// instruction. The generator maintains a per-function alignment counter that
// mirrors every byte subtracted from the stack pointer since the prologue.
package x86

import (
	"errors"
	"fmt"

	"vslc64/src/ir"
	"vslc64/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// target describes one code generation request: the node being lowered, the
// enclosing function, the mutable per-function context and the destination
// operand that must receive the node's value.
type target struct {
	node *ir.Node     // Node being lowered.
	fun  *ir.Symbol   // Function the node is contained within.
	sa   *int         // Stack alignment counter: bytes subtracted from %rsp since the prologue.
	lc   *int         // Monotonic label counter for control flow constructs.
	ret  *bool        // Returned flag. <nil> when return statements are illegal here.
	loop string       // WCHECK label of the innermost enclosing while loop; empty outside loops.
	dst  string       // Destination operand, a register name or memory operand.
	wr   *util.Writer // Output writer.
}

// ---------------------
// ----- Constants -----
// ---------------------

// funcPrefix prefixes every compiled user function. The unprefixed main symbol
// is reserved for the generated entry trampoline.
const funcPrefix = "_func_"

const labelString = ".STR" // Prefix of string literals in the rodata section.

// Fixed runtime format strings.
const (
	labelNewline = ".newline"
	labelIntout  = ".intout"
	labelStrout  = ".strout"
	labelErrout  = ".errout"
)

const wordSize = 8     // Stack slots and integers are 8 bytes.
const stackAlign = 16  // The stack must be 16-byte aligned at every call.
const paramReg = 6     // Number of integer parameter registers.

// Working registers of the expression lowerer.
const (
	regRax = "%rax" // Primary working register; holds every intermediate result.
	regR10 = "%r10" // Right-hand side of binary operators.
	regR11 = "%r11" // Right-hand side of relations.
)

// -------------------
// ----- Globals -----
// -------------------

// paramRegs holds the System V AMD64 integer parameter registers in argument order.
var paramRegs = [paramReg]string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}

// ---------------------
// ----- Functions -----
// ---------------------

// GenX86 generates x86-64 assembler code from the intermediate representation.
// The output order is rodata string table, bss globals, user functions and
// finally the entry trampoline.
func GenX86(opt util.Options) error {
	wr := util.NewWriter()
	defer wr.Close()

	generateStringTable(&wr)
	generateGlobalVariables(&wr)

	entry, err := generateFunctions(&wr)
	if err != nil {
		return err
	}

	genMain(entry, &wr)
	return nil
}

// generateStringTable emits the rodata section holding the fixed runtime
// format strings and all interned string literals.
func generateStringTable(wr *util.Writer) {
	wr.Write(".section .rodata\n")
	wr.Write("%s:\n\t.asciz \"\\n\"\n", labelNewline)
	wr.Write("%s:\n\t.asciz \"%%ld \"\n", labelIntout)
	wr.Write("%s:\n\t.asciz \"%%s \"\n", labelStrout)
	wr.Write("%s:\n\t.asciz \"Wrong number of arguments\"\n", labelErrout)
	for i1, e1 := range ir.Strings.St {
		wr.Write("%s%d:\n\t.asciz \"%s\"\n", labelString, i1, e1)
	}
}

// generateGlobalVariables emits the bss section declaring all global variables.
func generateGlobalVariables(wr *util.Writer) {
	wr.Write(".section .bss\n")
	wr.Write(".align 8\n")
	for _, e1 := range ir.Global.Order {
		if e1.Typ != ir.SymGlobal {
			continue
		}
		wr.Write(".%s:\n\t.space %d\n", e1.Name, wordSize)
	}
}

// generateFunctions emits the text section with every user function and
// returns the entry function: the function named main if one exists,
// otherwise the function with the smallest sequence number.
func generateFunctions(wr *util.Writer) (*ir.Symbol, error) {
	wr.Write(".section .text\n")

	var entry *ir.Symbol
	mainLock := false
	for _, e1 := range ir.Global.Order {
		if e1.Typ != ir.SymFunc {
			continue
		}

		isMain := e1.Name == "main"
		if isMain || (!mainLock && (entry == nil || entry.Seq > e1.Seq)) {
			entry = e1
			mainLock = isMain
		}

		if err := genFunction(e1, wr); err != nil {
			return nil, err
		}
		wr.Flush()
	}
	if entry == nil {
		return nil, errors.New("no functions defined for program")
	}
	return entry, nil
}

// genMain generates the entry trampoline. The trampoline drops the program
// name from argc, aborts on an argument count mismatch, parses every remaining
// argument with strtol into a frame slot, marshals the parsed integers into
// the parameter registers and stack argument slots, calls the entry function
// and passes its return value to exit.
//
// Argument parsing is unrolled so the stack depth at every strtol call is
// fixed, keeping all calls 16-byte aligned.
func genMain(entry *ir.Symbol, wr *util.Writer) {
	n := entry.Nparams

	wr.Write(".globl main\n")
	wr.Label("main")
	wr.WriteString("\tpushq\t%rbp\n")
	wr.WriteString("\tmovq\t%rsp, %rbp\n")

	// Frame slots: saved argv plus one slot per parsed argument.
	sa := 0
	allocateStack(1+n, &sa, wr)

	// Drop the program name and verify the argument count.
	wr.Write("\tsubq\t$1, %%rdi\n")
	wr.Write("\tcmpq\t$%d, %%rdi\n", n)
	wr.Write("\tjne\tABORT\n")
	wr.Write("\tmovq\t%%rsi, -8(%%rbp)\n")

	// Parse each argument with strtol, base 10.
	for i1 := 0; i1 < n; i1++ {
		wr.Write("\tmovq\t-8(%%rbp), %%rsi\n")
		wr.Write("\tmovq\t%d(%%rsi), %%rdi\n", (i1+1)*wordSize)
		wr.Write("\tmovq\t$0, %%rsi\n")
		wr.Write("\tmovq\t$10, %%rdx\n")
		pad := alignStack(&sa, wr)
		wr.Write("\tcall\tstrtol\n")
		unalignStack(pad, &sa, wr)
		wr.Write("\tmovq\t%%rax, %d(%%rbp)\n", -(i1+2)*wordSize)
	}

	// Marshal the parsed integers into the call.
	extra := n - paramReg
	if extra < 0 {
		extra = 0
	}
	pad := allocateAlignedStack(extra, &sa, wr)
	for p := 0; p < n; p++ {
		if p < paramReg {
			wr.Write("\tmovq\t%d(%%rbp), %s\n", -(p+2)*wordSize, paramRegs[p])
		} else {
			wr.Write("\tmovq\t%d(%%rbp), %%rax\n", -(p+2)*wordSize)
			wr.Write("\tmovq\t%%rax, %d(%%rsp)\n", (p-paramReg)*wordSize)
		}
	}
	wr.Write("\tcall\t%s%s\n", funcPrefix, entry.Name)
	unalignStack(pad+extra*wordSize, &sa, wr)
	wr.Write("\tjmp\tEND\n")

	// Argument count mismatch.
	wr.Label("ABORT")
	wr.Write("\tmovq\t$%s, %%rdi\n", labelErrout)
	pad = alignStack(&sa, wr)
	wr.Write("\tcall\tputs\n")
	unalignStack(pad, &sa, wr)

	// Both paths reach END with the same stack depth.
	wr.Label("END")
	wr.Write("\tmovq\t%%rax, %%rdi\n")
	alignStack(&sa, wr)
	wr.Write("\tcall\texit\n")
	wr.Flush()
}

// symbolError formats a fatal diagnostic for the symbol sym inside function fun.
func symbolError(fun *ir.Symbol, sym *ir.Symbol, format string, args ...interface{}) error {
	return fmt.Errorf("in function %q: %s: %s", fun.Name, fmt.Sprintf(format, args...), sym)
}
