// Tests for the x86-64 code generator. The scenario sources are compiled
// through the full front end and the emitted assembly is checked both for
// universal properties (stack alignment at every call, push/pop balance,
// label uniqueness, return coverage, determinism) and for the structural
// expectations of each scenario.

package x86

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vslc64/src/frontend"
	"vslc64/src/ir"
	"vslc64/src/util"
)

// ----------------------
// ----- Constants ------
// ----------------------

// Scenario sources.
const (
	srcIdentity = `func f(x) { return x }`

	srcArithmetic = `func g(a, b) { return a*b + (a-b) }`

	srcPrintMix = `func main() { var x; x := 7; print "answer", x, x*6 }`

	srcBranching = `func h(a) { if a > 0 print "pos" else print "nonpos" return 0 }`

	srcLoopContinue = `
func main() {
	var i
	i := 0
	while i < 5 {
		i += 1
		if (i / 2) * 2 = i continue
		print i
	}
	return 0
}
`

	srcSevenArgs = `
func main() { return sum(1, 2, 3, 4, 5, 6, 7) }
func sum(a, b, c, d, e, f, g) { return a + b + c + d + e + f + g }
`
)

// scenarios maps scenario names to sources for the universal property tests.
var scenarios = map[string]string{
	"identity":   srcIdentity,
	"arithmetic": srcArithmetic,
	"printMix":   srcPrintMix,
	"branching":  srcBranching,
	"loop":       srcLoopContinue,
	"sevenArgs":  srcSevenArgs,
}

var reLabel = regexp.MustCompile(`^(\S+):$`)
var reSubRsp = regexp.MustCompile(`^\tsubq\t\$(\d+), %rsp$`)
var reAddRsp = regexp.MustCompile(`^\taddq\t\$(\d+), %rsp$`)

// ----------------------
// ----- Functions ------
// ----------------------

// compile runs the full pipeline on src and returns the emitted assembly.
func compile(t testing.TB, src string) string {
	t.Helper()
	buf := bytes.Buffer{}
	util.ListenWrite(&buf)

	opt := util.Options{Threads: 1, TargetArch: util.X86_64}
	require.NoError(t, frontend.Parse(src))
	require.NoError(t, ir.GenerateSymTab(opt))
	require.NoError(t, ir.ValidateTree(opt))
	require.NoError(t, GenX86(opt))
	require.NoError(t, util.Close())
	return buf.String()
}

// checkAlignment simulates the net %rsp adjustment from each function prologue
// and asserts 16-byte alignment at every call instruction.
func checkAlignment(t *testing.T, asm string) {
	t.Helper()
	a := 0
	inText := false
	fun := ""
	for i1, line := range strings.Split(asm, "\n") {
		if m := reLabel.FindStringSubmatch(line); m != nil {
			if strings.HasPrefix(m[1], funcPrefix) || m[1] == "main" {
				a = 0
				fun = m[1]
				inText = true
			}
			continue
		}
		if !inText {
			continue
		}
		switch {
		case line == "\tpushq\t%rbp":
			// Prologue; the alignment counter starts after the frame setup.
		case reSubRsp.MatchString(line):
			n, _ := strconv.Atoi(reSubRsp.FindStringSubmatch(line)[1])
			a += n
		case reAddRsp.MatchString(line):
			n, _ := strconv.Atoi(reAddRsp.FindStringSubmatch(line)[1])
			a -= n
		case strings.HasPrefix(line, "\tpushq"):
			a += 8
		case strings.HasPrefix(line, "\tpopq"):
			a -= 8
		case strings.HasPrefix(line, "\tcall"):
			assert.Zerof(t, a%16, "%s line %d: %q emitted with misaligned stack (%d bytes)",
				fun, i1+1, strings.TrimSpace(line), a)
		}
		assert.GreaterOrEqualf(t, a, 0, "%s line %d: negative stack adjustment", fun, i1+1)
	}
}

// checkBalance asserts that every ret is immediately preceded by leave, which
// restores the net %rsp delta of the frame to zero.
func checkBalance(t *testing.T, asm string) {
	t.Helper()
	lines := strings.Split(asm, "\n")
	for i1, line := range lines {
		if line != "\tret" {
			continue
		}
		require.Greater(t, i1, 0)
		assert.Equalf(t, "\tleave", lines[i1-1], "line %d: ret not preceded by leave", i1+1)
	}
}

// checkLabels asserts that every label in the output is defined exactly once.
func checkLabels(t *testing.T, asm string) {
	t.Helper()
	seen := map[string]int{}
	for _, line := range strings.Split(asm, "\n") {
		if m := reLabel.FindStringSubmatch(line); m != nil {
			seen[m[1]]++
		}
	}
	for name, count := range seen {
		assert.Equalf(t, 1, count, "label %q defined %d times", name, count)
	}
}

// checkReturns asserts that every compiled function contains a ret instruction.
func checkReturns(t *testing.T, asm string) {
	t.Helper()
	sections := strings.Split(asm, ".globl "+funcPrefix)
	require.Greater(t, len(sections), 1)
	for _, e1 := range sections[1:] {
		name := strings.SplitN(e1, "\n", 2)[0]
		assert.Containsf(t, e1, "\tret\n", "function %s%s has no ret instruction", funcPrefix, name)
	}
}

// TestProperties runs the universal property checks over every scenario.
func TestProperties(t *testing.T) {
	for name, src := range scenarios {
		t.Run(name, func(t *testing.T) {
			asm := compile(t, src)
			checkAlignment(t, asm)
			checkBalance(t, asm)
			checkLabels(t, asm)
			checkReturns(t, asm)
		})
	}
}

// TestIdempotence verifies that two runs over the same source produce
// byte-identical output.
func TestIdempotence(t *testing.T) {
	for name, src := range scenarios {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, compile(t, src), compile(t, src))
		})
	}
}

// TestStringTable verifies the fixed rodata prelude and string interning.
func TestStringTable(t *testing.T) {
	asm := compile(t, srcPrintMix)
	assert.Contains(t, asm, ".section .rodata\n")
	assert.Contains(t, asm, ".newline:\n\t.asciz \"\\n\"\n")
	assert.Contains(t, asm, ".intout:\n\t.asciz \"%ld \"\n")
	assert.Contains(t, asm, ".strout:\n\t.asciz \"%s \"\n")
	assert.Contains(t, asm, ".errout:\n\t.asciz \"Wrong number of arguments\"\n")
	assert.Contains(t, asm, ".STR0:\n\t.asciz \"answer\"\n")
}

// TestGlobalVariables verifies bss emission and global variable access.
func TestGlobalVariables(t *testing.T) {
	asm := compile(t, `
var gg
func main() {
	gg := 3
	print gg
	return gg
}
`)
	assert.Contains(t, asm, ".section .bss\n.align 8\n.gg:\n\t.space 8\n")
	assert.Contains(t, asm, "\tmovq\t%rax, .gg\n")
	assert.Contains(t, asm, "\tmovq\t.gg, %rsi\n")
	assert.Contains(t, asm, "\tmovq\t.gg, %rax\n")
}

// TestSlotMapping verifies the frame slot assignment of parameters and locals:
// the prologue stores the parameter registers in reverse order so declaration
// order parameter 0 lands in the highest numbered parameter slot, and locals
// occupy the slots immediately after.
func TestSlotMapping(t *testing.T) {
	asm := compile(t, `func f(a, b) { var x; x := a; return x }`)

	// Prologue: frame for 2 parameters and 1 local, parameters stored reversed.
	assert.Contains(t, asm, "\tsubq\t$24, %rsp\n")
	assert.Contains(t, asm, "\tmovq\t%rsi, -8(%rbp)\n")
	assert.Contains(t, asm, "\tmovq\t%rdi, -16(%rbp)\n")

	// a is parameter 0: slot 1. x is local 0: slot 2.
	assert.Contains(t, asm, "\tmovq\t-16(%rbp), %rax\n\tmovq\t%rax, -24(%rbp)\n")
	assert.Contains(t, asm, "\tmovq\t-24(%rbp), %rax\n\tleave\n\tret\n")
}

// TestIdentity covers the E1 scenario: the trampoline parses one argument with
// strtol, calls the function and passes the result to exit.
func TestIdentity(t *testing.T) {
	asm := compile(t, srcIdentity)

	assert.Contains(t, asm, ".globl _func_f\n_func_f:\n")
	assert.Contains(t, asm, "\tmovq\t-8(%rbp), %rax\n\tleave\n\tret\n")

	// Trampoline.
	assert.Contains(t, asm, ".globl main\nmain:\n")
	assert.Contains(t, asm, "\tsubq\t$1, %rdi\n\tcmpq\t$1, %rdi\n\tjne\tABORT\n")
	assert.Contains(t, asm, "\tcall\tstrtol\n")
	assert.Contains(t, asm, "\tcall\t_func_f\n")
	assert.Contains(t, asm, "ABORT:\n\tmovq\t$.errout, %rdi\n")
	assert.Contains(t, asm, "\tcall\tputs\n")
	assert.Contains(t, asm, "END:\n\tmovq\t%rax, %rdi\n")
	assert.Contains(t, asm, "\tcall\texit\n")
}

// TestArithmetic covers the E2 scenario: binary operators evaluate the right
// child first, park it on the stack and pop it into %r10.
func TestArithmetic(t *testing.T) {
	asm := compile(t, srcArithmetic)

	assert.Contains(t, asm, "\tpushq\t%rax\n")
	assert.Contains(t, asm, "\tpopq\t%r10\n")
	assert.Contains(t, asm, "\timulq\t%r10\n")
	assert.Contains(t, asm, "\tsubq\t%r10, %rax\n")
	assert.Contains(t, asm, "\taddq\t%r10, %rax\n")
}

// TestPrintMix covers the E3 scenario: one printf call per item plus the
// trailing newline, each with the matching format string.
func TestPrintMix(t *testing.T) {
	asm := compile(t, srcPrintMix)

	assert.Contains(t, asm, "\tmovq\t$.strout, %rdi\n\tmovq\t$.STR0, %rsi\n")
	assert.Contains(t, asm, "\tmovq\t$.intout, %rdi\n")
	assert.Contains(t, asm, "\tmovq\t$.newline, %rdi\n")
	assert.Equal(t, 4, strings.Count(asm, "\tcall\tprintf\n"))

	// x*6 is lowered into %rsi.
	assert.Contains(t, asm, "\tmovq\t%rax, %rsi\n")
}

// TestBranching covers the E4 scenario: the inverse jump skips the then branch
// and the then branch jumps over the else branch.
func TestBranching(t *testing.T) {
	asm := compile(t, srcBranching)

	assert.Contains(t, asm, "\tjng\t._h_ELSE0\n")
	assert.Contains(t, asm, "\tjmp\t._h_ENDIF0\n")
	assert.Contains(t, asm, "._h_ELSE0:\n")
	assert.Contains(t, asm, "._h_ENDIF0:\n")
}

// TestLoopContinue covers the E5 scenario: continue jumps to the check label of
// the surrounding loop, as does the loop back edge.
func TestLoopContinue(t *testing.T) {
	asm := compile(t, srcLoopContinue)

	assert.Contains(t, asm, "._main_WCHECK0:\n")
	assert.Contains(t, asm, "._main_WEND0:\n")
	assert.Contains(t, asm, "\tjnl\t._main_WEND0\n")

	// One jump from the continue statement, one from the loop back edge.
	assert.Equal(t, 2, strings.Count(asm, "\tjmp\t._main_WCHECK0\n"))

	// The nested if claims the next label sequence number.
	assert.Contains(t, asm, "\tjne\t._main_ENDIF1\n")
	assert.Contains(t, asm, "._main_ENDIF1:\n")
}

// TestSevenArgs covers the E6 scenario: the seventh argument lands at 0(%rsp)
// at the call site and is read from 16(%rbp) inside the callee.
func TestSevenArgs(t *testing.T) {
	asm := compile(t, srcSevenArgs)

	// Call site: one stack argument slot plus alignment padding in one adjustment.
	assert.Contains(t, asm, "\tsubq\t$16, %rsp\n")
	assert.Contains(t, asm, "\tmovq\t$7, 0(%rsp)\n")
	assert.Contains(t, asm, "\tmovq\t$1, %rdi\n")
	assert.Contains(t, asm, "\tmovq\t$6, %r9\n")
	assert.Contains(t, asm, "\tcall\t_func_sum\n")

	// Callee: the seventh parameter is read above the saved frame pointer and
	// return address.
	assert.Contains(t, asm, "\tmovq\t16(%rbp), %rax\n")

	// The trampoline compares against zero parameters of the VSL main function.
	assert.Contains(t, asm, "\tcmpq\t$0, %rdi\n")
}

// TestNestedIfLabels verifies distinct labels for same-kind nested structures.
func TestNestedIfLabels(t *testing.T) {
	asm := compile(t, `func f(a) { if a > 0 if a > 1 print "x" return 0 }`)

	assert.Contains(t, asm, "._f_ENDIF0:\n")
	assert.Contains(t, asm, "._f_ENDIF1:\n")
	checkLabels(t, asm)
}

// TestImplicitReturn verifies the synthetic zero-return epilogue of functions
// whose body may fall off the end.
func TestImplicitReturn(t *testing.T) {
	asm := compile(t, `func f() { print "hi" }`)
	assert.Contains(t, asm, "\tmovq\t$0, %rax\n\tleave\n\tret\n")
}

// TestCompoundAssignments verifies the lowering of the compound arithmetic
// assignments, division sign extension included.
func TestCompoundAssignments(t *testing.T) {
	asm := compile(t, `func f(a) { a += 1; a -= 2; a *= 3; a /= 4; return a }`)

	assert.Contains(t, asm, "\taddq\t%r10, %rax\n")
	assert.Contains(t, asm, "\tsubq\t%r10, %rax\n")
	assert.Contains(t, asm, "\timulq\t%r10\n")
	assert.Contains(t, asm, "\tcqto\n\tidivq\t%r10\n")
}

// TestUnaryOperators verifies in-place lowering of unary operators on the
// destination operand.
func TestUnaryOperators(t *testing.T) {
	asm := compile(t, `func f(a) { return -a + ~a }`)
	assert.Contains(t, asm, "\tnegq\t%rax\n")
	assert.Contains(t, asm, "\tnotq\t%rax\n")
}

// TestRelationProtocol verifies the relation lowering: left operand parked on
// the stack, right operand in %r11, comparison of %r10 against %r11.
func TestRelationProtocol(t *testing.T) {
	asm := compile(t, srcBranching)
	assert.Contains(t, asm, "\tpopq\t%r10\n\tcmpq\t%r11, %r10\n")
}

// TestReturnSuppressesUnreachable verifies that statements following a return
// in the same block are not emitted.
func TestReturnSuppressesUnreachable(t *testing.T) {
	asm := compile(t, `func f() { return 1 print "unreachable" }`)
	assert.NotContains(t, asm, "\tcall\tprintf\n")
	assert.NotContains(t, asm, "# Automatically generated return statement")
}

// TestReturnInBranch verifies that a return inside one branch does not
// suppress emission of the sibling branch or of the implicit epilogue.
func TestReturnInBranch(t *testing.T) {
	asm := compile(t, `func f(a) { if a > 0 return 1 else print "no" }`)
	assert.Contains(t, asm, "\tcall\tprintf\n")
	assert.Contains(t, asm, "# Automatically generated return statement")
}

// TestEntrySelection verifies the entry function rule: the function named main
// if present, otherwise the function with the smallest sequence number.
func TestEntrySelection(t *testing.T) {
	asm := compile(t, `
func first() { return 1 }
func main() { return 2 }
`)
	assert.Contains(t, asm, "\tcall\t_func_main\n")

	asm = compile(t, `
func first() { return 1 }
func second() { return 2 }
`)
	assert.Contains(t, asm, "\tcall\t_func_first\n")
}

// TestGenErrors verifies that a call arity mismatch surfaces as an error from
// the validation stage, before any assembly is generated.
func TestGenErrors(t *testing.T) {
	// Arity mismatch is caught by validation before generation.
	require.NoError(t, frontend.Parse(`func f(a) { return f(1, 2) }`))
	opt := util.Options{Threads: 1, TargetArch: util.X86_64}
	require.NoError(t, ir.GenerateSymTab(opt))
	assert.Error(t, ir.ValidateTree(opt))
}

// BenchmarkGenX86 measures code generation alone, front end excluded.
func BenchmarkGenX86(b *testing.B) {
	for name, src := range scenarios {
		opt := util.Options{Threads: 1, TargetArch: util.X86_64}
		if err := frontend.Parse(src); err != nil {
			b.Fatalf("parse error: %s", err)
		}
		if err := ir.GenerateSymTab(opt); err != nil {
			b.Fatalf("symbol table error: %s", err)
		}
		b.Run(name, func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				buf := bytes.Buffer{}
				util.ListenWrite(&buf)
				if err := GenX86(opt); err != nil {
					b.Fatalf("code generation error: %s", err)
				}
				if err := util.Close(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
