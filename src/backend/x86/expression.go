// expression.go implements the expression lowerer. Expressions materialize
// their value in a caller-chosen destination operand. %rax is the working
// register; binary operators evaluate the right child first and park it on the
// stack so the left child may freely use %rax during its own lowering.

package x86

import (
	"fmt"

	"vslc64/src/ir"
)

// genExpression lowers the expression node of request t into t.dst.
func genExpression(t target) error {
	n := t.node
	if n.Data == nil {
		switch len(n.Children) {
		case 2:
			// Function call. The result arrives in %rax.
			if err := genFunctionCall(t); err != nil {
				return err
			}
			if t.dst != regRax {
				t.wr.Write("\tmovq\t%s, %s\n", regRax, t.dst)
			}
			return nil
		case 1:
			// Wrapped leaf; delegate to the dispatcher with the same destination.
			child := t
			child.node = n.Children[0]
			child.ret = nil
			return genNode(child)
		default:
			return fmt.Errorf("in function %q: malformed expression at line %d:%d",
				t.fun.Name, n.Line, n.Pos)
		}
	}

	op := n.Data.(string)

	if len(n.Children) == 1 {
		// Unary operator: lower the operand into the destination and operate in place.
		child := t
		child.node = n.Children[0]
		child.ret = nil
		if err := genNode(child); err != nil {
			return err
		}
		switch op {
		case "-":
			t.wr.Write("\tnegq\t%s\n", t.dst)
		case "~":
			t.wr.Write("\tnotq\t%s\n", t.dst)
		default:
			return fmt.Errorf("in function %q: unexpected unary operator %q at line %d:%d",
				t.fun.Name, op, n.Line, n.Pos)
		}
		return nil
	}

	if len(n.Children) != 2 {
		return fmt.Errorf("in function %q: malformed expression at line %d:%d",
			t.fun.Name, n.Line, n.Pos)
	}

	// Binary operator. Evaluate the right child first and park it on the stack
	// so the left child can use %rax freely.
	child := t
	child.dst = regRax
	child.ret = nil

	child.node = n.Children[1]
	if err := genNode(child); err != nil {
		return err
	}
	t.wr.WriteString("\tpushq\t%rax\n")
	*t.sa += wordSize

	child.node = n.Children[0]
	if err := genNode(child); err != nil {
		return err
	}
	t.wr.WriteString("\tpopq\t%r10\n")
	*t.sa -= wordSize

	// Left-hand side in %rax, right-hand side in %r10.
	switch op {
	case "|":
		t.wr.Write("\torq\t%s, %s\n", regR10, regRax)
	case "^":
		t.wr.Write("\txorq\t%s, %s\n", regR10, regRax)
	case "&":
		t.wr.Write("\tandq\t%s, %s\n", regR10, regRax)
	case "+":
		t.wr.Write("\taddq\t%s, %s\n", regR10, regRax)
	case "-":
		t.wr.Write("\tsubq\t%s, %s\n", regR10, regRax)
	case "*":
		t.wr.Write("\timulq\t%s\n", regR10)
	case "/":
		// Sign-extend %rax into %rdx:%rax before dividing. %rdx holds no live
		// value across an expression.
		t.wr.WriteString("\tcqto\n")
		t.wr.Write("\tidivq\t%s\n", regR10)
	default:
		return fmt.Errorf("in function %q: unexpected binary operator %q at line %d:%d",
			t.fun.Name, op, n.Line, n.Pos)
	}

	if t.dst != regRax {
		t.wr.Write("\tmovq\t%s, %s\n", regRax, t.dst)
	}
	return nil
}

// genFunctionCall lowers a call expression. Stack-passed argument slots and
// alignment padding are reserved in one adjustment, every argument is lowered
// directly into its parameter register or stack slot, and the padding is
// undone after the call returns. The result is left in %rax.
//
// The caller-saved registers are not preserved across argument evaluation:
// every intermediate value is either consumed immediately or parked on the
// stack by the binary operator protocol.
func genFunctionCall(t target) error {
	n := t.node
	if len(n.Children) != 2 {
		return fmt.Errorf("in function %q: invalid function call at line %d:%d",
			t.fun.Name, n.Line, n.Pos)
	}

	identifier := n.Children[0]
	callee := identifier.Entry
	if callee == nil || callee.Typ != ir.SymFunc {
		return symbolError(t.fun, callee, "call of non-function")
	}

	arguments := n.Children[1]
	if len(arguments.Children) != callee.Nparams {
		return fmt.Errorf("in function %q: wrong number of arguments for call to %q: expected %d, got %d",
			t.fun.Name, callee.Name, callee.Nparams, len(arguments.Children))
	}

	extra := callee.Nparams - paramReg
	if extra < 0 {
		extra = 0
	}
	pad := allocateAlignedStack(extra, t.sa, t.wr)

	for p := 0; p < callee.Nparams; p++ {
		child := t
		child.node = arguments.Children[p]
		child.dst = paramAccessor(p)
		child.ret = nil
		if err := genNode(child); err != nil {
			return err
		}
	}

	t.wr.Write("\tcall\t%s%s\n", funcPrefix, callee.Name)
	unalignStack(pad, t.sa, t.wr)
	return nil
}

// paramAccessor returns the destination operand of argument index p at a call
// site: a parameter register for the first six, a stack argument slot beyond.
func paramAccessor(p int) string {
	if p < paramReg {
		return paramRegs[p]
	}
	return fmt.Sprintf("%d(%%rsp)", (p-paramReg)*wordSize)
}
