package x86

import (
	"errors"
	"fmt"

	"vslc64/src/ir"
	"vslc64/src/util"
)

// genFunction generates x86-64 assembler for the function fun.
//
// General steps:
//
// - Emit the prologue and allocate frame slots for register-passed parameters
//   and all local variables.
// - Move the register-passed parameters into their frame slots, in reverse
//   order so that the slots hold the parameters in declaration order.
// - Drive the statement lowerer over the function body.
// - Emit the implicit zero-return epilogue if control can fall off the end.
func genFunction(fun *ir.Symbol, wr *util.Writer) error {
	// Verify input symbol.
	if fun == nil {
		return errors.New("function symbol table entry is <nil>")
	}
	if fun.Typ != ir.SymFunc {
		return errors.New("symbol table entry is not a function")
	}
	if fun.Node == nil {
		return errors.New("function syntax tree entry is <nil>")
	}
	if fun.Node.Typ != ir.FUNCTION {
		return fmt.Errorf("expected syntax tree node FUNCTION, got %s", fun.Node.Type())
	}

	wr.Write(".globl %s%s\n", funcPrefix, fun.Name)
	wr.Label(funcPrefix + fun.Name)

	// Prologue. After these two instructions the stack is 16-byte aligned.
	wr.WriteString("\tpushq\t%rbp\n")
	wr.WriteString("\tmovq\t%rsp, %rbp\n")

	sa := 0
	lc := 0
	returned := false

	paramc := fun.Nparams
	if paramc > paramReg {
		paramc = paramReg
	}
	allocateStack(paramc+fun.Nlocals, &sa, wr)

	// Store the parameter registers in reverse order so that declaration-order
	// parameter 0 lands in the highest numbered parameter slot.
	for p := 0; p < paramc; p++ {
		wr.Write("\tmovq\t%s, %d(%%rbp)\n", paramRegs[paramc-p-1], -(p+1)*wordSize)
	}

	t := target{
		node: fun.Node.Children[2],
		fun:  fun,
		sa:   &sa,
		lc:   &lc,
		ret:  &returned,
		dst:  regRax,
		wr:   wr,
	}
	if err := genNode(t); err != nil {
		return err
	}

	if !returned {
		// Control may fall off the end of the body.
		wr.WriteString("\t# Automatically generated return statement\n")
		wr.WriteString("\tmovq\t$0, %rax\n")
		wr.WriteString("\tleave\n")
		wr.WriteString("\tret\n")
	}
	return nil
}

// genReturn lowers a return statement: the return expression is materialized
// in %rax and the frame is torn down.
func genReturn(t target) error {
	if t.ret == nil {
		return fmt.Errorf("in function %q: return statement in illegal position", t.fun.Name)
	}
	*t.ret = true

	child := t
	child.node = t.node.Children[0]
	child.dst = regRax
	child.ret = nil
	if err := genNode(child); err != nil {
		return err
	}

	t.wr.WriteString("\tleave\n")
	t.wr.WriteString("\tret\n")
	return nil
}
