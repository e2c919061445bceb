// address.go maps symbols to their memory operands. Globals live in the bss
// section and are addressed by label. Parameters and locals live in numbered
// 8-byte frame slots addressed relative to %rbp; slot k is at -(k+1)*8(%rbp).

package x86

import (
	"fmt"
	"strings"

	"vslc64/src/ir"
)

// getSlot returns the frame slot of the parameter or local sym inside function
// fun. The prologue stores register-passed parameters in reverse order, so
// declaration-order parameter seq occupies slot min(5, nparms-1) - seq. Locals
// occupy the slots immediately after the parameter slots.
func getSlot(fun *ir.Symbol, sym *ir.Symbol) int {
	if sym.Typ == ir.SymParam {
		slot := fun.Nparams - 1
		if slot > paramReg-1 {
			slot = paramReg - 1
		}
		return slot - sym.Seq
	}

	paramc := fun.Nparams
	if paramc > paramReg {
		paramc = paramReg
	}
	return sym.Seq + paramc
}

// variableAccessor returns the memory operand of sym inside function fun.
// Parameters beyond the sixth were passed on the caller's stack and are read
// in place, above the saved base pointer and return address.
func variableAccessor(fun *ir.Symbol, sym *ir.Symbol) (string, error) {
	switch sym.Typ {
	case ir.SymGlobal:
		return fmt.Sprintf(".%s", sym.Name), nil
	case ir.SymParam:
		if sym.Seq >= paramReg {
			return fmt.Sprintf("%d(%%rbp)", 2*wordSize+(sym.Seq-paramReg)*wordSize), nil
		}
		return fmt.Sprintf("%d(%%rbp)", -(getSlot(fun, sym)+1)*wordSize), nil
	case ir.SymLocal:
		return fmt.Sprintf("%d(%%rbp)", -(getSlot(fun, sym)+1)*wordSize), nil
	default:
		return "", symbolError(fun, sym, "unsupported symbol kind for identifier data")
	}
}

// accessVariable emits a move of the value of sym into destination operand dst.
// A mov cannot take two memory operands, so a memory destination is staged
// through %rax; no value is live in %rax at these sites.
func accessVariable(t target, dst string, sym *ir.Symbol) error {
	acc, err := variableAccessor(t.fun, sym)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(dst, "%") {
		t.wr.Write("\tmovq\t%s, %s\n", acc, regRax)
		t.wr.Write("\tmovq\t%s, %s\n", regRax, dst)
		return nil
	}
	t.wr.Write("\tmovq\t%s, %s\n", acc, dst)
	return nil
}

// writeVariable emits a move of register reg into the memory location of sym.
func writeVariable(t target, reg string, sym *ir.Symbol) error {
	acc, err := variableAccessor(t.fun, sym)
	if err != nil {
		return err
	}
	t.wr.Write("\tmovq\t%s, %s\n", reg, acc)
	return nil
}
