package x86

import (
	"fmt"

	"vslc64/src/ir"
)

// genPrint lowers a print statement. Every item results in one printf call
// with the format string in %rdi and the item in %rsi; a trailing newline
// printf follows the last item. The stack is re-aligned around every printf
// call because the frame may hold an odd number of 8-byte slots.
func genPrint(t target) error {
	for _, e1 := range t.node.Children {
		switch e1.Typ {
		case ir.STRING_DATA:
			t.wr.Write("\tmovq\t$%s, %%rdi\n", labelStrout)
			t.wr.Write("\tmovq\t$%s%d, %%rsi\n", labelString, e1.Data.(int))
		case ir.IDENTIFIER_DATA:
			t.wr.Write("\tmovq\t$%s, %%rdi\n", labelIntout)
			if err := accessVariable(t, "%rsi", e1.Entry); err != nil {
				return err
			}
		case ir.INTEGER_DATA:
			t.wr.Write("\tmovq\t$%s, %%rdi\n", labelIntout)
			t.wr.Write("\tmovq\t$%d, %%rsi\n", e1.Data.(int64))
		case ir.EXPRESSION:
			child := t
			child.node = e1
			child.dst = "%rsi"
			child.ret = nil
			if err := genNode(child); err != nil {
				return err
			}
			t.wr.Write("\tmovq\t$%s, %%rdi\n", labelIntout)
		default:
			return fmt.Errorf("in function %q: print statement expected node of type STRING_DATA, "+
				"IDENTIFIER_DATA, INTEGER_DATA or EXPRESSION, got %s", t.fun.Name, e1.Type())
		}

		pad := alignStack(t.sa, t.wr)
		t.wr.WriteString("\tcall\tprintf\n")
		unalignStack(pad, t.sa, t.wr)
	}

	// Terminating newline.
	t.wr.Write("\tmovq\t$%s, %%rdi\n", labelNewline)
	pad := alignStack(t.sa, t.wr)
	t.wr.WriteString("\tcall\tprintf\n")
	unalignStack(pad, t.sa, t.wr)
	return nil
}
