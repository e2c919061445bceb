// statement.go implements the statement lowerer: the dispatch over node kinds
// and the lowering of assignments and compound assignments. Block-like nodes
// iterate their children with the destination inherited from the parent,
// skipping declarations, which the front end has already processed.

package x86

import (
	"fmt"

	"vslc64/src/ir"
)

// genNode lowers the node of the generation request t. The value of value
// producing nodes is materialized in the destination operand t.dst.
func genNode(t target) error {
	switch t.node.Typ {
	case ir.EXPRESSION:
		return genExpression(t)
	case ir.IDENTIFIER_DATA:
		// Accessing the value of the referenced variable. Assignments are
		// handled separately.
		return accessVariable(t, t.dst, t.node.Entry)
	case ir.INTEGER_DATA:
		t.wr.Write("\tmovq\t$%d, %s\n", t.node.Data.(int64), t.dst)
		return nil
	case ir.ASSIGNMENT_STATEMENT:
		return genAssignment(t)
	case ir.ADD_STATEMENT, ir.SUBTRACT_STATEMENT, ir.MULTIPLY_STATEMENT, ir.DIVIDE_STATEMENT:
		return genCompoundAssignment(t)
	case ir.PRINT_STATEMENT:
		return genPrint(t)
	case ir.RETURN_STATEMENT:
		return genReturn(t)
	case ir.IF_STATEMENT:
		return genIf(t)
	case ir.WHILE_STATEMENT:
		return genWhile(t)
	case ir.NULL_STATEMENT:
		return genContinue(t)
	case ir.RELATION:
		return fmt.Errorf("in function %q: relation outside conditional context at line %d:%d",
			t.fun.Name, t.node.Line, t.node.Pos)
	default:
		// Block-like node: lower the children in order with the inherited
		// destination. Declarations were consumed by the symbol table stage.
		for _, e1 := range t.node.Children {
			if e1.Typ == ir.DECLARATION {
				continue
			}
			if t.ret != nil && *t.ret {
				// A return statement has been emitted on this path; the
				// remaining statements are unreachable.
				return nil
			}
			child := t
			child.node = e1
			if err := genNode(child); err != nil {
				return err
			}
		}
		return nil
	}
}

// genAssignment lowers an assignment statement: the right-hand side is
// materialized in %rax and stored to the resolved left-hand side operand.
func genAssignment(t target) error {
	identifier := t.node.Children[0]
	expression := t.node.Children[1]

	child := t
	child.node = expression
	child.dst = regRax
	child.ret = nil
	if err := genNode(child); err != nil {
		return err
	}
	return writeVariable(t, regRax, identifier.Entry)
}

// genCompoundAssignment lowers the compound arithmetic assignments. The
// right-hand side is materialized in %r10, the variable is loaded into %rax,
// the operation applied and the result stored back.
func genCompoundAssignment(t target) error {
	identifier := t.node.Children[0]
	expression := t.node.Children[1]

	child := t
	child.node = expression
	child.dst = regR10
	child.ret = nil
	if err := genNode(child); err != nil {
		return err
	}
	if err := accessVariable(t, regRax, identifier.Entry); err != nil {
		return err
	}

	switch t.node.Typ {
	case ir.ADD_STATEMENT:
		t.wr.Write("\taddq\t%s, %s\n", regR10, regRax)
	case ir.SUBTRACT_STATEMENT:
		t.wr.Write("\tsubq\t%s, %s\n", regR10, regRax)
	case ir.MULTIPLY_STATEMENT:
		t.wr.Write("\timulq\t%s\n", regR10)
	case ir.DIVIDE_STATEMENT:
		t.wr.WriteString("\tcqto\n")
		t.wr.Write("\tidivq\t%s\n", regR10)
	}

	return writeVariable(t, regRax, identifier.Entry)
}
