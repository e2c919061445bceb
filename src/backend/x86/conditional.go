// conditional.go lowers relations, if statements, while loops and continue
// statements. Every control structure claims a fresh value of the per-function
// label counter when it begins lowering, so nested and sibling structures of
// the same kind get distinct labels.

package x86

import (
	"errors"
	"fmt"

	"vslc64/src/ir"
	"vslc64/src/util"
)

// genRelation lowers a relation node and emits the comparison. The left
// operand ends up in %r10 and the right operand in %r11 before the cmp.
func genRelation(t target) error {
	n := t.node
	if n == nil {
		return errors.New("compiler error: relation node is <nil>")
	}
	if n.Typ != ir.RELATION {
		return fmt.Errorf("line %d:%d: compiler error: expected node of type RELATION, got %s",
			n.Line, n.Pos, n.Type())
	}
	if len(n.Children) != 2 {
		return fmt.Errorf("line %d:%d: compiler error: relation node expected 2 children, got %d",
			n.Line, n.Pos, len(n.Children))
	}

	child := t
	child.ret = nil

	// Left operand into %rax, parked on the stack while the right operand
	// may use %rax during its own lowering.
	child.node = n.Children[0]
	child.dst = regRax
	if err := genNode(child); err != nil {
		return err
	}
	t.wr.WriteString("\tpushq\t%rax\n")
	*t.sa += wordSize

	child.node = n.Children[1]
	child.dst = regR11
	if err := genNode(child); err != nil {
		return err
	}
	t.wr.WriteString("\tpopq\t%r10\n")
	*t.sa -= wordSize

	t.wr.Write("\tcmpq\t%s, %s\n", regR11, regR10)
	return nil
}

// genInverseJump emits the jump that skips the guarded body when the relation
// with operator op is false.
func genInverseJump(t target, op, label string) error {
	switch op {
	case "=":
		t.wr.Write("\tjne\t%s\n", label)
	case ">":
		t.wr.Write("\tjng\t%s\n", label)
	case "<":
		t.wr.Write("\tjnl\t%s\n", label)
	default:
		return fmt.Errorf("in function %q: unexpected relation operator %q", t.fun.Name, op)
	}
	return nil
}

// genIf lowers an if statement, with or without an else branch. The returned
// flag is shadowed per branch so a return inside one branch does not suppress
// emission of the other; it propagates to the parent only when both branches
// return.
func genIf(t target) error {
	n := t.node
	if len(n.Children) < 2 || len(n.Children) > 3 {
		return fmt.Errorf("in function %q: if statement expected 2 or 3 children, got %d",
			t.fun.Name, len(n.Children))
	}

	seq := *t.lc
	*t.lc++

	relation := n.Children[0]
	rel := t
	rel.node = relation
	if err := genRelation(rel); err != nil {
		return err
	}

	hasElse := len(n.Children) == 3
	var firstSkip string
	if hasElse {
		firstSkip = util.NewLabel(t.fun.Name, util.LabelElse, seq)
	} else {
		firstSkip = util.NewLabel(t.fun.Name, util.LabelEndIf, seq)
	}
	if err := genInverseJump(t, relation.Data.(string), firstSkip); err != nil {
		return err
	}

	// Then branch with a shadowed returned flag.
	thenRet := false
	then := t
	then.node = n.Children[1]
	if t.ret != nil {
		then.ret = &thenRet
	}
	if err := genNode(then); err != nil {
		return err
	}

	if !hasElse {
		t.wr.Label(firstSkip)
		return nil
	}

	endIf := util.NewLabel(t.fun.Name, util.LabelEndIf, seq)
	t.wr.Write("\tjmp\t%s\n", endIf)
	t.wr.Label(firstSkip)

	elseRet := false
	els := t
	els.node = n.Children[2]
	if t.ret != nil {
		els.ret = &elseRet
	}
	if err := genNode(els); err != nil {
		return err
	}
	t.wr.Label(endIf)

	if t.ret != nil && thenRet && elseRet {
		// Both branches returned; everything after the if is unreachable.
		*t.ret = true
	}
	return nil
}

// genWhile lowers a while loop. The loop body observes the check label as the
// surrounding loop label, the target of continue statements.
func genWhile(t target) error {
	n := t.node
	if len(n.Children) != 2 {
		return fmt.Errorf("in function %q: while statement expected 2 children, got %d",
			t.fun.Name, len(n.Children))
	}

	seq := *t.lc
	*t.lc++

	check := util.NewLabel(t.fun.Name, util.LabelWhileCheck, seq)
	end := util.NewLabel(t.fun.Name, util.LabelWhileEnd, seq)

	t.wr.Label(check)

	relation := n.Children[0]
	rel := t
	rel.node = relation
	if err := genRelation(rel); err != nil {
		return err
	}
	if err := genInverseJump(t, relation.Data.(string), end); err != nil {
		return err
	}

	// Loop body with a shadowed returned flag: a return inside the body must
	// not suppress the loop back edge, the loop may iterate zero times.
	bodyRet := false
	body := t
	body.node = n.Children[1]
	body.loop = check
	if t.ret != nil {
		body.ret = &bodyRet
	}
	if err := genNode(body); err != nil {
		return err
	}

	t.wr.Write("\tjmp\t%s\n", check)
	t.wr.Label(end)
	return nil
}

// genContinue lowers a continue statement: an unconditional jump to the check
// label of the innermost enclosing while loop.
func genContinue(t target) error {
	if t.loop == "" {
		return fmt.Errorf("in function %q: continue statement outside loop at line %d:%d",
			t.fun.Name, t.node.Line, t.node.Pos)
	}
	t.wr.Write("\tjmp\t%s\n", t.loop)
	return nil
}
