// tree.go provides the entry points of the front end: Parse scans and parses a
// source string into a syntax tree of ir.Nodes, and TokenStream dumps the token
// stream for the -ts flag. The scanner runs concurrently to the parser which
// lets one goroutine scan source strings for lexemes while the other builds the
// syntax tree.

package frontend

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"vslc64/src/ir"
	"vslc64/src/util"
)

// Parse parses the syntax tree from the source code. On success the tree is
// assigned to ir.Root.
func Parse(src string) error {
	l := newLexer(src, lexGlobal)

	// Start scanner and run it concurrently to the parser.
	go l.run()

	p := parser{l: l}
	p.next()

	root, err := p.parseProgram()
	if err != nil {
		// Drain the lexer so its goroutine terminates.
		for t := p.tok; t.typ != itemEOF && t.typ != itemError; t = l.nextItem() {
		}
		return err
	}

	if root == nil {
		return errors.New("root node is <nil>")
	}
	ir.Root = root
	return nil
}

// TokenStream outputs the token stream from the given source string.
func TokenStream(src string) error {
	l := newLexer(src, lexGlobal)
	go l.run()

	wr := util.NewWriter()
	defer wr.Close()
	sb := strings.Builder{}
	tw := tabwriter.NewWriter(&sb, 10, 20, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Value\tType\tPosition\n")
	for {
		t := l.nextItem()
		switch t.typ {
		case itemEOF:
			var err error = nil
			if err2 := tw.Flush(); err2 != nil {
				err = err2
			}
			wr.WriteString(sb.String())
			return err
		case itemError:
			wr.WriteString(sb.String())
			return errors.New(t.val)
		default:
			if len(t.val) > 20 {
				_, _ = fmt.Fprintf(tw, "%.17q...\t%s\tline: %d:%d\n", t.val, tokenName(t.typ), t.line, t.pos)
			} else {
				_, _ = fmt.Fprintf(tw, "%q\t%s\tline: %d:%d\n", t.val, tokenName(t.typ), t.line, t.pos)
			}
		}
	}
}

// nodeInit creates an ir.Node of type typ at the position of item t, holding
// data and the given children.
func nodeInit(typ ir.NodeType, data interface{}, t item, children ...*ir.Node) *ir.Node {
	return &ir.Node{
		Typ:      typ,
		Line:     t.line,
		Pos:      t.pos,
		Data:     data,
		Children: children,
	}
}
