// parser.go implements a hand-written recursive descent parser for VSL. The
// parser holds a single token of lookahead and consumes the item stream emitted
// by the concurrently running lexer. Statement separators (';') are
// insignificant and skipped by the token feed.

package frontend

import (
	"errors"
	"fmt"
	"strconv"

	"vslc64/src/ir"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// parser holds the parse state: the lexer being consumed and the current lookahead token.
type parser struct {
	l   *lexer
	tok item
}

// ---------------------
// ----- Constants -----
// ---------------------

// binaryOps defines the binary operators by ascending precedence level.
var binaryOps = [...][]itemType{
	{itemType('|')},
	{itemType('^')},
	{itemType('&')},
	{itemType('+'), itemType('-')},
	{itemType('*'), itemType('/')},
}

// ---------------------
// ----- Functions -----
// ---------------------

// next advances the lookahead by one token, skipping statement separators.
func (p *parser) next() {
	for {
		p.tok = p.l.nextItem()
		if p.tok.typ != itemType(';') {
			return
		}
	}
}

// expect consumes the current token if it has type typ and returns it.
// Otherwise a syntax error naming the expected construct is returned.
func (p *parser) expect(typ itemType, what string) (item, error) {
	if p.tok.typ == itemError {
		return p.tok, errors.New(p.tok.val)
	}
	if p.tok.typ != typ {
		return p.tok, fmt.Errorf("line %d:%d: expected %s, got %s",
			p.tok.line, p.tok.pos, what, p.tok.String())
	}
	t := p.tok
	p.next()
	return t, nil
}

// unexpected returns a syntax error for the current token.
func (p *parser) unexpected(what string) error {
	if p.tok.typ == itemError {
		return errors.New(p.tok.val)
	}
	return fmt.Errorf("line %d:%d: expected %s, got %s",
		p.tok.line, p.tok.pos, what, p.tok.String())
}

// parseProgram parses the global list of function definitions and global
// variable declarations.
func (p *parser) parseProgram() (*ir.Node, error) {
	root := &ir.Node{Typ: ir.PROGRAM, Line: 1, Pos: 1}
	for p.tok.typ != itemEOF {
		switch p.tok.typ {
		case itemError:
			return nil, errors.New(p.tok.val)
		case FUNC:
			f, err := p.parseFunction()
			if err != nil {
				return nil, err
			}
			root.Children = append(root.Children, f)
		case VAR:
			d, err := p.parseDeclaration()
			if err != nil {
				return nil, err
			}
			root.Children = append(root.Children, d)
		default:
			return nil, p.unexpected("'func' or 'var'")
		}
	}
	return root, nil
}

// parseDeclaration parses a variable declaration: "var" ident {"," ident}.
func (p *parser) parseDeclaration() (*ir.Node, error) {
	t, err := p.expect(VAR, "'var'")
	if err != nil {
		return nil, err
	}
	decl := nodeInit(ir.DECLARATION, nil, t)
	for {
		id, err := p.expect(IDENTIFIER, "identifier")
		if err != nil {
			return nil, err
		}
		decl.Children = append(decl.Children, nodeInit(ir.IDENTIFIER_DATA, id.val, id))
		if p.tok.typ != itemType(',') {
			return decl, nil
		}
		p.next()
	}
}

// parseFunction parses a function definition:
// "func" ident "(" [ident {"," ident}] ")" statement.
func (p *parser) parseFunction() (*ir.Node, error) {
	t, err := p.expect(FUNC, "'func'")
	if err != nil {
		return nil, err
	}
	name, err := p.expect(IDENTIFIER, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(itemType('('), "'('"); err != nil {
		return nil, err
	}

	params := nodeInit(ir.PARAMETER_LIST, nil, t)
	if p.tok.typ == IDENTIFIER {
		for {
			id, err := p.expect(IDENTIFIER, "parameter name")
			if err != nil {
				return nil, err
			}
			params.Children = append(params.Children, nodeInit(ir.IDENTIFIER_DATA, id.val, id))
			if p.tok.typ != itemType(',') {
				break
			}
			p.next()
		}
	}
	if _, err := p.expect(itemType(')'), "')'"); err != nil {
		return nil, err
	}

	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return nodeInit(ir.FUNCTION, nil, t,
		nodeInit(ir.IDENTIFIER_DATA, name.val, name), params, body), nil
}

// parseStatement parses a single statement.
func (p *parser) parseStatement() (*ir.Node, error) {
	switch p.tok.typ {
	case itemType('{'):
		return p.parseBlock()
	case IDENTIFIER:
		return p.parseAssignment()
	case PRINT:
		return p.parsePrint()
	case RETURN:
		t := p.tok
		p.next()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		return nodeInit(ir.RETURN_STATEMENT, nil, t, e), nil
	case IF:
		return p.parseIf()
	case WHILE:
		return p.parseWhile()
	case CONTINUE:
		t := p.tok
		p.next()
		return nodeInit(ir.NULL_STATEMENT, nil, t), nil
	default:
		return nil, p.unexpected("statement")
	}
}

// parseBlock parses "{" {declaration} {statement} "}". Declarations must
// precede the statements of the block.
func (p *parser) parseBlock() (*ir.Node, error) {
	t, err := p.expect(itemType('{'), "'{'")
	if err != nil {
		return nil, err
	}
	block := nodeInit(ir.BLOCK, nil, t)
	for p.tok.typ == VAR {
		d, err := p.parseDeclaration()
		if err != nil {
			return nil, err
		}
		block.Children = append(block.Children, d)
	}
	for p.tok.typ != itemType('}') {
		if p.tok.typ == itemEOF {
			return nil, fmt.Errorf("line %d:%d: unexpected end of file, unclosed block", t.line, t.pos)
		}
		if p.tok.typ == VAR {
			return nil, fmt.Errorf("line %d:%d: declarations must precede the statements of a block",
				p.tok.line, p.tok.pos)
		}
		s, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Children = append(block.Children, s)
	}
	p.next()
	return block, nil
}

// parseAssignment parses ident (":=" | "+=" | "-=" | "*=" | "/=") expression.
func (p *parser) parseAssignment() (*ir.Node, error) {
	id, err := p.expect(IDENTIFIER, "identifier")
	if err != nil {
		return nil, err
	}
	var typ ir.NodeType
	switch p.tok.typ {
	case ASSIGN:
		typ = ir.ASSIGNMENT_STATEMENT
	case PLUSASSIGN:
		typ = ir.ADD_STATEMENT
	case MINUSASSIGN:
		typ = ir.SUBTRACT_STATEMENT
	case MULASSIGN:
		typ = ir.MULTIPLY_STATEMENT
	case DIVASSIGN:
		typ = ir.DIVIDE_STATEMENT
	default:
		return nil, p.unexpected("assignment operator")
	}
	t := p.tok
	p.next()
	e, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return nodeInit(typ, nil, t, nodeInit(ir.IDENTIFIER_DATA, id.val, id), e), nil
}

// parsePrint parses "print" print_item {"," print_item}.
func (p *parser) parsePrint() (*ir.Node, error) {
	t, err := p.expect(PRINT, "'print'")
	if err != nil {
		return nil, err
	}
	stmt := nodeInit(ir.PRINT_STATEMENT, nil, t)
	for {
		if p.tok.typ == STRING {
			s := p.tok
			p.next()
			stmt.Children = append(stmt.Children, nodeInit(ir.STRING_DATA, s.val, s))
		} else {
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			stmt.Children = append(stmt.Children, e)
		}
		if p.tok.typ != itemType(',') {
			return stmt, nil
		}
		p.next()
	}
}

// parseIf parses "if" relation statement ["else" statement].
func (p *parser) parseIf() (*ir.Node, error) {
	t, err := p.expect(IF, "'if'")
	if err != nil {
		return nil, err
	}
	rel, err := p.parseRelation()
	if err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.tok.typ != ELSE {
		return nodeInit(ir.IF_STATEMENT, nil, t, rel, then), nil
	}
	p.next()
	els, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return nodeInit(ir.IF_STATEMENT, nil, t, rel, then, els), nil
}

// parseWhile parses "while" relation statement.
func (p *parser) parseWhile() (*ir.Node, error) {
	t, err := p.expect(WHILE, "'while'")
	if err != nil {
		return nil, err
	}
	rel, err := p.parseRelation()
	if err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return nodeInit(ir.WHILE_STATEMENT, nil, t, rel, body), nil
}

// parseRelation parses expression ("=" | "<" | ">") expression.
func (p *parser) parseRelation() (*ir.Node, error) {
	lhs, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	switch p.tok.typ {
	case itemType('='), itemType('<'), itemType('>'):
	default:
		return nil, p.unexpected("relation operator '=', '<' or '>'")
	}
	t := p.tok
	p.next()
	rhs, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return nodeInit(ir.RELATION, t.val, t, lhs, rhs), nil
}

// parseExpression parses an expression with standard operator precedence.
func (p *parser) parseExpression() (*ir.Node, error) {
	return p.parseBinary(0)
}

// parseBinary parses the binary operator level given by level. Operators on the
// same level are left associative.
func (p *parser) parseBinary(level int) (*ir.Node, error) {
	if level == len(binaryOps) {
		return p.parseUnary()
	}
	lhs, err := p.parseBinary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		match := false
		for _, e1 := range binaryOps[level] {
			if p.tok.typ == e1 {
				match = true
				break
			}
		}
		if !match {
			return lhs, nil
		}
		t := p.tok
		p.next()
		rhs, err := p.parseBinary(level + 1)
		if err != nil {
			return nil, err
		}
		lhs = nodeInit(ir.EXPRESSION, t.val, t, lhs, rhs)
	}
}

// parseUnary parses the unary operators '-' and '~'.
func (p *parser) parseUnary() (*ir.Node, error) {
	switch p.tok.typ {
	case itemType('-'), itemType('~'):
		t := p.tok
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return nodeInit(ir.EXPRESSION, t.val, t, operand), nil
	}
	return p.parsePrimary()
}

// parsePrimary parses integers, identifiers, function calls and parenthesised
// expressions.
func (p *parser) parsePrimary() (*ir.Node, error) {
	switch p.tok.typ {
	case INTEGER:
		t := p.tok
		p.next()
		v, err := strconv.ParseInt(t.val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d:%d: could not parse integer %q: %s", t.line, t.pos, t.val, err)
		}
		return nodeInit(ir.INTEGER_DATA, v, t), nil
	case IDENTIFIER:
		id := p.tok
		p.next()
		ident := nodeInit(ir.IDENTIFIER_DATA, id.val, id)
		if p.tok.typ != itemType('(') {
			return ident, nil
		}

		// Function call.
		p.next()
		args := nodeInit(ir.ARGUMENT_LIST, nil, id)
		if p.tok.typ != itemType(')') {
			for {
				e, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args.Children = append(args.Children, e)
				if p.tok.typ != itemType(',') {
					break
				}
				p.next()
			}
		}
		if _, err := p.expect(itemType(')'), "')'"); err != nil {
			return nil, err
		}
		return nodeInit(ir.EXPRESSION, nil, id, ident, args), nil
	case itemType('('):
		p.next()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(itemType(')'), "')'"); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, p.unexpected("expression")
	}
}
