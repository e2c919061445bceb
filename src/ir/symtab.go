// symtab.go builds the symbol tables for globals, functions, parameters and local
// variables, interns string literals and binds every identifier node in the syntax
// tree to its symbol table entry. The back end never performs name lookup; it reads
// the Entry pointers assigned here.

package ir

import (
	"fmt"
	"vslc64/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Symbol represents a named entity: a global variable, a function, a parameter
// or a local variable.
type Symbol struct {
	Name    string    // Identifier as written in source.
	Typ     int       // Symbol kind, one of SymGlobal, SymFunc, SymParam, SymLocal.
	Seq     int       // Declaration sequence number, unique within the symbol's scope kind.
	Nparams int       // Number of parameters (functions only).
	Nlocals int       // Number of local variables, nested blocks included (functions only).
	Params  []*Symbol // Parameter symbols in declaration order (functions only).
	Locals  *SymTab   // Function scope holding parameters and top level locals (functions only).
	Node    *Node     // FUNCTION node of the function body (functions only).
	Line    int       // Line in source code the symbol is declared.
	Pos     int       // Position on the line in source code the symbol is declared.
}

// SymTab is an insertion ordered symbol table.
type SymTab struct {
	HT    map[string]*Symbol // Hash table for name lookup.
	Order []*Symbol          // Symbols in insertion order.
}

// stringTable holds interned string literals without their surrounding quotes;
// the code generators add the quotes on emission. Index i is emitted with label
// .STR<i>.
type stringTable struct {
	St []string
}

// ---------------------
// ----- Constants -----
// ---------------------

// Symbol kinds.
const (
	SymGlobal = iota
	SymFunc
	SymParam
	SymLocal
)

// symTyp provides print friendly strings for symbol kinds.
var symTyp = [...]string{
	"GLOBAL_VAR",
	"FUNCTION",
	"PARAMETER",
	"LOCAL_VAR",
}

// -------------------
// ----- Globals -----
// -------------------

// Global is the ordered table of global variables and functions.
var Global *SymTab

// Strings is the global string table.
var Strings stringTable

// ---------------------
// ----- Functions -----
// ---------------------

// String returns a print friendly string of the Symbol s.
func (s *Symbol) String() string {
	if s == nil {
		return "---> [NIL POINTER]"
	}
	return fmt.Sprintf("%s %q (seq %d)", symTyp[s.Typ], s.Name, s.Seq)
}

// NewSymTab returns a pointer to a new, empty symbol table.
func NewSymTab() *SymTab {
	return &SymTab{HT: make(map[string]*Symbol)}
}

// Add inserts the symbol s into the symbol table. An error is returned if a symbol
// with the same name already exists in this table.
func (st *SymTab) Add(s *Symbol) error {
	if e, ok := st.HT[s.Name]; ok {
		return fmt.Errorf("redeclaration of %s %q, first declared at line %d:%d",
			symTyp[e.Typ], e.Name, e.Line, e.Pos)
	}
	st.HT[s.Name] = s
	st.Order = append(st.Order, s)
	return nil
}

// Get retrieves the symbol with the given name, if it exists in this table.
func (st *SymTab) Get(name string) (*Symbol, bool) {
	s, ok := st.HT[name]
	return s, ok
}

// Size returns the number of symbols in the table.
func (st *SymTab) Size() int {
	return len(st.Order)
}

// Add interns the string literal s and returns its index in the string table.
func (t *stringTable) Add(s string) int {
	t.St = append(t.St, s)
	return len(t.St) - 1
}

// Get returns the interned string literal with index i.
func (t *stringTable) Get(i int) string {
	if i < 0 || i >= len(t.St) {
		return ""
	}
	return t.St[i]
}

// Size returns the number of interned string literals.
func (t *stringTable) Size() int {
	return len(t.St)
}

// GetEntry retrieves a Symbol entry from the scope stack st, inner-most scope first.
func GetEntry(name string, st *util.Stack) (*Symbol, error) {
	for i1 := 1; i1 <= st.Size(); i1++ {
		s, ok := st.Get(i1).(*SymTab)
		if !ok {
			return nil, fmt.Errorf("compiler error: scope stack malformed")
		}
		if e, ok := s.Get(name); ok {
			return e, nil
		}
	}
	return nil, fmt.Errorf("identifier %q not declared", name)
}

// GenerateSymTab populates the global symbol table and the string table from the
// syntax tree rooted at Root, and binds identifier nodes to their symbols.
func GenerateSymTab(opt util.Options) error {
	if Root == nil {
		return fmt.Errorf("syntax tree root is <nil>")
	}

	Global = NewSymTab()
	Strings = stringTable{}

	// First pass: bind global variables and function symbols, so that calls may
	// reference functions declared later in the source.
	for _, e1 := range Root.Children {
		switch e1.Typ {
		case DECLARATION:
			for _, e2 := range e1.Children {
				sym := &Symbol{
					Name: e2.Data.(string),
					Typ:  SymGlobal,
					Seq:  Global.Size(),
					Line: e2.Line,
					Pos:  e2.Pos,
				}
				if err := Global.Add(sym); err != nil {
					return fmt.Errorf("line %d:%d: %s", e2.Line, e2.Pos, err)
				}
				e2.Entry = sym
			}
		case FUNCTION:
			name := e1.Children[0]
			sym := &Symbol{
				Name:   name.Data.(string),
				Typ:    SymFunc,
				Seq:    Global.Size(),
				Locals: NewSymTab(),
				Node:   e1,
				Line:   name.Line,
				Pos:    name.Pos,
			}
			if err := Global.Add(sym); err != nil {
				return fmt.Errorf("line %d:%d: %s", name.Line, name.Pos, err)
			}
			name.Entry = sym
			e1.Entry = sym
		default:
			return fmt.Errorf("line %d:%d: unexpected global node %s", e1.Line, e1.Pos, e1.Type())
		}
	}

	// Second pass: bind function parameters and bodies.
	for _, e1 := range Root.Children {
		if e1.Typ != FUNCTION {
			continue
		}
		if err := bindFunction(e1.Entry); err != nil {
			return err
		}
	}
	return nil
}

// bindFunction numbers the parameters and local variables of function fun and
// binds every identifier node of its body through a scope stack.
func bindFunction(fun *Symbol) error {
	params := fun.Node.Children[1]
	for i1, e1 := range params.Children {
		sym := &Symbol{
			Name: e1.Data.(string),
			Typ:  SymParam,
			Seq:  i1,
			Line: e1.Line,
			Pos:  e1.Pos,
		}
		if err := fun.Locals.Add(sym); err != nil {
			return fmt.Errorf("line %d:%d: %s", e1.Line, e1.Pos, err)
		}
		fun.Params = append(fun.Params, sym)
		e1.Entry = sym
	}
	fun.Nparams = len(fun.Params)

	st := util.Stack{}
	st.Push(Global)
	st.Push(fun.Locals)
	err := bindNode(fun.Node.Children[2], fun, &st, true)
	st.Pop()
	st.Pop()
	return err
}

// bindNode recursively binds identifier nodes of the sub-tree n to symbols.
// Declarations create new local symbols in the inner-most scope; the symbols
// receive frame sequence numbers from the flat per-function counter. top is
// true when n is the function body block, whose scope is the function scope
// already pushed by bindFunction.
func bindNode(n *Node, fun *Symbol, st *util.Stack, top bool) error {
	switch n.Typ {
	case BLOCK:
		scope, _ := st.Peek().(*SymTab)
		if !top {
			scope = NewSymTab()
			st.Push(scope)
			defer st.Pop()
		}
		for _, e1 := range n.Children {
			if e1.Typ != DECLARATION {
				continue
			}
			for _, e2 := range e1.Children {
				sym := &Symbol{
					Name: e2.Data.(string),
					Typ:  SymLocal,
					Seq:  fun.Nlocals,
					Line: e2.Line,
					Pos:  e2.Pos,
				}
				if err := scope.Add(sym); err != nil {
					return fmt.Errorf("line %d:%d: %s", e2.Line, e2.Pos, err)
				}
				fun.Nlocals++
				e2.Entry = sym
			}
		}
		for _, e1 := range n.Children {
			if e1.Typ == DECLARATION {
				continue
			}
			if err := bindNode(e1, fun, st, false); err != nil {
				return err
			}
		}
		return nil
	case IDENTIFIER_DATA:
		e, err := GetEntry(n.Data.(string), st)
		if err != nil {
			return fmt.Errorf("line %d:%d: %s", n.Line, n.Pos, err)
		}
		n.Entry = e
		return nil
	case STRING_DATA:
		// Intern the literal and replace the payload with the table index.
		if s, ok := n.Data.(string); ok {
			n.Data = Strings.Add(s)
		}
		return nil
	case EXPRESSION:
		if n.Data == nil && len(n.Children) == 2 {
			// Function call: the callee identifier resolves in the global scope only.
			callee := n.Children[0]
			e, ok := Global.Get(callee.Data.(string))
			if !ok {
				return fmt.Errorf("line %d:%d: call of undeclared function %q",
					callee.Line, callee.Pos, callee.Data.(string))
			}
			callee.Entry = e
			return bindNode(n.Children[1], fun, st, false)
		}
	}
	for _, e1 := range n.Children {
		if err := bindNode(e1, fun, st, false); err != nil {
			return err
		}
	}
	return nil
}
