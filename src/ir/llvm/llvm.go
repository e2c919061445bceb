// Package llvm transforms the syntax tree into LLVM IR and compiles it to an
// object file using the system installed LLVM runtime. It is the alternate
// emission path behind the -ll flag; the hand-written x86 back end remains the
// default.
package llvm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

import (
	"tinygo.org/x/go-llvm"
)

import (
	ast "vslc64/src/ir"
	"vslc64/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// symTab is a symbol table that implements a hash map and a read/write mutex for thread safe access.
type symTab struct {
	m map[string]llvm.Value
	sync.RWMutex
}

// funcWrapper wraps a function symbol and its LLVM function definition.
type funcWrapper struct {
	ll  llvm.Value  // LLVM function definition.
	sym *ast.Symbol // Symbol table entry of function.
}

// ---------------------
// ----- Constants -----
// ---------------------

const mapSize = 16 // Predefined size for a decently sized symbol table hash table.

// funcPrefix prefixes compiled VSL functions, keeping the module's function
// namespace clear of the generated main and the C library functions.
const funcPrefix = "_func_"

// -------------------
// ----- globals -----
// -------------------

var stringPrefix = "L_STR" // Prefix all global strings with this prefix.
var i = llvm.Int64Type()   // i defines the 64-bit integer type of the source language.

// globals is the global symbol table that keeps track of globally declared variables for easy access.
var globals symTab

// ---------------------
// ----- functions -----
// ---------------------

// GenLLVM generates LLVM IR from the root ast.Node of the syntax tree and
// compiles the module to an object file.
func GenLLVM(opt util.Options, root *ast.Node) error {
	if root == nil {
		return errors.New("syntax tree node is <nil>")
	}
	if len(root.Children) < 1 {
		return errors.New("syntax tree node has no children")
	}

	globals.m = make(map[string]llvm.Value, mapSize)
	ctx := llvm.NewContext()
	defer ctx.Dispose()

	// Builder constructs LLVM IR instructions on basic block level.
	b := ctx.NewBuilder()
	defer b.Dispose()

	// Set module name equal file name without file extension.
	m := ctx.NewModule(filepath.Base(opt.Src))
	defer m.Dispose()

	// Declare globals and function headers up front so call sites and
	// identifier references resolve regardless of definition order.
	funcs := make([]funcWrapper, 0, len(root.Children))
	for _, e1 := range root.Children {
		switch e1.Typ {
		case ast.FUNCTION:
			fun, err := genFuncHeader(m, e1.Entry)
			if err != nil {
				return err
			}
			funcs = append(funcs, funcWrapper{ll: fun, sym: e1.Entry})
		case ast.DECLARATION:
			genDeclarationGlobal(m, e1)
		default:
			return fmt.Errorf("expected node of type FUNCTION or DECLARATION, got %s", e1.Type())
		}
	}

	// Generate function bodies.
	if opt.Threads > 1 {
		// Parallel. Give each worker its own builder; two builders must not
		// interleave basic blocks of the same function.
		t := opt.Threads
		l := len(funcs)
		if t > l {
			t = l
		}
		n := l / t
		res := l % t

		start := 0
		end := n

		wg := sync.WaitGroup{}
		wg.Add(t)
		pe := util.NewPerror(l)

		for i1 := 0; i1 < t; i1++ {
			if i1 < res {
				// Worker should do one extra residual job.
				end++
			}

			go func(start, end int, wg *sync.WaitGroup, pe *util.Perror) {
				defer wg.Done()
				wb := ctx.NewBuilder()
				defer wb.Dispose()
				for _, e1 := range funcs[start:end] {
					pe.Append(genFuncBody(wb, m, e1.ll, e1.sym))
				}
			}(start, end, &wg, pe)
			start = end
			end += n
		}
		wg.Wait()

		if pe.Len() > 0 {
			for err := range pe.Errors() {
				fmt.Fprintln(os.Stderr, err)
			}
			pe.Stop()
			return errors.New("multiple errors during parallel LLVM IR generation")
		}
		pe.Stop()
	} else {
		// Sequential.
		for _, e1 := range funcs {
			if err := genFuncBody(b, m, e1.ll, e1.sym); err != nil {
				return err
			}
		}
	}

	// Generate the implicit main function for program entry.
	if err := genMain(b, m); err != nil {
		return err
	}

	if opt.Verbose {
		fmt.Println("LLVM IR:")
		m.Dump()
	}

	// Initialise LLVM code generation.
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	// Construct target triple.
	t, tt, err := genTargetTriple(&opt)
	if err != nil {
		return err
	}

	tm := t.CreateTargetMachine(tt, "generic", "",
		llvm.CodeGenLevelNone,
		llvm.RelocDefault,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	// Compile target and store in memory.
	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return err
	} else if buf.IsNil() {
		return errors.New("could not emit compiled code to memory")
	}

	// Open/create file and write compiled code to output file.
	var out string
	if len(opt.Out) > 0 {
		out = opt.Out
	} else {
		out = fmt.Sprintf("./%s.o", strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src)))
	}

	fd, err := os.OpenFile(out, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0755)
	if err != nil {
		return err
	}
	defer func() {
		if err := fd.Close(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}()
	if _, err := fd.Write(buf.Bytes()); err != nil {
		return err
	}
	return nil
}

// gen recursively generates LLVM IR by iterating the sub-tree of ast.Node n.
// The returned bool is set true if the sub-tree terminated the current basic
// block with a return statement.
func gen(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st, ls *util.Stack) (bool, error) {
	ret := false
	var err error
	switch n.Typ {
	case ast.BLOCK:
		// Add new scope.
		st.Push(&symTab{m: make(map[string]llvm.Value, mapSize)})
		for _, e1 := range n.Children {
			if ret {
				// A return statement terminated the block; the remaining
				// statements are unreachable.
				break
			}
			if ret, err = gen(b, m, fun, e1, st, ls); err != nil {
				st.Pop()
				return ret, err
			}
		}
		st.Pop()
	case ast.DECLARATION:
		if err = genDeclaration(b, n, st); err != nil {
			return ret, err
		}
	case ast.PRINT_STATEMENT:
		if err = genPrint(b, m, fun, n, st); err != nil {
			return ret, err
		}
	case ast.ASSIGNMENT_STATEMENT, ast.ADD_STATEMENT, ast.SUBTRACT_STATEMENT,
		ast.MULTIPLY_STATEMENT, ast.DIVIDE_STATEMENT:
		if err = genAssign(b, m, fun, n, st); err != nil {
			return ret, err
		}
	case ast.WHILE_STATEMENT:
		if err = genWhile(b, m, fun, n, st, ls); err != nil {
			return ret, err
		}
	case ast.IF_STATEMENT:
		if err = genIf(b, m, fun, n, st, ls); err != nil {
			return ret, err
		}
	case ast.NULL_STATEMENT:
		if err = genContinue(b, ls); err != nil {
			return ret, err
		}
	case ast.RETURN_STATEMENT:
		if err = genReturn(b, m, fun, n, st); err != nil {
			return true, err
		}
		return true, nil
	default:
		// Recursively generate LLVM IR.
		for _, e1 := range n.Children {
			if ret, err = gen(b, m, fun, e1, st, ls); err != nil {
				return ret, err
			}
		}
	}
	return ret, nil
}

// genFuncHeader generates the LLVM IR declaration of the function sym. The
// declaration defines the function's name, parameters and return type.
func genFuncHeader(m llvm.Module, sym *ast.Symbol) (llvm.Value, error) {
	if sym == nil || sym.Typ != ast.SymFunc {
		return llvm.Value{}, errors.New("symbol table entry is not a function")
	}

	atyp := make([]llvm.Type, sym.Nparams)
	for i1 := range atyp {
		atyp[i1] = i
	}
	ftyp := llvm.FunctionType(i, atyp, false)
	fun := llvm.AddFunction(m, funcPrefix+sym.Name, ftyp)

	// Set parameter names.
	for i1, e1 := range fun.Params() {
		e1.SetName(sym.Params[i1].Name)
	}
	return fun, nil
}

// genFuncBody generates the LLVM IR definition of the function sym: the
// executing instructions that run when the function is called. Functions whose
// body may fall off the end return zero implicitly.
func genFuncBody(b llvm.Builder, m llvm.Module, fun llvm.Value, sym *ast.Symbol) error {
	st := util.Stack{} // Scope stack.
	ls := util.Stack{} // Label stack for loops.

	// Create new basic block for function body.
	bb := llvm.AddBasicBlock(fun, "")
	b.SetInsertPointAtEnd(bb)

	// Allocate stack memory for the function's parameters.
	fscope := symTab{m: make(map[string]llvm.Value, mapSize)}
	for _, e1 := range fun.Params() {
		alloc := b.CreateAlloca(e1.Type(), "")
		b.CreateStore(e1, alloc)
		fscope.m[e1.Name()] = alloc
	}

	// Push the function parameters to the bottom of the stack.
	st.Push(&fscope)
	defer st.Pop()

	// Generate function body recursively.
	ret, err := gen(b, m, fun, sym.Node.Children[2], &st, &ls)
	if err != nil {
		return err
	}
	if !ret {
		// Control may fall off the end of the body.
		b.CreateRet(llvm.ConstInt(i, 0, true))
	}
	return nil
}

// genExpression generates LLVM IR from the expression ast.Node n and returns
// the resulting value.
func genExpression(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st *util.Stack) (llvm.Value, error) {
	if n.Data == nil {
		if len(n.Children) == 1 {
			// Wrapped leaf.
			return genOperand(b, m, fun, n.Children[0], st)
		}

		// Function call.
		callee := n.Children[0].Entry
		target := m.NamedFunction(funcPrefix + callee.Name)
		if target.IsAFunction().IsNil() {
			return llvm.Value{}, fmt.Errorf("undeclared function %q", callee.Name)
		}

		arguments := n.Children[1].Children
		if len(arguments) != callee.Nparams {
			return llvm.Value{}, fmt.Errorf("function %q expects %d parameters, got %d",
				callee.Name, callee.Nparams, len(arguments))
		}
		args := make([]llvm.Value, len(arguments))
		for i1, e1 := range arguments {
			r, err := genOperand(b, m, fun, e1, st)
			if err != nil {
				return llvm.Value{}, err
			}
			args[i1] = r
		}
		return b.CreateCall(target, args, ""), nil
	}

	if len(n.Children) == 2 {
		// Binary expression.
		op1, err := genOperand(b, m, fun, n.Children[0], st)
		if err != nil {
			return llvm.Value{}, err
		}
		op2, err := genOperand(b, m, fun, n.Children[1], st)
		if err != nil {
			return llvm.Value{}, err
		}

		switch n.Data.(string) {
		case "+":
			return b.CreateAdd(op1, op2, ""), nil
		case "-":
			return b.CreateSub(op1, op2, ""), nil
		case "*":
			return b.CreateMul(op1, op2, ""), nil
		case "/":
			return b.CreateSDiv(op1, op2, ""), nil
		case "|":
			return b.CreateOr(op1, op2, ""), nil
		case "&":
			return b.CreateAnd(op1, op2, ""), nil
		case "^":
			return b.CreateXor(op1, op2, ""), nil
		default:
			return llvm.Value{}, fmt.Errorf("operator %q not defined for binary expressions", n.Data.(string))
		}
	}

	// Unary expression.
	op1, err := genOperand(b, m, fun, n.Children[0], st)
	if err != nil {
		return llvm.Value{}, err
	}
	switch n.Data.(string) {
	case "-":
		return b.CreateSub(llvm.ConstInt(i, 0, false), op1, ""), nil
	case "~":
		return b.CreateXor(llvm.ConstInt(i, ^uint64(0), false), op1, ""), nil
	default:
		return llvm.Value{}, fmt.Errorf("line %d:%d: unsupported unary operator %q",
			n.Line, n.Pos, n.Data.(string))
	}
}

// genOperand generates LLVM IR for a single expression operand: an integer
// constant, an identifier load or a nested expression.
func genOperand(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st *util.Stack) (llvm.Value, error) {
	switch n.Typ {
	case ast.INTEGER_DATA:
		return llvm.ConstInt(i, uint64(n.Data.(int64)), true), nil
	case ast.EXPRESSION:
		return genExpression(b, m, fun, n, st)
	case ast.IDENTIFIER_DATA:
		return genLoad(n.Data.(string), b, m, fun, st)
	default:
		return llvm.Value{}, fmt.Errorf("line %d:%d: expected node of type INTEGER_DATA, EXPRESSION "+
			"or IDENTIFIER_DATA, got %s", n.Line, n.Pos, n.Type())
	}
}

// genDeclaration generates LLVM IR that declares one or many new local variables in the inner-most scope.
func genDeclaration(b llvm.Builder, n *ast.Node, st *util.Stack) error {
	scope, _ := st.Peek().(*symTab)
	if scope == nil {
		return errors.New("compiler error, no scope on the scope stack")
	}
	for _, e1 := range n.Children {
		name := e1.Data.(string)
		scope.Lock()
		if _, ok := scope.m[name]; ok {
			scope.Unlock()
			return fmt.Errorf("duplicate variable declaration, %q is already declared in the same scope", name)
		}
		scope.m[name] = b.CreateAlloca(i, name)
		scope.Unlock()
	}
	return nil
}

// genDeclarationGlobal generates LLVM IR that declares global variables, zero initialised.
func genDeclarationGlobal(m llvm.Module, n *ast.Node) {
	for _, e1 := range n.Children {
		g := llvm.AddGlobal(m, i, e1.Data.(string))
		g.SetInitializer(llvm.ConstInt(i, 0, false))
	}
}

// genAssign generates LLVM IR that assigns a value to an existing variable.
// Compound arithmetic assignments load the variable, apply the operation and
// store the result back.
func genAssign(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st *util.Stack) error {
	name := n.Children[0].Data.(string)
	src, err := genOperand(b, m, fun, n.Children[1], st)
	if err != nil {
		return err
	}

	if n.Typ != ast.ASSIGNMENT_STATEMENT {
		old, err := genLoad(name, b, m, fun, st)
		if err != nil {
			return err
		}
		switch n.Typ {
		case ast.ADD_STATEMENT:
			src = b.CreateAdd(old, src, "")
		case ast.SUBTRACT_STATEMENT:
			src = b.CreateSub(old, src, "")
		case ast.MULTIPLY_STATEMENT:
			src = b.CreateMul(old, src, "")
		case ast.DIVIDE_STATEMENT:
			src = b.CreateSDiv(old, src, "")
		}
	}
	return genStore(src, name, b, m, st)
}

// genReturn generates LLVM IR that terminates the current basic block with a return statement.
func genReturn(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st *util.Stack) error {
	val, err := genOperand(b, m, fun, n.Children[0], st)
	if err != nil {
		return err
	}
	b.CreateRet(val)
	return nil
}

// genPrint generates LLVM IR that calls printf to print strings, identifiers
// and expressions. One printf call covers the whole statement, newline included.
func genPrint(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st *util.Stack) error {
	// Check if printf is declared.
	globals.Lock()
	pf := m.NamedFunction("printf")
	if pf.IsAFunction().IsNil() {
		pf = genPrintf(m)
	}
	globals.Unlock()

	// Build printf arguments.
	args := make([]llvm.Value, len(n.Children)+1)
	sb := strings.Builder{}
	for i1, e1 := range n.Children {
		switch e1.Typ {
		case ast.STRING_DATA:
			sb.WriteString("%s ")
			globals.Lock()
			args[i1+1] = b.CreateGlobalStringPtr(ast.Strings.Get(e1.Data.(int)), stringPrefix)
			globals.Unlock()
		default:
			sb.WriteString("%ld ")
			val, err := genOperand(b, m, fun, e1, st)
			if err != nil {
				return err
			}
			args[i1+1] = val
		}
	}
	sb.WriteRune('\n')

	// Construct format string and prepend it to the arguments.
	globals.Lock()
	args[0] = b.CreateGlobalStringPtr(sb.String(), stringPrefix)
	globals.Unlock()

	b.CreateCall(pf, args, "")
	return nil
}

// genRelation generates LLVM IR that compares two operands with the given relation.
func genRelation(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st *util.Stack) (llvm.Value, error) {
	op1, err := genOperand(b, m, fun, n.Children[0], st)
	if err != nil {
		return llvm.Value{}, err
	}
	op2, err := genOperand(b, m, fun, n.Children[1], st)
	if err != nil {
		return llvm.Value{}, err
	}

	switch n.Data.(string) {
	case "=":
		return b.CreateICmp(llvm.IntEQ, op1, op2, ""), nil
	case "<":
		return b.CreateICmp(llvm.IntSLT, op1, op2, ""), nil
	case ">":
		return b.CreateICmp(llvm.IntSGT, op1, op2, ""), nil
	default:
		return llvm.Value{}, fmt.Errorf("undefined relation operator %q", n.Data.(string))
	}
}

// genIf generates LLVM IR for either IF-THEN or IF-THEN-ELSE statements.
func genIf(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st, ls *util.Stack) error {
	val, err := genRelation(b, m, fun, n.Children[0], st)
	if err != nil {
		return err
	}

	thn := llvm.AddBasicBlock(fun, "")

	if len(n.Children) == 2 {
		// IF-THEN.
		conv := llvm.AddBasicBlock(fun, "")
		b.CreateCondBr(val, thn, conv)

		// Generate THEN.
		b.SetInsertPointAtEnd(thn)
		ret, err := gen(b, m, fun, n.Children[1], st, ls)
		if err != nil {
			return err
		}
		if !ret {
			b.CreateBr(conv)
		}
		b.SetInsertPointAtEnd(conv)
		return nil
	}

	// IF-THEN-ELSE.
	els := llvm.AddBasicBlock(fun, "")
	var conv llvm.BasicBlock
	b.CreateCondBr(val, thn, els)

	// Generate THEN.
	b.SetInsertPointAtEnd(thn)
	retA, err := gen(b, m, fun, n.Children[1], st, ls)
	if err != nil {
		return err
	}
	if !retA {
		conv = llvm.AddBasicBlock(fun, "")
		b.CreateBr(conv)
	}

	// Generate ELSE.
	b.SetInsertPointAtEnd(els)
	retB, err := gen(b, m, fun, n.Children[2], st, ls)
	if err != nil {
		return err
	}
	if !retB {
		if conv.IsNil() {
			conv = llvm.AddBasicBlock(fun, "")
		}
		b.CreateBr(conv)
	}

	// Check if either branch converges. If one does, continue inserting at the
	// converging basic block.
	if !conv.IsNil() {
		b.SetInsertPointAtEnd(conv)
	}
	return nil
}

// genWhile generates LLVM IR for while loops.
func genWhile(b llvm.Builder, m llvm.Module, fun llvm.Value, n *ast.Node, st, ls *util.Stack) error {
	head := llvm.AddBasicBlock(fun, "")
	body := llvm.AddBasicBlock(fun, "")
	conv := llvm.AddBasicBlock(fun, "")

	// Push head to label stack for CONTINUE statement.
	ls.Push(head)

	// Generate relation and branch.
	b.CreateBr(head)
	b.SetInsertPointAtEnd(head)
	rel, err := genRelation(b, m, fun, n.Children[0], st)
	if err != nil {
		return err
	}
	b.CreateCondBr(rel, body, conv)

	// Generate WHILE body.
	b.SetInsertPointAtEnd(body)
	ret, err := gen(b, m, fun, n.Children[1], st, ls)
	if err != nil {
		return err
	}
	if !ret {
		// Jump back to loop head.
		b.CreateBr(head)
	}

	// Converge.
	b.SetInsertPointAtEnd(conv)

	// Pop label stack.
	ls.Pop()
	return nil
}

// genContinue generates LLVM IR for a continue statement for loops.
func genContinue(b llvm.Builder, ls *util.Stack) error {
	l := ls.Peek()
	if l == nil {
		return errors.New("continue statement outside loop")
	}
	b.CreateBr(l.(llvm.BasicBlock))
	return nil
}

// genStore generates an LLVM IR store instruction that stores the src value in
// the requested identifier with given name.
func genStore(src llvm.Value, name string, b llvm.Builder, m llvm.Module, st *util.Stack) error {
	// Check local scopes. Function parameters are on the bottom of the scope stack.
	for i1 := 1; i1 <= st.Size(); i1++ {
		if scope := st.Get(i1).(*symTab); scope != nil {
			scope.RLock()
			dst, ok := scope.m[name]
			scope.RUnlock()
			if ok {
				b.CreateStore(src, dst)
				return nil
			}
		}
	}

	// Check global scope.
	dst := m.NamedGlobal(name)
	if dst.IsNil() {
		return fmt.Errorf("undeclared variable %q", name)
	}
	b.CreateStore(src, dst)
	return nil
}

// genLoad generates an LLVM IR load instruction for the requested identifier
// with given name and returns the resulting value.
func genLoad(name string, b llvm.Builder, m llvm.Module, fun llvm.Value, st *util.Stack) (llvm.Value, error) {
	// Check local scopes. Function parameters are on the bottom of the scope stack.
	for i1 := 1; i1 <= st.Size(); i1++ {
		if scope := st.Get(i1).(*symTab); scope != nil {
			scope.RLock()
			src, ok := scope.m[name]
			scope.RUnlock()
			if ok {
				return b.CreateLoad(src, ""), nil
			}
		}
	}

	// Check global scope.
	val := m.NamedGlobal(name)
	if val.IsNil() {
		return llvm.Value{}, fmt.Errorf("undeclared variable %q", name)
	}
	return b.CreateLoad(val, ""), nil
}

// genMain generates LLVM IR for the implicit main function. The main function
// parses the command line arguments and calls the entry function: the function
// named main if one exists, otherwise the first function defined.
func genMain(b llvm.Builder, m llvm.Module) error {
	var entry *ast.Symbol
	mainLock := false
	for _, e1 := range ast.Global.Order {
		if e1.Typ != ast.SymFunc {
			continue
		}
		isMain := e1.Name == "main"
		if isMain || (!mainLock && (entry == nil || entry.Seq > e1.Seq)) {
			entry = e1
			mainLock = isMain
		}
	}
	if entry == nil {
		return errors.New("no functions declared in syntax tree")
	}

	fun := m.NamedFunction(funcPrefix + entry.Name)
	if fun.IsNil() {
		return errors.New("entry function does not have an LLVM IR declaration")
	}

	// Define main function.
	params := []llvm.Type{i, llvm.PointerType(llvm.PointerType(llvm.Int8Type(), 0), 0)}
	ftyp := llvm.FunctionType(i, params, false)
	main := llvm.AddFunction(m, "main", ftyp)
	main.Param(0).SetName("argc")
	main.Param(1).SetName("argv")
	bb := llvm.AddBasicBlock(main, "")
	b.SetInsertPointAtEnd(bb)
	argcGood := llvm.AddBasicBlock(main, "argcGood")
	argcBad := llvm.AddBasicBlock(main, "argcBad")

	// Verify the argument count before calling the VSL function.
	argc := b.CreateSub(main.Param(0), llvm.ConstInt(i, 1, true), "")
	cmp := b.CreateICmp(llvm.IntEQ, argc, llvm.ConstInt(i, uint64(entry.Nparams), true), "")
	b.CreateCondBr(cmp, argcGood, argcBad)

	// Generate argc is ok: parse each argument with strtol, base 10.
	b.SetInsertPointAtEnd(argcGood)
	argv := main.Param(1)
	args := make([]llvm.Value, entry.Nparams)

	var strtol llvm.Value
	if entry.Nparams > 0 {
		strtol = genStrtol(m)
	}
	for i1 := 0; i1 < entry.Nparams; i1++ {
		ptr := b.CreateGEP(argv, []llvm.Value{llvm.ConstInt(i, uint64(i1+1), false)}, "")
		args[i1] = b.CreateCall(strtol, []llvm.Value{
			b.CreateLoad(ptr, ""),
			llvm.ConstPointerNull(llvm.PointerType(llvm.PointerType(llvm.Int8Type(), 0), 0)),
			llvm.ConstInt(llvm.Int32Type(), 10, true),
		}, "")
	}

	// Call the entry function and return its result.
	b.CreateRet(b.CreateCall(fun, args, ""))

	// Generate argc mismatch.
	b.SetInsertPointAtEnd(argcBad)
	globals.Lock()
	pf := m.NamedFunction("printf")
	if pf.IsAFunction().IsNil() {
		pf = genPrintf(m)
	}
	errMsg := b.CreateGlobalStringPtr("Wrong number of arguments\n", stringPrefix)
	globals.Unlock()
	b.CreateCall(pf, []llvm.Value{errMsg}, "")
	b.CreateRet(llvm.ConstInt(i, 1, false))

	return nil
}

// genPrintf generates the LLVM IR printf declaration.
func genPrintf(m llvm.Module) llvm.Value {
	args := []llvm.Type{llvm.PointerType(llvm.Int8Type(), 0)}
	ftyp := llvm.FunctionType(llvm.Int32Type(), args, true)
	return llvm.AddFunction(m, "printf", ftyp)
}

// genStrtol generates the LLVM IR strtol declaration.
func genStrtol(m llvm.Module) llvm.Value {
	if f := m.NamedFunction("strtol"); !f.IsAFunction().IsNil() {
		return f
	}
	params := []llvm.Type{
		llvm.PointerType(llvm.Int8Type(), 0),
		llvm.PointerType(llvm.PointerType(llvm.Int8Type(), 0), 0),
		llvm.Int32Type(),
	}
	ftyp := llvm.FunctionType(i, params, false)
	return llvm.AddFunction(m, "strtol", ftyp)
}

// genTargetTriple generates an LLVM target triple given the compiler options.
func genTargetTriple(opt *util.Options) (llvm.Target, string, error) {
	var triple string
	if opt.TargetArch == util.X86_64 {
		triple = "x86_64-pc-linux-gnu"
	} else {
		// Use compiler host's default triple.
		triple = llvm.DefaultTargetTriple()
	}

	if opt.Verbose {
		fmt.Printf("compiling for target %s\n", triple)
	}
	llvm.InitializeAllTargets()
	tt, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return llvm.Target{}, "", err
	}
	return tt, triple, nil
}
