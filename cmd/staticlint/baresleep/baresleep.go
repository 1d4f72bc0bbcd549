// Package baresleep defines an analyzer that reports time.Sleep calls inside loops.
// A sleeping loop cannot observe cancellation; wait on a timer and ctx.Done instead.
package baresleep

import (
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
	"golang.org/x/tools/go/types/typeutil"
)

// Analyzer is the baresleep analyzer.
var Analyzer = &analysis.Analyzer{
	Name:     "baresleep",
	Doc:      "reports time.Sleep inside for loops outside of tests",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, nil
	}

	insp.WithStack([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node, push bool, stack []ast.Node) bool {
		if !push {
			return true
		}
		call, ok := n.(*ast.CallExpr)
		if !ok || !isTimeSleep(pass.TypesInfo, call) {
			return true
		}
		if strings.HasSuffix(pass.Fset.File(call.Pos()).Name(), "_test.go") {
			return true
		}
		if inLoop(stack) {
			pass.Reportf(call.Pos(), "time.Sleep in a loop ignores cancellation; select on a timer and ctx.Done()")
		}
		return true
	})
	return nil, nil
}

// inLoop reports whether the innermost enclosing function body has a for or range statement
// around the last node of stack.
func inLoop(stack []ast.Node) bool {
	for i := len(stack) - 2; i >= 0; i-- {
		switch stack[i].(type) {
		case *ast.ForStmt, *ast.RangeStmt:
			return true
		case *ast.FuncLit, *ast.FuncDecl:
			return false
		}
	}
	return false
}

func isTimeSleep(info *types.Info, call *ast.CallExpr) bool {
	if info == nil {
		return false
	}
	fn, ok := typeutil.Callee(info, call).(*types.Func)
	if !ok || fn.Pkg() == nil {
		return false
	}
	return fn.Pkg().Path() == "time" && fn.Name() == "Sleep"
}
