// Package noexit defines an analyzer that reports process exits outside
// package main. Library code returns errors and lets the command decide.
package noexit

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

var Analyzer = &analysis.Analyzer{
	Name:     "noexit",
	Doc:      "reports os.Exit, log.Fatal* and zap Fatal calls outside package main",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	if pass.Pkg == nil || pass.Pkg.Name() == "main" {
		return nil, nil
	}

	insp, ok := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	if !ok {
		return nil, fmt.Errorf("failed to assert type: expected *inspector.Inspector")
	}

	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return
		}
		if f := pass.Fset.File(call.Pos()); f != nil && strings.HasSuffix(f.Name(), "_test.go") {
			return
		}
		if name := exitCall(pass, call); name != "" {
			pass.Reportf(call.Pos(), "%s terminates the process; return an error to the caller instead", name)
		}
	})
	return nil, nil
}

// exitCall returns the qualified name of the exiting function called by call,
// or "" if call does not exit.
func exitCall(pass *analysis.Pass, call *ast.CallExpr) string {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel == nil || pass.TypesInfo == nil {
		return ""
	}
	fn, ok := pass.TypesInfo.Uses[sel.Sel].(*types.Func)
	if !ok || fn.Pkg() == nil {
		return ""
	}

	path, name := fn.Pkg().Path(), fn.Name()
	switch {
	case path == "os" && name == "Exit":
	case path == "log" && strings.HasPrefix(name, "Fatal"):
	case path == "go.uber.org/zap" && (name == "Fatal" || name == "Fatalf" || name == "Fatalw"):
	default:
		return ""
	}
	return path + "." + name
}
