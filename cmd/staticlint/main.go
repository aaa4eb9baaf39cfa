// Command staticlint runs the vet passes, the staticcheck SA and S1 checks,
// ST1000 and the project analyzers over the module.
//
// Set STATICLINT_SKIP to a comma separated list of analyzer names to turn
// some of them off.
package main

import (
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"

	"golang.org/x/tools/go/analysis/passes/appends"
	"golang.org/x/tools/go/analysis/passes/assign"
	"golang.org/x/tools/go/analysis/passes/atomic"
	"golang.org/x/tools/go/analysis/passes/bools"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/defers"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/ifaceassert"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilfunc"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/shift"
	"golang.org/x/tools/go/analysis/passes/sigchanyzer"
	"golang.org/x/tools/go/analysis/passes/stdmethods"
	"golang.org/x/tools/go/analysis/passes/stringintconv"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/testinggoroutine"
	"golang.org/x/tools/go/analysis/passes/tests"
	"golang.org/x/tools/go/analysis/passes/timeformat"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"golang.org/x/tools/go/analysis/passes/unusedresult"

	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"
	"honnef.co/go/tools/stylecheck"

	"github.com/gostaticanalysis/forcetypeassert"
	"github.com/gostaticanalysis/nilerr"

	"github.com/vshulcz/Clashpulse/cmd/staticlint/ctxsleep"
	"github.com/vshulcz/Clashpulse/cmd/staticlint/noexit"
	"github.com/vshulcz/Clashpulse/internal/misc"
)

func main() {
	analyzers := vetPasses()
	analyzers = append(analyzers, pick(staticcheck.Analyzers, "SA")...)
	analyzers = append(analyzers, pick(simple.Analyzers, "S1")...)
	analyzers = append(analyzers, pick(stylecheck.Analyzers, "ST1000")...)
	analyzers = append(analyzers,
		nilerr.Analyzer,
		forcetypeassert.Analyzer,
		noexit.Analyzer,
		ctxsleep.Analyzer,
	)

	multichecker.Main(
		skipAnalyzers(analyzers, misc.GetList("STATICLINT_SKIP"))...,
	)
}

// vetPasses are the x/tools passes that matter for goroutine, context and
// error heavy code.
func vetPasses() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		appends.Analyzer,
		assign.Analyzer,
		atomic.Analyzer,
		bools.Analyzer,
		copylock.Analyzer,
		defers.Analyzer,
		errorsas.Analyzer,
		httpresponse.Analyzer,
		ifaceassert.Analyzer,
		loopclosure.Analyzer,
		lostcancel.Analyzer,
		nilfunc.Analyzer,
		nilness.Analyzer,
		printf.Analyzer,
		shift.Analyzer,
		sigchanyzer.Analyzer,
		stdmethods.Analyzer,
		stringintconv.Analyzer,
		structtag.Analyzer,
		testinggoroutine.Analyzer,
		tests.Analyzer,
		timeformat.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,
		unusedresult.Analyzer,
	}
}

// pick returns the analyzers whose name starts with prefix.
func pick(set []*lint.Analyzer, prefix string) []*analysis.Analyzer {
	var out []*analysis.Analyzer
	for _, la := range set {
		if la == nil || la.Analyzer == nil {
			continue
		}
		if strings.HasPrefix(la.Analyzer.Name, prefix) {
			out = append(out, la.Analyzer)
		}
	}
	return out
}

// skipAnalyzers drops nil entries, duplicates and every analyzer named in skip.
func skipAnalyzers(analyzers []*analysis.Analyzer, skip []string) []*analysis.Analyzer {
	drop := make(map[string]bool, len(skip))
	for _, name := range skip {
		drop[name] = true
	}
	out := make([]*analysis.Analyzer, 0, len(analyzers))
	for _, a := range analyzers {
		if a == nil || drop[a.Name] {
			continue
		}
		drop[a.Name] = true
		out = append(out, a)
	}
	return out
}
