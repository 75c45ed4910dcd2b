package playbook

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/liye-os/kernel/pkg/contracts"
)

// Decision rules are a closed comparison/AND/OR language over named
// signal and target references, evaluated by CEL with an allow-list
// validator. Generic code evaluation, function calls, and anything
// non-deterministic are rejected at load time.
var allowedFunctions = map[string]bool{
	"_&&_": true,
	"_||_": true,
	"!_":   true,
	"_<_":  true,
	"_<=_": true,
	"_>_":  true,
	"_>=_": true,
	"_==_": true,
	"_!=_": true,
	"_[_]": true,
}

var allowedIdents = map[string]bool{
	"signals": true,
	"targets": true,
}

var (
	logicEnvOnce sync.Once
	logicEnv     *cel.Env
	logicEnvErr  error
)

func env() (*cel.Env, error) {
	logicEnvOnce.Do(func() {
		logicEnv, logicEnvErr = cel.NewEnv(
			cel.Variable("signals", cel.MapType(cel.StringType, cel.DoubleType)),
			cel.Variable("targets", cel.MapType(cel.StringType, cel.DoubleType)),
			// Authors write integer thresholds against double signals.
			cel.CrossTypeNumericComparisons(true),
		)
	})
	return logicEnv, logicEnvErr
}

// Logic is a compiled, vetted decision rule.
type Logic struct {
	source  string
	program cel.Program
}

// Source returns the original rule text.
func (l *Logic) Source() string { return l.source }

// CompileLogic parses, vets, and compiles a decision rule. The rule must
// type-check to bool.
func CompileLogic(source string) (*Logic, error) {
	e, err := env()
	if err != nil {
		return nil, fmt.Errorf("%w: logic environment: %v", contracts.ErrConfig, err)
	}

	parsed, issues := e.Parse(source)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: decision_logic parse: %v", contracts.ErrConfig, issues.Err())
	}

	var violations []string
	vet(parsed.Expr(), &violations) //nolint:staticcheck // exprpb walk mirrors the parsed tree
	if len(violations) > 0 {
		return nil, fmt.Errorf("%w: decision_logic %q: %v", contracts.ErrConfig, source, violations)
	}

	checked, issues := e.Check(parsed)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: decision_logic check: %v", contracts.ErrConfig, issues.Err())
	}
	if checked.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("%w: decision_logic %q must evaluate to bool, got %s",
			contracts.ErrConfig, source, checked.OutputType())
	}

	program, err := e.Program(checked)
	if err != nil {
		return nil, fmt.Errorf("%w: decision_logic program: %v", contracts.ErrConfig, err)
	}
	return &Logic{source: source, program: program}, nil
}

// Eval runs the rule against signal and target values. Evaluation failure
// (for example a referenced key absent from the maps) is fail-closed: the
// rule is reported as not satisfied, never as an error.
func (l *Logic) Eval(signals, targets map[string]float64) bool {
	if signals == nil {
		signals = map[string]float64{}
	}
	if targets == nil {
		targets = map[string]float64{}
	}

	val, _, err := l.program.Eval(map[string]interface{}{
		"signals": signals,
		"targets": targets,
	})
	if err != nil {
		return false
	}
	result, ok := val.Value().(bool)
	return ok && result
}

// vet walks the parsed expression and collects every construct outside the
// closed rule language.
func vet(e *exprpb.Expr, violations *[]string) {
	if e == nil {
		return
	}

	switch k := e.ExprKind.(type) {
	case *exprpb.Expr_ConstExpr:
		// Numeric, bool, and string literals are all fine as comparison
		// operands.

	case *exprpb.Expr_IdentExpr:
		if !allowedIdents[k.IdentExpr.Name] {
			*violations = append(*violations,
				fmt.Sprintf("identifier %q is not a signal/target reference", k.IdentExpr.Name))
		}

	case *exprpb.Expr_SelectExpr:
		sel := k.SelectExpr
		if op, ok := sel.Operand.ExprKind.(*exprpb.Expr_IdentExpr); !ok || !allowedIdents[op.IdentExpr.Name] {
			*violations = append(*violations,
				fmt.Sprintf("selection %q must be rooted at signals or targets", sel.Field))
		}

	case *exprpb.Expr_CallExpr:
		call := k.CallExpr
		if !allowedFunctions[call.Function] {
			*violations = append(*violations,
				fmt.Sprintf("operator %q is outside the rule language", call.Function))
		}
		if call.Target != nil {
			vet(call.Target, violations)
		}
		for _, arg := range call.Args {
			vet(arg, violations)
		}

	default:
		// Lists, structs, comprehensions: none belong in a decision rule.
		*violations = append(*violations, "construct is outside the rule language")
	}
}
