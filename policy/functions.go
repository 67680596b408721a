package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Summarize folds statement conclusions into a verdict. A hard conclusion wins
// immediately; otherwise soft ones are merged and UNSET falls back to defaultAllow.
func Summarize(conclusions []Conclusion, defaultAllow bool) bool {
	result := UNSET
	for _, c := range conclusions {
		switch c {
		case ALLOW:
			return true
		case DENY:
			return false
		default:
			result = result.Or(c)
		}
	}
	if result == UNSET {
		return defaultAllow
	}
	return result == ALLOW || result == OK
}

func EvaluatePolicy(policydoc PolicyDocument, ctx RequestContext, action string) (Conclusion, error) {

	policy, ok := policydoc.Versions[Version]
	if !ok {
		return UNSET, fmt.Errorf("unsupported policy version")
	}

	statements, ok := policy.Statements[action]
	if !ok {
		return UNSET, nil
	}

	conclusion := UNSET
	for _, stmt := range statements {
		evalResult, err := Eval(ctx, stmt.Condition)
		if err != nil {
			slog.Warn(
				"policy statement skipped",
				slog.String("module", "policy"),
				slog.String("action", action),
				slog.String("error", err.Error()),
			)
			continue
		}

		if evalResult.Result == true {
			conclusion = conclusion.Or(ParseConclusion(stmt.Emit))
		}
	}
	return conclusion, nil
}

func Eval(ctx RequestContext, expr Expr) (EvalResult, error) {

	if expr.Const != nil {
		return EvalResult{
			Operator: "Const",
			Result:   expr.Const,
		}, nil
	}

	args := make([]any, 0, len(expr.Args))
	results := make([]EvalResult, 0, len(expr.Args))
	for _, arg := range expr.Args {
		result, err := Eval(ctx, arg)
		if err != nil {
			return EvalResult{
				Operator: expr.Operator,
				Args:     append(results, result),
				Error:    err.Error(),
			}, err
		}
		args = append(args, result.Result)
		results = append(results, result)
	}

	operatorFunc, exists := operators[expr.Operator]
	if !exists {
		err := fmt.Errorf("unknown operator: %s", expr.Operator)
		return EvalResult{
			Operator: expr.Operator,
			Error:    err.Error(),
		}, err
	}

	result, err := operatorFunc(ctx, args)
	result.Args = results
	return result, err
}

// Engine evaluates one policy document against write requests.
type Engine struct {
	doc PolicyDocument
}

func Parse(data []byte) (*Engine, error) {
	var doc PolicyDocument
	err := json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}
	if _, ok := doc.Versions[Version]; !ok {
		return nil, fmt.Errorf("policy %q has no %s version", doc.Name, Version)
	}
	return &Engine{doc: doc}, nil
}

func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy: %w", err)
	}
	return Parse(data)
}

func (e *Engine) Name() string {
	return e.doc.Name
}

// Allowed reports whether action may proceed. Document params are visible to
// conditions under "params" unless the request already set them.
func (e *Engine) Allowed(action string, ctx RequestContext) (bool, error) {
	if ctx.Params == nil && e.doc.Params != nil {
		ctx.Params = e.doc.Params
	}

	conclusion, err := EvaluatePolicy(e.doc, ctx, action)
	if err != nil {
		return false, err
	}

	defaultAllow, ok := e.doc.Versions[Version].Defaults[action]
	if !ok {
		defaultAllow = true
	}
	return Summarize([]Conclusion{conclusion}, defaultAllow), nil
}
