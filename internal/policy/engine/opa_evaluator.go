package engine

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.clanportal.authz.allow"

// defaultRegoPolicy grants a request when the role's scopes contain the required scope.
const defaultRegoPolicy = `package clanportal.authz

default allow := false

allow if {
	input.required != ""
	some scope in input.scopes
	scope == input.required
}
`

// OPAEvaluator decides scope authorization with an in-process OPA Rego query.
// The policy is compiled and prepared once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles the default policy plus any extra modules in package
// clanportal.authz. Extra modules may add allow rules; they cannot remove the default one.
func NewOPAEvaluator(ctx context.Context, extra ...string) (*OPAEvaluator, error) {
	compiler, err := compile(extra)
	if err != nil {
		return nil, err
	}
	pq, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare authz policy: %w", err)
	}
	return &OPAEvaluator{query: pq}, nil
}

func compile(extra []string) (*ast.Compiler, error) {
	modules := map[string]string{"authz_0.rego": defaultRegoPolicy}
	for i, m := range extra {
		modules[fmt.Sprintf("authz_%d.rego", i+1)] = m
	}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile authz policy: %w", err)
	}
	return compiler, nil
}

// Allowed implements Evaluator.
func (e *OPAEvaluator) Allowed(ctx context.Context, in Input) (bool, error) {
	scopes := make([]any, len(in.Scopes))
	for i, s := range in.Scopes {
		scopes[i] = s
	}
	input := map[string]any{
		"role":     in.Role,
		"scopes":   scopes,
		"required": in.Required,
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("eval authz policy: %w", err)
	}
	return rs.Allowed(), nil
}

// HealthCheck verifies that the default policy compiles and evaluates. It does
// not touch the database. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	compiler, err := compile(nil)
	if err != nil {
		return err
	}
	rs, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
		rego.Input(map[string]any{"scopes": []any{"home:get"}, "required": "home:get"}),
	).Eval(ctx)
	if err != nil {
		return fmt.Errorf("eval default policy: %w", err)
	}
	if !rs.Allowed() {
		return fmt.Errorf("default policy denied a granted scope")
	}
	return nil
}
