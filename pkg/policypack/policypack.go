// Package policypack evaluates named, versioned policy packs into a
// ticket's default scope (SPEC_FULL.md §4.10). A policy pack is an
// operator-authored CEL expression; evaluation is sandboxed and
// side-effect free, and failure never blocks issuance — policy packs are
// advisory defaults, not an authorization gate.
package policypack

import (
	"fmt"
	"log/slog"

	"github.com/Masterminds/semver/v3"
	"github.com/google/cel-go/cel"
	"github.com/symbi-labs/ticket-core/pkg/receipts"
)

// Pack is one policy pack definition: a named, versioned CEL rule
// producing default ticket scope fields.
type Pack struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"` // semver
	CELExpr      string `yaml:"cel_expr"`
	DefaultScope receipts.Scope `yaml:"default_scope"`
	// Constraint optionally restricts which referenced versions this
	// pack's evaluator accepts (e.g. ">=1.0.0 <2.0.0"); empty means any.
	Constraint string `yaml:"constraint"`
}

// Table is a name-keyed set of loaded policy packs.
type Table struct {
	packs map[string]Pack
}

// NewTable builds a Table from a slice of packs, keyed by name.
func NewTable(packs []Pack) *Table {
	m := make(map[string]Pack, len(packs))
	for _, p := range packs {
		m[p.Name] = p
	}
	return &Table{packs: m}
}

// Evaluate looks up name, evaluates its CEL expression against the given
// tenant/model/policy_pack facts, and returns the derived scope. None of
// the failure cases is an error to the caller: an unknown pack returns
// (zero-value Scope, false); a version-constraint mismatch logs and
// returns (zero-value Scope, false), so the caller falls back to its own
// or the zero-value scope; a CEL compile/eval error, or a rule that does
// not evaluate to true, logs and returns (pack.DefaultScope, true).
func (t *Table) Evaluate(tenantID, model, policyPack string) (receipts.Scope, bool) {
	pack, ok := t.packs[policyPack]
	if !ok {
		return receipts.Scope{}, false
	}
	if pack.Constraint != "" {
		if v, err := semver.NewVersion(pack.Version); err == nil {
			if c, cerr := semver.NewConstraint(pack.Constraint); cerr == nil && !c.Check(v) {
				slog.Warn("policypack: version does not satisfy constraint, falling back",
					"pack", policyPack, "version", pack.Version, "constraint", pack.Constraint)
				return receipts.Scope{}, false
			}
		}
	}
	if pack.CELExpr == "" {
		return pack.DefaultScope, true
	}
	scope, err := evaluateCEL(pack, tenantID, model, policyPack)
	if err != nil {
		slog.Warn("policypack: CEL evaluation failed, falling back to default scope",
			"pack", policyPack, "error", err)
		return pack.DefaultScope, true
	}
	return scope, true
}

func evaluateCEL(pack Pack, tenantID, model, policyPack string) (receipts.Scope, error) {
	env, err := cel.NewEnv(
		cel.Variable("tenant_id", cel.StringType),
		cel.Variable("model", cel.StringType),
		cel.Variable("policy_pack", cel.StringType),
	)
	if err != nil {
		return pack.DefaultScope, fmt.Errorf("policypack: new CEL env: %w", err)
	}
	ast, iss := env.Compile(pack.CELExpr)
	if iss != nil && iss.Err() != nil {
		return pack.DefaultScope, fmt.Errorf("policypack: compile %q: %w", pack.CELExpr, iss.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return pack.DefaultScope, fmt.Errorf("policypack: program %q: %w", pack.CELExpr, err)
	}
	out, _, err := prg.Eval(map[string]any{
		"tenant_id":   tenantID,
		"model":       model,
		"policy_pack": policyPack,
	})
	if err != nil {
		return pack.DefaultScope, fmt.Errorf("policypack: eval %q: %w", pack.CELExpr, err)
	}
	// A CEL rule evaluating to true keeps the pack's declared default
	// scope; false (or any non-bool result) signals "this pack does not
	// apply here" and falls back.
	if b, ok := out.Value().(bool); ok && b {
		return pack.DefaultScope, nil
	}
	return pack.DefaultScope, fmt.Errorf("policypack: CEL rule did not select this pack")
}
