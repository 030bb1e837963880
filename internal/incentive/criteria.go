// Package incentive holds the two periodically-run earning tracks that are
// independent of any single loan's distribution: monthly employee
// incentives and one-time DSA activation bonuses.
package incentive

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/loanpulse/commission-engine/internal/domain"
)

// CriteriaEngine evaluates activation-bonus qualifying criteria. Criteria
// are CEL expressions over the cumulative sourced volume per loan type, so
// new qualifying rules ship as configuration, not code.
type CriteriaEngine struct {
	env      *cel.Env
	compiled []compiledCriterion
}

type compiledCriterion struct {
	config  domain.ActivationCriterion
	program cel.Program
}

// NewCriteriaEngine compiles the given criteria. An invalid expression
// fails engine construction; criteria are never partially loaded.
func NewCriteriaEngine(criteria []domain.ActivationCriterion) (*CriteriaEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("loan_type", cel.StringType),
		cel.Variable("volume", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &CriteriaEngine{env: env}
	for _, c := range criteria {
		ast, issues := env.Compile(c.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("criterion %s: compile failed: %w", c.ID, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return nil, fmt.Errorf("criterion %s: expression must yield bool, got %s", c.ID, ast.OutputType())
		}
		program, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("criterion %s: program failed: %w", c.ID, err)
		}
		e.compiled = append(e.compiled, compiledCriterion{config: c, program: program})
	}

	return e, nil
}

// CriteriaCount returns the number of loaded criteria.
func (e *CriteriaEngine) CriteriaCount() int {
	return len(e.compiled)
}

// Matches returns the criteria satisfied by the given loan type and
// cumulative volume. Evaluation errors disable the criterion for this call
// rather than failing the batch.
func (e *CriteriaEngine) Matches(loanType domain.LoanType, volume float64) []domain.ActivationCriterion {
	var matched []domain.ActivationCriterion
	vars := map[string]any{
		"loan_type": string(loanType),
		"volume":    volume,
	}

	for _, c := range e.compiled {
		out, _, err := c.program.Eval(vars)
		if err != nil {
			continue
		}
		if out == types.True {
			matched = append(matched, c.config)
		}
	}

	return matched
}
