package translate

import (
	"errors"
	"fmt"

	"github.com/roach88/querylift/internal/eval"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/queryir"
)

// ResultKind is the shape of a query's result.
type ResultKind int

const (
	// ResultSequence yields one value per row.
	ResultSequence ResultKind = iota
	// ResultCount yields the single count column of the single row.
	ResultCount
	// ResultFirst yields the first value.
	ResultFirst
	// ResultFirstOrDefault yields the first value, or nil with no rows.
	ResultFirstOrDefault
	// ResultAny yields whether any row was fetched.
	ResultAny
)

var resultKindNames = map[ResultKind]string{
	ResultSequence:       "sequence",
	ResultCount:          "count",
	ResultFirst:          "first",
	ResultFirstOrDefault: "first_or_default",
	ResultAny:            "any",
}

func (k ResultKind) String() string {
	if s, ok := resultKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ErrNoRows is returned by Execute for a first-result plan with no rows.
var ErrNoRows = errors.New("sequence contains no elements")

// Plan is a translated query: the server query, and how to turn its rows
// into results.
type Plan struct {
	// ID is the translation session id.
	ID string

	// Key identifies the plan shape. Plans that differ only in bind
	// parameter values share a key.
	Key string

	// Model is the query model as translated, after flattening.
	Model string

	Query      *queryir.Select
	Parameters map[string]ir.IRValue

	// Projection rebuilds a result from a row; nil when the single
	// projected column is the result.
	Projection *qmodel.Lambda
	Projector  eval.Projector
	Slots      int
	Result     ResultKind

	// Hints are result operators carried to the executor verbatim (locks,
	// fetches).
	Hints []string

	CanCachePlan              bool
	UncacheableReasons        []string
	ContainsUntranslatedCalls bool
	Flattened                 int
}

// HQL renders the server query.
func (p *Plan) HQL() string {
	return queryir.FormatSelect(p.Query)
}

// Execute turns fetched rows into the query result: a []any for sequence
// plans, a single value otherwise. Each row holds one value per slot.
func (p *Plan) Execute(rows [][]any) (any, error) {
	switch p.Result {
	case ResultCount:
		if len(rows) != 1 || len(rows[0]) != 1 {
			return nil, fmt.Errorf("count expects one row of one column, got %d rows", len(rows))
		}
		return rows[0][0], nil
	case ResultAny:
		return len(rows) > 0, nil
	case ResultFirst, ResultFirstOrDefault:
		if len(rows) == 0 {
			if p.Result == ResultFirstOrDefault {
				return nil, nil
			}
			return nil, ErrNoRows
		}
		return p.project(rows[0])
	}
	out := make([]any, 0, len(rows))
	for i, row := range rows {
		v, err := p.project(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *Plan) project(row []any) (any, error) {
	if len(row) != p.Slots {
		return nil, fmt.Errorf("row has %d values, plan projects %d", len(row), p.Slots)
	}
	if p.Projector != nil {
		return p.Projector(row)
	}
	if p.Slots != 1 {
		return nil, fmt.Errorf("plan projects %d values without a projector", p.Slots)
	}
	return row[0], nil
}
