package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/querylift/internal/ir"
)

// Snapshot is the golden form of a scenario run: every plan's observable
// fields, serialized as canonical JSON. Plan keys are left out; they are
// hashes and a change to them shows up as same_key_as failures instead.
type Snapshot struct {
	ScenarioName string
	Queries      []QueryResult
}

func (s *Snapshot) toCanonicalMap() map[string]any {
	queries := make([]any, len(s.Queries))
	for i, q := range s.Queries {
		if q.ErrorCode != "" {
			queries[i] = map[string]any{
				"name":  q.Name,
				"error": q.ErrorCode,
			}
			continue
		}
		m := map[string]any{
			"name":         q.Name,
			"plan_id":      q.PlanID,
			"hql":          q.HQL,
			"model":        q.Model,
			"slots":        q.Slots,
			"result_kind":  q.ResultKind,
			"cacheable":    q.Cacheable,
			"untranslated": q.Untranslated,
			"flattened":    q.Flattened,
			"cache_hit":    q.CacheHit,
		}
		if len(q.Parameters) > 0 {
			m["parameters"] = q.Parameters
		}
		if len(q.Hints) > 0 {
			hints := make([]any, len(q.Hints))
			for j, h := range q.Hints {
				hints[j] = h
			}
			m["hints"] = hints
		}
		if q.Output != nil {
			m["output"] = q.Output
		}
		if q.OutputError != "" {
			m["output_error"] = q.OutputError
		}
		queries[i] = m
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"queries":       queries,
	}
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden runs scenario and compares its snapshot with
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result with the golden file of name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snap := Snapshot{ScenarioName: name, Queries: result.Queries}
	data, err := snap.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
