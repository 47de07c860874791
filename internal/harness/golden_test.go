package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Testdata(t *testing.T) {
	for _, name := range []string{"projection", "subqueries", "operators"} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, loadTestScenario(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshot_MarshalCanonical(t *testing.T) {
	snap := Snapshot{
		ScenarioName: "tiny",
		Queries: []QueryResult{
			{
				Name:       "names",
				PlanID:     "tiny-1",
				Key:        "ignored",
				HQL:        "select p.Name from Person p",
				Model:      "from p in Person select p.Name",
				Slots:      1,
				ResultKind: "sequence",
				Cacheable:  true,
				Hints:      []string{"lock(upgrade)"},
				Output:     []any{"Ann"},
			},
			{Name: "bad", ErrorCode: "NOT_SUPPORTED", ErrorText: "NOT_SUPPORTED: nope"},
		},
	}

	data, err := snap.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"queries":[{"cache_hit":false,"cacheable":true,"flattened":0,"hints":["lock(upgrade)"],`+
			`"hql":"select p.Name from Person p","model":"from p in Person select p.Name","name":"names",`+
			`"output":["Ann"],"plan_id":"tiny-1","result_kind":"sequence","slots":1,"untranslated":false},`+
			`{"error":"NOT_SUPPORTED","name":"bad"}],"scenario_name":"tiny"}`,
		string(data))
}

func TestSnapshot_Deterministic(t *testing.T) {
	first, err := Run(loadTestScenario(t, "projection"))
	require.NoError(t, err)
	second, err := Run(loadTestScenario(t, "projection"))
	require.NoError(t, err)

	a, err := (&Snapshot{ScenarioName: "projection", Queries: first.Queries}).MarshalCanonical()
	require.NoError(t, err)
	b, err := (&Snapshot{ScenarioName: "projection", Queries: second.Queries}).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
