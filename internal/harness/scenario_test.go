package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: One query
catalog: shop.cue
queries:
  - name: names
    query:
      from: {p: Person}
      select: {prop: p.Name}
    expect:
      hql: select p.Name from Person p
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "shop.cue", s.Catalog)
	require.Len(t, s.Queries, 1)
	assert.Equal(t, "names", s.Queries[0].Name)
	assert.Equal(t, "select p.Name from Person p", s.Queries[0].Expect.HQL)
	assert.Nil(t, s.Queries[0].Expect.Slots)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\ncatalog: c\nqueries: [{name: q, query: {}}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\ncatalog: c\nqueries: [{name: q, query: {}}]",
			wantErr: "description is required",
		},
		{
			name:    "missing catalog",
			yaml:    "name: n\ndescription: d\nqueries: [{name: q, query: {}}]",
			wantErr: "catalog is required",
		},
		{
			name:    "no queries",
			yaml:    "name: n\ndescription: d\ncatalog: c",
			wantErr: "queries list is required",
		},
		{
			name:    "unnamed query",
			yaml:    "name: n\ndescription: d\ncatalog: c\nqueries: [{query: {}}]",
			wantErr: "queries[0]: name is required",
		},
		{
			name:    "duplicate query",
			yaml:    "name: n\ndescription: d\ncatalog: c\nqueries: [{name: q, query: {}}, {name: q, query: {}}]",
			wantErr: `duplicate name "q"`,
		},
		{
			name:    "missing query",
			yaml:    "name: n\ndescription: d\ncatalog: c\nqueries: [{name: q}]",
			wantErr: "query is required",
		},
		{
			name:    "unknown error code",
			yaml:    "name: n\ndescription: d\ncatalog: c\nqueries: [{name: q, query: {}, expect: {error: BOOM}}]",
			wantErr: `unknown error code "BOOM"`,
		},
		{
			name:    "error with hql",
			yaml:    "name: n\ndescription: d\ncatalog: c\nqueries: [{name: q, query: {}, expect: {error: NOT_SUPPORTED, hql: x}}]",
			wantErr: "error excludes hql",
		},
		{
			name:    "rows without result",
			yaml:    "name: n\ndescription: d\ncatalog: c\nqueries: [{name: q, query: {}, rows: [[1]]}]",
			wantErr: "rows need expect.result",
		},
		{
			name:    "same_key_as forward reference",
			yaml:    "name: n\ndescription: d\ncatalog: c\nqueries: [{name: a, query: {}, expect: {same_key_as: b}}, {name: b, query: {}}]",
			wantErr: `no earlier query "b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "extra: 1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_ResolvesCatalogRelativeToFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.cue"), []byte(`namespace: "shop"`), 0644))
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shop.cue"), s.Catalog)
}

func TestLoadScenario_MissingCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			_, err := LoadScenario(path)
			require.NoError(t, err)
		})
	}
}
