package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a set of queries translated against one catalog, each with
// its expected plan and, optionally, rows to execute the plan over.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is a CUE catalog file or directory, relative to the
	// scenario file.
	Catalog string `yaml:"catalog"`

	// IDPrefix names the plans of the scenario prefix-1, prefix-2, ...
	// Defaults to the scenario name.
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// Queries are translated in order within one harness run.
	Queries []QueryCase `yaml:"queries"`
}

// QueryCase is one query of a scenario.
type QueryCase struct {
	Name string `yaml:"name"`

	// Query is the query model in the expression DSL; see Builder.
	Query yaml.Node `yaml:"query"`

	// Rows are fetched rows to run the plan over. Requires Expect.Result.
	Rows [][]any `yaml:"rows,omitempty"`

	Expect Expectation `yaml:"expect"`
}

// Expectation is the expected outcome of one query. Unset fields are not
// checked.
type Expectation struct {
	// Error is the expected translation error code (NOT_SUPPORTED,
	// EMIT_FAILED, INVALID_MODEL). Mutually exclusive with the rest.
	Error string `yaml:"error,omitempty"`

	HQL          string   `yaml:"hql,omitempty"`
	Model        string   `yaml:"model,omitempty"`
	Slots        *int     `yaml:"slots,omitempty"`
	ResultKind   string   `yaml:"result_kind,omitempty"`
	Cacheable    *bool    `yaml:"cacheable,omitempty"`
	Untranslated *bool    `yaml:"untranslated,omitempty"`
	Flattened    *int     `yaml:"flattened,omitempty"`
	Hints        []string `yaml:"hints,omitempty"`

	// Parameters maps bind parameter names to their values.
	Parameters map[string]any `yaml:"parameters,omitempty"`

	// Result is the value Execute produces from Rows. Records compare as
	// maps of member name to value.
	Result any `yaml:"result,omitempty"`

	// ResultError is a substring of the error Execute returns from Rows.
	ResultError string `yaml:"result_error,omitempty"`

	// SameKeyAs names an earlier query of the scenario whose plan key
	// this query must share.
	SameKeyAs string `yaml:"same_key_as,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The catalog path is
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Catalog != "" && !filepath.IsAbs(s.Catalog) {
		s.Catalog = filepath.Join(filepath.Dir(path), s.Catalog)
	}
	if _, err := os.Stat(s.Catalog); err != nil {
		return nil, fmt.Errorf("invalid scenario: catalog not found: %s", s.Catalog)
	}
	return s, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

var errorCodes = map[string]bool{
	"NOT_SUPPORTED": true,
	"EMIT_FAILED":   true,
	"INVALID_MODEL": true,
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Catalog == "" {
		return fmt.Errorf("catalog is required")
	}
	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}

	seen := make(map[string]bool)
	for i, q := range s.Queries {
		if q.Name == "" {
			return fmt.Errorf("queries[%d]: name is required", i)
		}
		if seen[q.Name] {
			return fmt.Errorf("queries[%d]: duplicate name %q", i, q.Name)
		}
		if q.Query.Kind == 0 {
			return fmt.Errorf("queries[%d]: query is required", i)
		}
		e := q.Expect
		if e.Error != "" {
			if !errorCodes[e.Error] {
				return fmt.Errorf("queries[%d].expect: unknown error code %q", i, e.Error)
			}
			if e.HQL != "" || e.Result != nil || len(q.Rows) > 0 {
				return fmt.Errorf("queries[%d].expect: error excludes hql, result and rows", i)
			}
		}
		if len(q.Rows) > 0 && e.Result == nil && e.ResultError == "" {
			return fmt.Errorf("queries[%d]: rows need expect.result or expect.result_error", i)
		}
		if e.SameKeyAs != "" && !seen[e.SameKeyAs] {
			return fmt.Errorf("queries[%d].expect: same_key_as names no earlier query %q", i, e.SameKeyAs)
		}
		seen[q.Name] = true
	}
	return nil
}
