package harness

// QueryResult is what the harness observed for one query.
type QueryResult struct {
	Name string `json:"name"`

	// PlanID and Key are empty when translation failed.
	PlanID string `json:"plan_id,omitempty"`
	Key    string `json:"-"`

	HQL          string         `json:"hql,omitempty"`
	Model        string         `json:"model,omitempty"`
	Slots        int            `json:"slots"`
	ResultKind   string         `json:"result_kind,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Hints        []string       `json:"hints,omitempty"`
	Cacheable    bool           `json:"cacheable"`
	Untranslated bool           `json:"untranslated"`
	Flattened    int            `json:"flattened"`

	// CacheHit is set when an earlier query of the run cached a plan
	// under the same key.
	CacheHit bool `json:"cache_hit"`

	// ErrorCode is the translation error code, when translation failed.
	ErrorCode string `json:"error,omitempty"`
	ErrorText string `json:"error_text,omitempty"`

	// Output is the normalized Execute result over the query's rows.
	Output      any    `json:"output,omitempty"`
	OutputError string `json:"output_error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	Queries []QueryResult `json:"queries"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Queries: []QueryResult{},
		Errors:  []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
