package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/querylift/internal/qmodel"
)

// checkExpectation compares what the harness observed for q with its
// expectation. keys maps earlier query names to their plan keys.
func checkExpectation(q QueryCase, got QueryResult, keys map[string]string) []string {
	e := q.Expect
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if e.Error != "" {
		if got.ErrorCode != e.Error {
			fail("expected error %s, got %s", e.Error, describe(got))
		}
		return errs
	}
	if got.ErrorCode != "" {
		return append(errs, fmt.Sprintf("unexpected error: %s", got.ErrorText))
	}

	if e.HQL != "" && e.HQL != got.HQL {
		fail("hql:\n  expected: %s\n  actual:   %s", e.HQL, got.HQL)
	}
	if e.Model != "" && e.Model != got.Model {
		fail("model:\n  expected: %s\n  actual:   %s", e.Model, got.Model)
	}
	if e.Slots != nil && *e.Slots != got.Slots {
		fail("slots: expected %d, got %d", *e.Slots, got.Slots)
	}
	if e.ResultKind != "" && e.ResultKind != got.ResultKind {
		fail("result_kind: expected %s, got %s", e.ResultKind, got.ResultKind)
	}
	if e.Cacheable != nil && *e.Cacheable != got.Cacheable {
		fail("cacheable: expected %t, got %t", *e.Cacheable, got.Cacheable)
	}
	if e.Untranslated != nil && *e.Untranslated != got.Untranslated {
		fail("untranslated: expected %t, got %t", *e.Untranslated, got.Untranslated)
	}
	if e.Flattened != nil && *e.Flattened != got.Flattened {
		fail("flattened: expected %d, got %d", *e.Flattened, got.Flattened)
	}
	if e.Hints != nil {
		if d := cmp.Diff(e.Hints, got.Hints, cmpopts.EquateEmpty()); d != "" {
			fail("hints (-want +got):\n%s", d)
		}
	}
	if e.Parameters != nil {
		if d := cmp.Diff(normalize(e.Parameters), normalize(got.Parameters), cmpopts.EquateEmpty()); d != "" {
			fail("parameters (-want +got):\n%s", d)
		}
	}
	if e.SameKeyAs != "" && keys[e.SameKeyAs] != got.Key {
		fail("plan key differs from %s", e.SameKeyAs)
	}

	switch {
	case e.ResultError != "":
		if !strings.Contains(got.OutputError, e.ResultError) {
			fail("result error: expected %q, got %q", e.ResultError, got.OutputError)
		}
	case e.Result != nil:
		if got.OutputError != "" {
			fail("execute: %s", got.OutputError)
		} else if d := cmp.Diff(normalize(e.Result), got.Output, cmpopts.EquateEmpty()); d != "" {
			fail("result (-want +got):\n%s", d)
		}
	}
	return errs
}

func describe(got QueryResult) string {
	if got.ErrorCode == "" {
		return "a plan: " + got.HQL
	}
	return got.ErrorText
}

// normalize maps a value to the shape YAML decodes to: records become maps
// of member name to value, integers become int64.
func normalize(v any) any {
	switch x := v.(type) {
	case *qmodel.Record:
		m := make(map[string]any, len(x.Names))
		for i, name := range x.Names {
			m[name] = normalize(x.Values[i])
		}
		return m
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// normalizeRows converts YAML-decoded rows to the value model of fetched
// rows.
func normalizeRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = make([]any, len(row))
		for j, v := range row {
			out[i][j] = normalize(v)
		}
	}
	return out
}
