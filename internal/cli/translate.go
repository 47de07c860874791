package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querylift/internal/catalog"
	"github.com/roach88/querylift/internal/harness"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/session"
	"github.com/roach88/querylift/internal/translate"
)

// TranslateOptions holds flags for the translate command.
type TranslateOptions struct {
	*RootOptions
	Catalog string // overrides the scenario's catalog
	Tree    bool   // print the selector tree of each query
}

// PlanView is the printable form of a translated query.
type PlanView struct {
	Name               string         `json:"name"`
	PlanID             string         `json:"plan_id,omitempty"`
	HQL                string         `json:"hql,omitempty"`
	Model              string         `json:"model"`
	Projection         string         `json:"projection,omitempty"`
	Slots              int            `json:"slots"`
	ResultKind         string         `json:"result_kind,omitempty"`
	Parameters         map[string]any `json:"parameters,omitempty"`
	Hints              []string       `json:"hints,omitempty"`
	Cacheable          bool           `json:"cacheable"`
	UncacheableReasons []string       `json:"uncacheable_reasons,omitempty"`
	Untranslated       bool           `json:"untranslated"`
	Flattened          int            `json:"flattened"`
	Tree               string         `json:"tree,omitempty"`
	Error              *CLIError      `json:"error,omitempty"`
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "translate <scenario.yaml> [query...]",
		Short: "Translate the queries of a scenario file",
		Long: `Translate the queries of a scenario file and print each plan:
its HQL, the translated query model, the client-side projection and the
bind parameters. Expectations in the file are ignored.

Exit codes:
  0 - Every selected query translated
  1 - One or more queries were rejected
  2 - Command error (unreadable scenario or catalog, unknown query)

Examples:
  querylift translate ./scenarios/operators.yaml
  querylift translate ./scenarios/operators.yaml ages_for_ann --tree
  querylift translate ./query.yaml --catalog ./shop.cue --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "CUE catalog file or directory (default: the scenario's catalog)")
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "print the selector tree of each query")

	return cmd
}

func runTranslate(opts *TranslateOptions, path string, names []string, cmd *cobra.Command) error {
	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	catalogPath := scenario.Catalog
	if opts.Catalog != "" {
		catalogPath = opts.Catalog
	}
	c, err := catalog.Open(catalogPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}
	tr, err := translate.FromCatalog(c, translate.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build translator", err)
	}

	queries, err := selectQueries(scenario.Queries, names)
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}

	b := harness.NewBuilder(c)
	views := make([]PlanView, 0, len(queries))
	rejected := 0
	for _, q := range queries {
		m, params, err := b.Query(&q.Query)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("query %s", q.Name), err)
		}
		v := PlanView{Name: q.Name, Model: qmodel.FormatModel(m)}
		if opts.Tree {
			v.Tree = qmodel.Tree(m.Select.Selector)
		}

		plan, err := tr.Translate(m, params...)
		if err != nil {
			var te *session.TranslationError
			if !errors.As(err, &te) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("query %s", q.Name), err)
			}
			v.Error = &CLIError{Code: string(te.Code), Message: te.Message}
			if te.Expr != "" {
				v.Error.Details = te.Expr
			}
			rejected++
			views = append(views, v)
			continue
		}
		fillPlanView(&v, plan)
		views = append(views, v)
	}

	if out.IsJSON() {
		if rejected > 0 {
			if err := out.Failure("E_TRANSLATE", fmt.Sprintf("%d query(s) rejected", rejected), views); err != nil {
				return err
			}
		} else if err := out.Success(views); err != nil {
			return err
		}
	} else {
		for _, v := range views {
			printPlanView(cmd.OutOrStdout(), v)
		}
	}
	if rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d query(s) rejected", rejected))
	}
	return nil
}

// selectQueries returns the queries named by names, in file order, or all
// queries when names is empty.
func selectQueries(all []harness.QueryCase, names []string) ([]harness.QueryCase, error) {
	if len(names) == 0 {
		return all, nil
	}
	var out []harness.QueryCase
	for _, q := range all {
		if slices.Contains(names, q.Name) {
			out = append(out, q)
		}
	}
	for _, name := range names {
		if !slices.ContainsFunc(out, func(q harness.QueryCase) bool { return q.Name == name }) {
			return nil, fmt.Errorf("unknown query %q", name)
		}
	}
	return out, nil
}

func fillPlanView(v *PlanView, p *translate.Plan) {
	v.PlanID = p.ID
	v.HQL = p.HQL()
	v.Model = p.Model
	if p.Projection != nil {
		v.Projection = qmodel.Format(p.Projection)
	}
	v.Slots = p.Slots
	v.ResultKind = p.Result.String()
	v.Hints = p.Hints
	v.Cacheable = p.CanCachePlan
	v.UncacheableReasons = p.UncacheableReasons
	v.Untranslated = p.ContainsUntranslatedCalls
	v.Flattened = p.Flattened
	if len(p.Parameters) > 0 {
		v.Parameters = make(map[string]any, len(p.Parameters))
		for name, val := range p.Parameters {
			v.Parameters[name] = ir.ToGo(val)
		}
	}
}

func printPlanView(w io.Writer, v PlanView) {
	fmt.Fprintf(w, "%s\n", v.Name)
	if v.Error != nil {
		fmt.Fprintf(w, "  error:      %s: %s\n", v.Error.Code, v.Error.Message)
		fmt.Fprintf(w, "  model:      %s\n", v.Model)
	} else {
		fmt.Fprintf(w, "  plan:       %s\n", v.PlanID)
		fmt.Fprintf(w, "  hql:        %s\n", v.HQL)
		fmt.Fprintf(w, "  model:      %s\n", v.Model)
		if v.Projection != "" {
			fmt.Fprintf(w, "  projection: %s\n", v.Projection)
		}
		fmt.Fprintf(w, "  slots:      %d (%s)\n", v.Slots, v.ResultKind)
		for _, name := range slices.Sorted(maps.Keys(v.Parameters)) {
			fmt.Fprintf(w, "  param %s:   %v\n", name, v.Parameters[name])
		}
		if len(v.Hints) > 0 {
			fmt.Fprintf(w, "  hints:      %s\n", strings.Join(v.Hints, ", "))
		}
		if !v.Cacheable {
			fmt.Fprintf(w, "  uncacheable: %s\n", strings.Join(v.UncacheableReasons, "; "))
		}
	}
	if v.Tree != "" {
		for _, line := range strings.Split(strings.TrimRight(v.Tree, "\n"), "\n") {
			fmt.Fprintf(w, "  | %s\n", line)
		}
	}
}
