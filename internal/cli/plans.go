package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/querylift/internal/plancache"
)

// PlansOptions holds flags for the plans command.
type PlansOptions struct {
	*RootOptions
	DB string
}

// PlanEntry is the printable form of a logged plan.
type PlanEntry struct {
	Seq                int64             `json:"seq"`
	Key                string            `json:"key"`
	PlanID             string            `json:"plan_id"`
	HQL                string            `json:"hql"`
	Model              string            `json:"model"`
	Slots              int               `json:"slots"`
	ResultKind         string            `json:"result_kind"`
	Hints              []string          `json:"hints,omitempty"`
	Cacheable          bool              `json:"cacheable"`
	UncacheableReasons []string          `json:"uncacheable_reasons,omitempty"`
	Untranslated       bool              `json:"untranslated"`
	Parameters         map[string]string `json:"parameters,omitempty"`
	TranslatorVersion  string            `json:"translator_version"`
}

// NewPlansCommand creates the plans command.
func NewPlansCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlansOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plans --db <path> [key]",
		Short: "List plans recorded in a plan log",
		Long: `List the plans recorded in a SQLite plan log, oldest first, or show
the plan logged under one key. Parameter values are the first values the
plan was translated with, as canonical JSON.

Examples:
  querylift plans --db plans.db
  querylift plans --db plans.db 3f2a... --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlans(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite plan log (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runPlans(opts *PlansOptions, args []string, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.DB); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("plan log not found: %s", opts.DB))
	}
	store, err := plancache.Open(opts.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open plan log", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	var entries []plancache.Entry
	if len(args) == 1 {
		e, ok, err := store.Lookup(ctx, args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read plan log", err)
		}
		if !ok {
			return NewExitError(ExitFailure, fmt.Sprintf("no plan with key %s", args[0]))
		}
		entries = append(entries, e)
	} else {
		if entries, err = store.List(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to read plan log", err)
		}
	}

	views := make([]PlanEntry, len(entries))
	for i, e := range entries {
		views[i] = PlanEntry{
			Seq:                e.Seq,
			Key:                e.Key,
			PlanID:             e.PlanID,
			HQL:                e.HQL,
			Model:              e.Model,
			Slots:              e.Slots,
			ResultKind:         e.Result,
			Hints:              e.Hints,
			Cacheable:          e.Cacheable,
			UncacheableReasons: e.UncacheableReasons,
			Untranslated:       e.Untranslated,
			Parameters:         e.Parameters,
			TranslatorVersion:  e.TranslatorVersion,
		}
	}

	out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if out.IsJSON() {
		return out.Success(views)
	}
	w := cmd.OutOrStdout()
	if len(views) == 0 {
		fmt.Fprintln(w, "No plans recorded.")
		return nil
	}
	for _, v := range views {
		printPlanEntry(w, v)
	}
	return nil
}

func printPlanEntry(w io.Writer, v PlanEntry) {
	fmt.Fprintf(w, "[%d] %s %s\n", v.Seq, v.PlanID, v.Key)
	fmt.Fprintf(w, "  hql:   %s\n", v.HQL)
	fmt.Fprintf(w, "  model: %s\n", v.Model)
	fmt.Fprintf(w, "  slots: %d (%s)\n", v.Slots, v.ResultKind)
	if len(v.Hints) > 0 {
		fmt.Fprintf(w, "  hints: %s\n", strings.Join(v.Hints, ", "))
	}
	if !v.Cacheable {
		fmt.Fprintf(w, "  uncacheable: %s\n", strings.Join(v.UncacheableReasons, "; "))
	}
}
