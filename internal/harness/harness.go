package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/querylift/internal/catalog"
	"github.com/roach88/querylift/internal/flatten"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/plancache"
	"github.com/roach88/querylift/internal/session"
	"github.com/roach88/querylift/internal/testutil"
	"github.com/roach88/querylift/internal/translate"
)

// Harness runs the queries of one scenario through a translator with
// deterministic plan ids, a plan cache and, optionally, a plan log.
type Harness struct {
	translator *translate.Translator
	builder    *Builder
	cache      *plancache.Cache
	store      *plancache.Store
	logger     *slog.Logger
}

type options struct {
	logger *slog.Logger
	store  *plancache.Store
}

// Option configures a run.
type Option func(*options)

// WithLogger sets the logger of the run. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStore records every translated plan in s.
func WithStore(s *plancache.Store) Option {
	return func(o *options) { o.store = s }
}

// Run translates every query of scenario, checks its expectations and
// returns the result. A non-nil error means the scenario could not be run
// at all (catalog or DSL errors); failed expectations are reported in the
// result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&o)
	}

	c, err := catalog.Open(scenario.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = scenario.Name
	}
	tr, err := translate.FromCatalog(c,
		translate.WithLogger(o.logger),
		translate.WithIDGenerator(testutil.NewSequentialIDs(prefix)),
		translate.WithFlattener(c.Flattener(flatten.WithLogger(o.logger))),
	)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		translator: tr,
		builder:    NewBuilder(c),
		cache:      plancache.NewCache(plancache.WithLogger(o.logger)),
		store:      o.store,
		logger:     o.logger.With("scenario", scenario.Name),
	}

	result := NewResult()
	keys := make(map[string]string)
	for _, q := range scenario.Queries {
		qr, err := h.runQuery(context.Background(), q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.Name, err)
		}
		for _, msg := range checkExpectation(q, qr, keys) {
			result.AddError(fmt.Sprintf("%s: %s", q.Name, msg))
		}
		keys[q.Name] = qr.Key
		result.Queries = append(result.Queries, qr)
	}

	h.logger.Info("scenario complete",
		"queries", len(result.Queries),
		"pass", result.Pass,
	)
	return result, nil
}

func (h *Harness) runQuery(ctx context.Context, q QueryCase) (QueryResult, error) {
	qr := QueryResult{Name: q.Name}

	m, params, err := h.builder.Query(&q.Query)
	if err != nil {
		return qr, err
	}

	plan, err := h.translator.Translate(m, params...)
	if err != nil {
		var te *session.TranslationError
		if !errors.As(err, &te) {
			return qr, err
		}
		qr.ErrorCode = string(te.Code)
		qr.ErrorText = te.Error()
		h.logger.Debug("query rejected", "query", q.Name, "code", qr.ErrorCode)
		return qr, nil
	}

	qr.PlanID = plan.ID
	qr.Key = plan.Key
	qr.HQL = plan.HQL()
	qr.Model = plan.Model
	qr.Slots = plan.Slots
	qr.ResultKind = plan.Result.String()
	qr.Hints = plan.Hints
	qr.Cacheable = plan.CanCachePlan
	qr.Untranslated = plan.ContainsUntranslatedCalls
	qr.Flattened = plan.Flattened
	if len(plan.Parameters) > 0 {
		qr.Parameters = make(map[string]any, len(plan.Parameters))
		for name, v := range plan.Parameters {
			qr.Parameters[name] = ir.ToGo(v)
		}
	}

	_, qr.CacheHit = h.cache.Get(plan.Key)
	h.cache.Put(plan)
	if h.store != nil {
		if _, err := h.store.Record(ctx, plan); err != nil {
			return qr, err
		}
	}

	if len(q.Rows) > 0 {
		out, err := plan.Execute(normalizeRows(q.Rows))
		if err != nil {
			qr.OutputError = err.Error()
		} else {
			qr.Output = normalize(out)
		}
	}
	return qr, nil
}
