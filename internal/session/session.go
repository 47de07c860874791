package session

import (
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/querylift/internal/catalog"
	"github.com/roach88/querylift/internal/ir"
	"github.com/roach88/querylift/internal/qmodel"
	"github.com/roach88/querylift/internal/registry"
)

// Alias is the client-side reconstruction registered for the item of a
// subquery translated on the server. Columns names the projection aliases
// of the subquery, one per row slot of Body.
type Alias struct {
	Body    qmodel.Expr
	Columns []string
}

// Session is the classification context of one translation: the
// constant-to-parameter table, the subquery alias and select tables, the
// plan cache-ability flag and the read-only registry and resolver lookups.
//
// A Session is owned by one translation and is not safe for concurrent
// use. Nested subquery translations share their parent's Session.
type Session struct {
	id       string
	registry *registry.Registry
	resolver catalog.Resolver
	logger   *slog.Logger

	params      map[qmodel.NodeID]string
	paramValues map[string]ir.IRValue

	aliases    map[string]Alias
	subSelects map[qmodel.NodeID]qmodel.Expr

	canCachePlan bool
	uncacheable  []string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithID sets the session id. Default: a fresh UUIDv7.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// WithParameters promotes the given constants to bind parameters before
// translation starts, in order. These are the values captured from the
// caller's variables; the plan must not embed them.
func WithParameters(consts ...*qmodel.Constant) Option {
	return func(s *Session) {
		for _, c := range consts {
			s.AddParameter(c)
		}
	}
}

// New creates a Session over an immutable registry and resolver. A nil
// registry has no functions; a nil resolver maps nothing.
func New(reg *registry.Registry, resolver catalog.Resolver, opts ...Option) *Session {
	if resolver == nil {
		resolver = noResolver{}
	}
	s := &Session{
		registry:     reg,
		resolver:     resolver,
		logger:       slog.Default(),
		params:       make(map[qmodel.NodeID]string),
		paramValues:  make(map[string]ir.IRValue),
		aliases:      make(map[string]Alias),
		subSelects:   make(map[qmodel.NodeID]qmodel.Expr),
		canCachePlan: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = UUIDv7Generator{}.Generate()
	}
	s.logger = s.logger.With("session_id", s.id)
	return s
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Logger returns the session logger, tagged with the session id.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Registry returns the function registry. It may be nil.
func (s *Session) Registry() *registry.Registry { return s.registry }

// Resolve reports whether m maps to a persistent property.
func (s *Session) Resolve(m *qmodel.Member) (catalog.Resolution, bool) {
	return s.resolver.Resolve(m)
}

// AddParameter promotes c to a bind parameter and returns its name. A
// constant already promoted keeps its name.
func (s *Session) AddParameter(c *qmodel.Constant) string {
	if name, ok := s.params[c.ID()]; ok {
		return name
	}
	name := fmt.Sprintf("p%d", len(s.params))
	s.params[c.ID()] = name
	s.paramValues[name] = c.Value
	return name
}

// ParameterFor returns the bind parameter name of the constant with id.
func (s *Session) ParameterFor(id qmodel.NodeID) (string, bool) {
	name, ok := s.params[id]
	return name, ok
}

// ParameterIDs returns a copy of the constant-to-parameter table.
func (s *Session) ParameterIDs() map[qmodel.NodeID]string {
	out := make(map[qmodel.NodeID]string, len(s.params))
	for id, name := range s.params {
		out[id] = name
	}
	return out
}

// Parameters returns the bind values by parameter name.
func (s *Session) Parameters() map[string]ir.IRValue {
	out := make(map[string]ir.IRValue, len(s.paramValues))
	for name, v := range s.paramValues {
		out[name] = v
	}
	return out
}

// RegisterAlias records the reconstruction of a server-translated
// subquery under its item name. Later references to the item are
// replaced by body rather than translated again.
func (s *Session) RegisterAlias(name string, body qmodel.Expr, columns []string) {
	s.aliases[name] = Alias{Body: body, Columns: append([]string(nil), columns...)}
	s.logger.Debug("subquery alias registered",
		"alias", name,
		"columns", len(columns),
	)
}

// AliasReplacement returns the reconstruction registered under name.
func (s *Session) AliasReplacement(name string) (qmodel.Expr, bool) {
	a, ok := s.aliases[name]
	if !ok {
		return nil, false
	}
	return a.Body, true
}

// AliasColumns returns the projection aliases registered under name.
func (s *Session) AliasColumns(name string) []string {
	return append([]string(nil), s.aliases[name].Columns...)
}

// HasAlias reports whether a reconstruction is registered under name.
func (s *Session) HasAlias(name string) bool {
	_, ok := s.aliases[name]
	return ok
}

// Aliases lists the registered alias names, sorted.
func (s *Session) Aliases() []string {
	names := make([]string, 0, len(s.aliases))
	for n := range s.aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// SetSubQuerySelect records the reconstruction body produced for the
// selector with id.
func (s *Session) SetSubQuerySelect(id qmodel.NodeID, body qmodel.Expr) {
	s.subSelects[id] = body
}

// SubQuerySelect returns the reconstruction body recorded for a selector.
func (s *Session) SubQuerySelect(id qmodel.NodeID) (qmodel.Expr, bool) {
	body, ok := s.subSelects[id]
	return body, ok
}

// CanCachePlan reports whether the translated plan may be reused for other
// parameter values.
func (s *Session) CanCachePlan() bool { return s.canCachePlan }

// MarkUncacheable clears the cache-ability flag. The flag never resets.
func (s *Session) MarkUncacheable(reason string) {
	if s.canCachePlan {
		s.logger.Info("plan marked uncacheable", "reason", reason)
	}
	s.canCachePlan = false
	s.uncacheable = append(s.uncacheable, reason)
}

// UncacheableReasons lists why the plan cannot be cached, in order.
func (s *Session) UncacheableReasons() []string {
	return append([]string(nil), s.uncacheable...)
}

type noResolver struct{}

func (noResolver) Resolve(*qmodel.Member) (catalog.Resolution, bool) {
	return catalog.Resolution{}, false
}
