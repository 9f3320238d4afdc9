// Package engine resolves template variable sources against a store.
package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aidanlsb/promptvars/internal/aggregate"
	"github.com/aidanlsb/promptvars/internal/filter"
	"github.com/aidanlsb/promptvars/internal/format"
	"github.com/aidanlsb/promptvars/internal/source"
)

// ErrAuthenticationMissing is returned when the resolution context carries
// no user id. It is the only failure not rendered into the output.
var ErrAuthenticationMissing = errors.New("authentication missing: resolution context has no user id")

// ErrorPrefix starts the rendered text of a persistence failure.
const ErrorPrefix = "Error: "

// OutcomeKind tags an Outcome.
type OutcomeKind int

const (
	// OutcomeNone means no value was produced, for example for an unknown
	// entity type.
	OutcomeNone OutcomeKind = iota
	OutcomeValue
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeNone:
		return "none"
	case OutcomeValue:
		return "value"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of evaluating one source. Err is either an
// *aggregate.Marker or a *PersistenceError when Kind is OutcomeError.
type Outcome struct {
	Kind  OutcomeKind
	Value string
	Err   error
}

// Text renders the outcome the way it appears in a prompt. ok is false for
// OutcomeNone.
func (o Outcome) Text() (text string, ok bool) {
	switch o.Kind {
	case OutcomeValue:
		return o.Value, true
	case OutcomeError:
		var marker *aggregate.Marker
		if errors.As(o.Err, &marker) {
			return marker.Text(), true
		}
		var pe *PersistenceError
		if errors.As(o.Err, &pe) {
			return ErrorPrefix + pe.Err.Error(), true
		}
		return ErrorPrefix + o.Err.Error(), true
	default:
		return "", false
	}
}

// Engine resolves variable sources. It holds no per-call state and is safe
// for concurrent use.
type Engine struct {
	store    Store
	logger   *zap.Logger
	now      func() time.Time
	compiler *filter.Compiler
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source for TODAY, NOW and date functions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine reading from store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{store: store, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.compiler = filter.NewCompiler(filter.WithClock(e.now), filter.WithLogger(e.logger))
	return e
}

// Evaluate resolves src for rc into a tagged outcome. It does not check
// authentication.
func (e *Engine) Evaluate(ctx context.Context, rc source.Context, src source.VariableSource) Outcome {
	src = src.Normalize()
	if !src.EntityType.Known() {
		e.logger.Debug("unknown entity type", zap.String("entity", string(src.EntityType)))
		return Outcome{Kind: OutcomeNone}
	}
	if src.EntityType == source.EntityDateFunction {
		return e.dateFunction(src)
	}

	p := e.compiler.Compile(src.EntityType, src.Filters, rc)
	in, err := e.execute(ctx, rc, src, p)
	if err != nil {
		return Outcome{Kind: OutcomeError, Err: err}
	}

	if src.Aggregation == source.AggregationNone {
		return Outcome{Kind: OutcomeValue, Value: format.Render(in.Values, src.OutputFormat())}
	}

	out, err := aggregate.Apply(src.Aggregation, in)
	if err != nil {
		return Outcome{Kind: OutcomeError, Err: err}
	}
	if out.IsList {
		return Outcome{Kind: OutcomeValue, Value: format.Render(out.List, src.OutputFormat())}
	}
	return Outcome{Kind: OutcomeValue, Value: out.Text}
}

// ResolveVariable resolves src to its prompt text. It returns nil for an
// unknown entity type, the marker text for aggregation failures and
// "Error: <message>" for store failures. Only a missing user id is returned
// as an error.
func (e *Engine) ResolveVariable(ctx context.Context, rc source.Context, src source.VariableSource) (*string, error) {
	if rc.UserID == "" {
		return nil, ErrAuthenticationMissing
	}

	outcome := e.Evaluate(ctx, rc, src)
	if outcome.Kind == OutcomeError {
		var pe *PersistenceError
		if errors.As(outcome.Err, &pe) {
			e.logger.Warn("variable resolution failed",
				zap.String("entity", string(pe.Entity)),
				zap.String("op", pe.Op),
				zap.Error(pe.Err))
		}
	}

	text, ok := outcome.Text()
	if !ok {
		return nil, nil
	}
	return &text, nil
}

// ResolveAll resolves every source concurrently, at most limit at a time
// (unbounded when limit <= 0). Per-variable failures are rendered into the
// results; the returned error is ErrAuthenticationMissing or the context's
// error when ctx ends first.
func (e *Engine) ResolveAll(ctx context.Context, rc source.Context, sources map[string]source.VariableSource, limit int) (map[string]*string, error) {
	if rc.UserID == "" {
		return nil, ErrAuthenticationMissing
	}

	keys := make([]string, 0, len(sources))
	for k := range sources {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]*string, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := e.ResolveVariable(gctx, rc, sources[key])
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string]*string, len(keys))
	for i, key := range keys {
		out[key] = results[i]
	}
	return out, nil
}
