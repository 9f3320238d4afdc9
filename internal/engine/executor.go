package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aidanlsb/promptvars/internal/aggregate"
	"github.com/aidanlsb/promptvars/internal/dates"
	"github.com/aidanlsb/promptvars/internal/entity"
	"github.com/aidanlsb/promptvars/internal/filter"
	"github.com/aidanlsb/promptvars/internal/richtext"
	"github.com/aidanlsb/promptvars/internal/source"
)

// Store is the read-only persistence collaborator.
type Store interface {
	Count(ctx context.Context, p filter.Predicate) (int64, error)
	Sum(ctx context.Context, p filter.Predicate, field string) (*float64, error)
	FindMany(ctx context.Context, p filter.Predicate, proj filter.Projection, order filter.Order, limit int) ([]source.Record, error)
}

// PersistenceError is a store failure during one resolution.
type PersistenceError struct {
	Entity source.EntityType
	Op     string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// execute runs the store calls a source needs and returns the aggregation
// input. For plain projections only Values is populated.
func (e *Engine) execute(ctx context.Context, rc source.Context, src source.VariableSource, p filter.Predicate) (aggregate.Input, error) {
	in := aggregate.Input{Field: src.AggregationField}

	// USER resolves to the caller only; filters never narrow or widen it.
	if src.EntityType == source.EntityUser {
		p = filter.NewPredicate(source.EntityUser, filter.Scope{Column: "id", Value: rc.UserID})
	}

	switch src.Aggregation {
	case source.AggregationCount:
		n, err := e.store.Count(ctx, p)
		if err != nil {
			return in, &PersistenceError{Entity: src.EntityType, Op: "count", Err: err}
		}
		in.Count = n
		return in, nil

	case source.AggregationSum:
		if src.AggregationField == "" {
			return in, nil
		}
		if !entity.IsAllowed(src.EntityType, src.AggregationField) {
			e.logger.Debug("sum over disallowed field",
				zap.String("entity", string(src.EntityType)),
				zap.String("field", src.AggregationField))
			return in, nil
		}
		sum, err := e.store.Sum(ctx, p, src.AggregationField)
		if err != nil {
			return in, &PersistenceError{Entity: src.EntityType, Op: "sum", Err: err}
		}
		in.Sum = sum
		return in, nil

	case source.AggregationAverage:
		if src.AggregationField == "" {
			return in, nil
		}
	}

	values, err := e.window(ctx, src, p)
	if err != nil {
		return in, err
	}
	in.Values = values
	return in, nil
}

// window fetches the recency-ordered projected values for src, bounded by
// the entity's window limit.
func (e *Engine) window(ctx context.Context, src source.VariableSource, p filter.Predicate) ([]*string, error) {
	ent, ok := entity.Get(src.EntityType)
	if !ok {
		return nil, nil
	}

	field := src.TargetField()
	if field == "" {
		field = ent.DisplayField
	}
	leaf, rel, ok := entity.Lookup(src.EntityType, field)
	if !ok {
		e.logger.Debug("projection on disallowed field",
			zap.String("entity", string(src.EntityType)),
			zap.String("field", field))
		return nil, nil
	}

	limit := ent.WindowLimit
	if limit <= 0 {
		limit = entity.DefaultWindowLimit
	}
	records, err := e.store.FindMany(ctx, p, filter.Projection{Field: field}, filter.OrderRecentFirst, limit)
	if err != nil {
		return nil, &PersistenceError{Entity: src.EntityType, Op: "find", Err: err}
	}

	values := make([]*string, len(records))
	for i, rec := range records {
		values[i] = stringValue(extract(rec, field, rel), leaf)
	}
	return values, nil
}

// extract reads field from rec, descending into the related sub-record for
// relation paths.
func extract(rec source.Record, field string, rel *entity.Field) any {
	if rel == nil {
		return rec[field]
	}
	related, ok := rec[rel.Name].(map[string]any)
	if !ok {
		return nil
	}
	return related[field[len(rel.Name)+1:]]
}

func stringValue(v any, leaf entity.Field) *string {
	if v == nil {
		return nil
	}
	var s string
	switch leaf.Kind {
	case entity.KindRichText:
		s = richtext.Flatten(v)
	case entity.KindBool:
		if f, ok := v.(float64); ok {
			s = fmt.Sprint(f != 0)
			break
		}
		s = filter.Stringify(v)
	default:
		s = filter.Stringify(v)
	}
	return &s
}

func (e *Engine) dateFunction(src source.VariableSource) Outcome {
	v, ok := dates.EvalFunction(src.Field, e.now())
	if !ok {
		e.logger.Debug("unknown date function", zap.String("function", src.Field))
		return Outcome{Kind: OutcomeNone}
	}
	return Outcome{Kind: OutcomeValue, Value: v}
}
