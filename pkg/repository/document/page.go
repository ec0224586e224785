package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// RawPage is one window of matching documents plus the total number of matches.
// Docs is nil when the window is empty.
type RawPage struct {
	Offset int
	Total  int64
	Docs   []bson.M
}

// UnwindLevel flattens one nested array. IndexField receives the element's array position.
type UnwindLevel struct {
	Path       string
	IndexField string
}

// FlattenSpec lists the arrays to unwind, outermost first.
type FlattenSpec []UnwindLevel

// Pager runs count + windowed reads against an Executor.
type Pager struct {
	exec Executor
}

// NewPager creates a Pager.
func NewPager(exec Executor) *Pager {
	return &Pager{exec: exec}
}

// Page counts the root documents matching filter and returns the requested window.
func (p *Pager) Page(ctx context.Context, collection string, filter Filter, sort SortSpec, offset, limit int) (*RawPage, error) {
	total, err := p.exec.CountDocuments(ctx, collection, filter)
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", collection, err)
	}
	page := &RawPage{Offset: offset, Total: total}
	if emptyWindow(total, offset, limit) {
		return page, nil
	}

	docs, err := p.exec.Find(ctx, collection, filter, FindOptions{
		Sort:  sort,
		Skip:  int64(max(offset, 0)),
		Limit: int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	if len(docs) > 0 {
		page.Docs = docs
	}
	return page, nil
}

// Flattened unwinds the nested arrays named by spec and pages over the resulting elements.
// The filter applies after unwinding, so it may address nested fields by dotted path.
// Total counts matching elements, not root documents.
func (p *Pager) Flattened(ctx context.Context, collection string, spec FlattenSpec, filter Filter, sort SortSpec, offset, limit int) (*RawPage, error) {
	prefix := flattenStages(spec, filter)

	counted, err := p.exec.Aggregate(ctx, collection, append(clonePipeline(prefix), bson.M{"$count": "count"}))
	if err != nil {
		return nil, fmt.Errorf("count flattened %s: %w", collection, err)
	}
	page := &RawPage{Offset: offset, Total: countOf(counted)}
	if emptyWindow(page.Total, offset, limit) {
		return page, nil
	}

	pipeline := clonePipeline(prefix)
	if len(sort) > 0 {
		pipeline = append(pipeline, bson.M{"$sort": sort.Document()})
	}
	pipeline = append(pipeline,
		bson.M{"$skip": int64(max(offset, 0))},
		bson.M{"$limit": int64(limit)},
	)
	docs, err := p.exec.Aggregate(ctx, collection, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	if len(docs) > 0 {
		page.Docs = docs
	}
	return page, nil
}

func flattenStages(spec FlattenSpec, filter Filter) []bson.M {
	stages := make([]bson.M, 0, len(spec)+1)
	for _, level := range spec {
		stages = append(stages, bson.M{"$unwind": bson.M{
			"path":              "$" + level.Path,
			"includeArrayIndex": level.IndexField,
		}})
	}
	if len(filter) > 0 {
		stages = append(stages, bson.M{"$match": bson.M(filter)})
	}
	return stages
}

func clonePipeline(stages []bson.M) []bson.M {
	out := make([]bson.M, len(stages), len(stages)+3)
	copy(out, stages)
	return out
}

func countOf(docs []bson.M) int64 {
	if len(docs) == 0 {
		return 0
	}
	switch n := docs[0]["count"].(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func emptyWindow(total int64, offset, limit int) bool {
	return total == 0 || limit <= 0 || int64(offset) >= total
}
