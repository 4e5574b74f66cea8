package match

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one query of a batch.
type Result struct {
	Query      string      `json:"query" yaml:"query"`
	Candidates []Candidate `json:"candidates" yaml:"candidates"`
	Err        error       `json:"-" yaml:"-"`
}

// Resolve matches every query and returns one result per query, in input
// order. Identical queries are matched once; each result still gets its
// own copy of the candidates. Per-query errors are reported in
// Result.Err and never stop the batch.
func (p *Pipeline) Resolve(ctx context.Context, queries []string) []Result {
	results := make([]Result, len(queries))
	first := make(map[string]int, len(queries))
	var g errgroup.Group
	g.SetLimit(p.cfg.BatchConcurrency)
	for i, q := range queries {
		results[i].Query = q
		if _, dup := first[q]; dup {
			continue
		}
		first[q] = i
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			results[i].Candidates, results[i].Err = p.MatchSingle(ctx, q)
			return nil
		})
	}
	g.Wait()

	for i, q := range queries {
		if j := first[q]; j != i {
			results[i].Candidates = slices.Clone(results[j].Candidates)
			results[i].Err = results[j].Err
		}
	}
	return results
}

// MatchBatch matches queries concurrently and returns candidates keyed by
// query. Queries that fail are left out of the map; their errors are
// joined into the returned error. If ctx is cancelled, MatchBatch returns
// only ctx.Err().
func (p *Pipeline) MatchBatch(ctx context.Context, queries []string) (map[string][]Candidate, error) {
	id := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "match.MatchBatch", trace.WithAttributes(
		attribute.String("batch_id", id),
		attribute.Int("queries", len(queries)),
	))
	defer span.End()

	results := p.Resolve(ctx, queries)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]Candidate, len(results))
	var errs []error
	failed := make(map[string]bool)
	matched := 0
	for _, r := range results {
		if r.Err != nil {
			if !failed[r.Query] {
				failed[r.Query] = true
				errs = append(errs, fmt.Errorf("match: query %q: %w", r.Query, r.Err))
			}
			continue
		}
		if _, seen := out[r.Query]; !seen && len(r.Candidates) > 0 {
			matched++
		}
		out[r.Query] = r.Candidates
	}
	p.logger.Debug("match: batch done",
		"batch_id", id, "queries", len(queries), "matched", matched, "failed", len(failed))
	return out, errors.Join(errs...)
}
