package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/fuzzy"
	"github.com/haivivi/tagmatch/pkg/normalize"
)

// Pipeline matches queries against one catalog. It holds no mutable state
// and is safe for concurrent use.
type Pipeline struct {
	cat    *catalog.Catalog
	cfg    Config
	fuzzy  FuzzySearcher
	vector VectorSearcher
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a [Pipeline].
type Option func(*Pipeline)

// WithFuzzy sets the fuzzy stage. By default a [fuzzy.Matcher] is built
// over the catalog.
func WithFuzzy(f FuzzySearcher) Option {
	return func(p *Pipeline) { p.fuzzy = f }
}

// WithVector sets the vector stage. Without it the vector stage is
// skipped.
func WithVector(v VectorSearcher) Option {
	return func(p *Pipeline) { p.vector = v }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithTracerProvider sets the tracer provider. Default: the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pipeline) { p.tracer = tp.Tracer(instrumentation) }
}

// New creates a pipeline over cat. Zero fields of cfg take their
// [DefaultConfig] values, except those where zero is a setting of its own:
// MaxResults (zero keeps all), VectorMinScore (zero keeps every vector hit)
// and the DisableFuzzy and DisableVector switches.
func New(cat *catalog.Catalog, cfg Config, opts ...Option) (*Pipeline, error) {
	if cat == nil {
		return nil, errors.New("match: nil catalog")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cat: cat, cfg: cfg}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.tracer == nil {
		p.tracer = defaultTracer
	}
	if p.fuzzy == nil && !cfg.DisableFuzzy {
		p.fuzzy = fuzzy.NewMatcher(cat)
	}
	if cfg.DisableFuzzy {
		p.fuzzy = nil
	}
	if cfg.DisableVector {
		p.vector = nil
	}
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Catalog returns the catalog the pipeline matches against.
func (p *Pipeline) Catalog() *catalog.Catalog { return p.cat }

// MatchSingle returns the ranked candidates for one query. An empty result
// with a nil error means nothing matched.
//
// The error is ErrInvalidInput for unusable input, or ctx.Err() when the
// caller cancels. Stage failures are logged and never returned.
func (p *Pipeline) MatchSingle(ctx context.Context, query string) ([]Candidate, error) {
	ctx, span := p.tracer.Start(ctx, "match.MatchSingle")
	defer span.End()

	q, err := prepare(query)
	if err != nil {
		queriesTotal.WithLabelValues("invalid").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}
	span.SetAttributes(attribute.String("query", q))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if e, ok := p.cat.LookupExact(q); ok {
		return p.done(span, []Candidate{shortCircuit(query, e, Exact, "")}), nil
	}
	if name, ok := p.cat.Aliases().LookupAlias(q); ok {
		if e, ok := p.cat.LookupExact(name); ok {
			return p.done(span, []Candidate{shortCircuit(query, e, Alias, q)}), nil
		}
	}

	var (
		fz []fuzzy.Match
		vh []VectorHit
		g  errgroup.Group
	)
	g.Go(func() error {
		fz = p.runFuzzy(ctx, q)
		return nil
	})
	g.Go(func() error {
		vh = p.runVector(ctx, q)
		return nil
	})
	g.Wait()
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return nil, err
	}
	return p.done(span, p.rank(query, fz, vh)), nil
}

// prepare validates and normalizes a raw query.
func prepare(query string) (string, error) {
	if !utf8.ValidString(query) {
		return "", fmt.Errorf("%w: query is not valid UTF-8", ErrInvalidInput)
	}
	q := normalize.Normalize(query)
	if q == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidInput, query)
	}
	return q, nil
}

func shortCircuit(query string, e catalog.Entry, m Method, via string) Candidate {
	return Candidate{
		Query:      query,
		Name:       e.Name,
		Method:     m,
		RawScore:   1,
		FusedScore: 1,
		Category:   e.Category,
		Popularity: e.Popularity,
		Via:        via,
	}
}

func (p *Pipeline) done(span trace.Span, out []Candidate) []Candidate {
	method := "none"
	if len(out) > 0 {
		method = out[0].Method.String()
	}
	queriesTotal.WithLabelValues(method).Inc()
	span.SetAttributes(attribute.String("method", method), attribute.Int("candidates", len(out)))
	return out
}

func (p *Pipeline) runFuzzy(ctx context.Context, q string) []fuzzy.Match {
	if p.fuzzy == nil {
		return nil
	}
	ctx, span := p.tracer.Start(ctx, "match.fuzzy")
	defer span.End()
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.fuzzy.Match(sctx, q, fuzzy.Options{
		Threshold: p.cfg.FuzzyThreshold,
		Limit:     p.cfg.FuzzyLimit,
		Workers:   p.cfg.FuzzyWorkers,
	})
	stageDuration.WithLabelValues("fuzzy").Observe(time.Since(start).Seconds())
	if err != nil {
		p.stageFailed(ctx, span, "fuzzy", q, err)
	}
	span.SetAttributes(attribute.Int("hits", len(res)))
	return res
}

func (p *Pipeline) runVector(ctx context.Context, q string) []VectorHit {
	if p.vector == nil {
		return nil
	}
	ctx, span := p.tracer.Start(ctx, "match.vector")
	defer span.End()
	sctx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
	defer cancel()

	start := time.Now()
	res, err := p.vector.SearchText(sctx, q, p.cfg.VectorK, p.cfg.VectorMinScore)
	stageDuration.WithLabelValues("vector").Observe(time.Since(start).Seconds())
	if err != nil {
		p.stageFailed(ctx, span, "vector", q, err)
	}
	span.SetAttributes(attribute.Int("hits", len(res)))
	return res
}

// stageFailed records a stage error. Errors caused by the caller's own
// cancellation are not the stage's fault and are not counted.
func (p *Pipeline) stageFailed(ctx context.Context, span trace.Span, stage, q string, err error) {
	if ctx.Err() != nil {
		return
	}
	switch {
	case errors.Is(err, ErrIndexUnavailable):
		stageFailures.WithLabelValues(stage, "unavailable").Inc()
		p.logger.Debug("match: stage unavailable", "stage", stage, "error", err)
		return
	case errors.Is(err, context.DeadlineExceeded):
		stageFailures.WithLabelValues(stage, "timeout").Inc()
		p.logger.Warn("match: stage timed out", "stage", stage, "query", q, "timeout", p.cfg.StageTimeout)
	default:
		stageFailures.WithLabelValues(stage, "error").Inc()
		p.logger.Warn("match: stage failed", "stage", stage, "query", q, "error", err)
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, strings.TrimPrefix(err.Error(), "match: "))
}
