package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-query-gateway/internal/cache"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/domain"
	"github.com/tjfontaine/polyglot-query-gateway/internal/core/ports"
	"github.com/tjfontaine/polyglot-query-gateway/internal/metrics"
	"github.com/tjfontaine/polyglot-query-gateway/internal/optimizer"
	"github.com/tjfontaine/polyglot-query-gateway/internal/serializer"
	"github.com/tjfontaine/polyglot-query-gateway/internal/tokens"
)

const (
	DefaultGenerationTimeout = 30 * time.Second
	DefaultMaxContextTokens  = 3000
	DefaultHistoryTurns      = 6
)

const tracerName = "github.com/tjfontaine/polyglot-query-gateway/internal/pipeline"

// Classifier maps query text to an IntentResult.
type Classifier interface {
	Classify(text string) *domain.IntentResult
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Classifier Classifier
	Cache      *cache.DomainCache
	Fetcher    ports.Fetcher
	Optimizer  *optimizer.Optimizer
	Generator  ports.Generator
	History    ports.ConversationStore
	Metrics    *metrics.Recorder
	Tokens     *tokens.Registry
}

// Orchestrator runs the query state machine.
type Orchestrator struct {
	deps Deps

	model             string
	maxContextTokens  int
	generationTimeout time.Duration
	historyTurns      int

	now    ports.Clock
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithModel names the model used for token counting.
func WithModel(model string) Option {
	return func(o *Orchestrator) {
		o.model = model
	}
}

// WithMaxContextTokens sets the token budget for serialized context. Zero
// disables the budget.
func WithMaxContextTokens(n int) Option {
	return func(o *Orchestrator) {
		o.maxContextTokens = n
	}
}

// WithGenerationTimeout bounds each generation call.
func WithGenerationTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.generationTimeout = d
		}
	}
}

// WithHistoryTurns sets how many prior turns are quoted in the prompt.
func WithHistoryTurns(n int) Option {
	return func(o *Orchestrator) {
		o.historyTurns = n
	}
}

// WithClock injects the clock used for timing and turn timestamps.
func WithClock(now ports.Clock) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// New creates an orchestrator. Missing optional collaborators get working
// defaults; Classifier, Fetcher and Generator are required.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Classifier == nil || deps.Fetcher == nil || deps.Generator == nil {
		return nil, errors.New("pipeline: classifier, fetcher and generator are required")
	}
	if deps.Cache == nil {
		deps.Cache = cache.New()
	}
	if deps.Optimizer == nil {
		deps.Optimizer = optimizer.New(optimizer.DefaultLimits())
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Tokens == nil {
		deps.Tokens = tokens.NewRegistry()
	}

	o := &Orchestrator{
		deps:              deps,
		maxContextTokens:  DefaultMaxContextTokens,
		generationTimeout: DefaultGenerationTimeout,
		historyTurns:      DefaultHistoryTurns,
		now:               time.Now,
		logger:            slog.Default(),
		tracer:            otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// run carries the request-scoped values between states.
type run struct {
	req    domain.QueryRequest
	state  State
	start  time.Time
	span   trace.Span
	result *domain.IntentResult

	fetched     []domain.DomainTag
	data        domain.DomainData
	optimized   *domain.OptimizedContext
	contextText string
	sources     []domain.Source
	prompt      string
	generation  *domain.Generation
}

func (r *run) advance(to State) {
	r.state = to
	r.span.AddEvent("state", trace.WithAttributes(attribute.String("query.state", string(to))))
}

// Process answers req. It never returns an error: any failure produces the
// fallback response.
func (o *Orchestrator) Process(ctx context.Context, req domain.QueryRequest) *domain.QueryResponse {
	ctx, span := o.tracer.Start(ctx, "query.process")
	defer span.End()

	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	r := &run{req: req, start: o.now(), span: span}
	r.advance(StateReceived)

	if err := o.execute(ctx, r); err != nil {
		return o.fail(ctx, r, err)
	}

	resp := o.respond(r)
	r.advance(StateCompleted)
	o.record(r, resp.DomainsUsed, true)
	span.SetAttributes(
		attribute.String("query.intent", string(resp.Intent)),
		attribute.Int("query.tokens_used", resp.TokensUsed),
	)
	span.SetStatus(codes.Ok, "")
	return resp
}

func (o *Orchestrator) execute(ctx context.Context, r *run) error {
	result, err := o.classify(r.req.Text)
	if err != nil {
		return err
	}
	r.result = result
	r.advance(StateClassified)

	r.fetched = resolveDomains(r.req.RequestedDomains, result.Domains)
	r.data = o.deps.Cache.GetAll(ctx, r.fetched, o.deps.Fetcher)
	r.advance(StateContextFetched)

	o.fitContext(r)

	history := o.history(ctx, r.req)
	r.prompt = BuildPrompt(r.req.Text, result, r.contextText, history)

	gen, err := o.generate(ctx, r.prompt)
	if err != nil {
		return err
	}
	r.generation = gen
	r.advance(StateGenerated)

	o.persist(ctx, r)
	r.advance(StatePersisted)
	return nil
}

// classify turns a classifier panic into a classification error.
func (o *Orchestrator) classify(text string) (result *domain.IntentResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = domain.NewQueryError(domain.ErrorKindClassification, "classifier panicked", fmt.Errorf("%v", p))
		}
	}()
	result = o.deps.Classifier.Classify(text)
	if result == nil {
		return nil, domain.NewQueryError(domain.ErrorKindClassification, "classifier returned no result", nil)
	}
	return result, nil
}

// fitContext optimizes and serializes, halving the limits while the
// serialized context exceeds the token budget.
func (o *Orchestrator) fitContext(r *run) {
	limits := o.deps.Optimizer.Limits()
	for {
		r.optimized = o.deps.Optimizer.OptimizeWithin(r.data, r.result, limits)
		r.advance(StateOptimized)
		r.contextText, r.sources = serializer.Serialize(r.optimized)
		r.advance(StateSerialized)

		if o.maxContextTokens <= 0 {
			return
		}
		used := o.deps.Tokens.Count(o.model, r.contextText)
		if used <= o.maxContextTokens {
			return
		}
		next := limits.Halve()
		if next == limits {
			o.logger.Warn("context exceeds token budget at minimum limits",
				slog.Int("tokens", used),
				slog.Int("budget", o.maxContextTokens),
			)
			return
		}
		o.logger.Debug("context over token budget, shrinking",
			slog.Int("tokens", used),
			slog.Int("budget", o.maxContextTokens),
			slog.Int("max_total", next.MaxTotal),
			slog.Int("max_per_domain", next.MaxPerDomain),
		)
		limits = next
	}
}

func (o *Orchestrator) history(ctx context.Context, req domain.QueryRequest) []*domain.ConversationTurn {
	if o.deps.History == nil || o.historyTurns <= 0 {
		return nil
	}
	turns := o.deps.History.Recent(ctx, req.UserID, o.historyTurns*4)
	var out []*domain.ConversationTurn
	for _, t := range turns {
		if t.ConversationID == req.ConversationID {
			out = append(out, t)
		}
	}
	if len(out) > o.historyTurns {
		out = out[len(out)-o.historyTurns:]
	}
	return out
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (*domain.Generation, error) {
	genCtx, cancel := context.WithTimeout(ctx, o.generationTimeout)
	defer cancel()

	gen, err := o.deps.Generator.Generate(genCtx, prompt)
	if err == nil && gen == nil {
		err = errors.New("generator returned no result")
	}
	if err != nil {
		if errors.Is(err, domain.ErrGenerationTimeout) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return nil, domain.ErrGenerationDeadline(err)
		}
		var qe *domain.QueryError
		if errors.As(err, &qe) {
			return nil, err
		}
		return nil, domain.ErrGeneration("generation failed", err)
	}
	return gen, nil
}

func (o *Orchestrator) persist(ctx context.Context, r *run) {
	if o.deps.History == nil {
		return
	}
	asked := o.now()
	answered := o.now()
	if !answered.After(asked) {
		answered = asked.Add(time.Millisecond)
	}

	o.deps.History.Append(ctx, &domain.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: r.req.ConversationID,
		UserID:         r.req.UserID,
		Role:           domain.RoleUser,
		Message:        r.req.Text,
		Intent:         r.result.PrimaryIntent,
		DomainsUsed:    []domain.DomainTag{},
		Sources:        []domain.Source{},
		Confidence:     r.result.Confidence,
		CreatedAt:      asked,
	})
	o.deps.History.Append(ctx, &domain.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: r.req.ConversationID,
		UserID:         r.req.UserID,
		Role:           domain.RoleAssistant,
		Message:        r.req.Text,
		Answer:         r.generation.Text,
		Intent:         r.result.PrimaryIntent,
		DomainsUsed:    domainsUsed(r.optimized),
		Sources:        r.sources,
		Confidence:     r.result.Confidence,
		TokensUsed:     o.tokensUsed(r),
		ResponseTimeMs: o.now().Sub(r.start).Milliseconds(),
		CreatedAt:      answered,
	})
}

func (o *Orchestrator) tokensUsed(r *run) int {
	if r.generation.ApproxTokensUsed > 0 {
		return r.generation.ApproxTokensUsed
	}
	return o.deps.Tokens.Count(o.model, r.prompt+"\n"+r.generation.Text)
}

func (o *Orchestrator) respond(r *run) *domain.QueryResponse {
	return &domain.QueryResponse{
		Answer:           r.generation.Text,
		Sources:          r.sources,
		DomainsUsed:      domainsUsed(r.optimized),
		Confidence:       r.result.Confidence,
		SuggestedQueries: SuggestionsFor(r.result.PrimaryIntent),
		TokensUsed:       o.tokensUsed(r),
		ConversationID:   r.req.ConversationID,
		Intent:           r.result.PrimaryIntent,
	}
}

func (o *Orchestrator) fail(_ context.Context, r *run, err error) *domain.QueryResponse {
	failedIn := r.state
	r.advance(StateFailed)

	var qe *domain.QueryError
	if errors.As(err, &qe) && qe.State == "" {
		qe.WithState(string(failedIn))
	}

	intent := domain.IntentGeneral
	var domains []string
	if r.result != nil {
		intent = r.result.PrimaryIntent
		for _, d := range r.result.Domains {
			domains = append(domains, string(d))
		}
	}

	o.logger.Error("query failed",
		slog.String("state", string(failedIn)),
		slog.String("error_type", string(domain.KindOf(err))),
		slog.String("intent", string(intent)),
		slog.String("domains", strings.Join(domains, ",")),
		slog.String("client_id", r.req.ClientID),
		slog.String("conversation_id", r.req.ConversationID),
		slog.String("error", err.Error()),
	)
	r.span.RecordError(err)
	r.span.SetStatus(codes.Error, string(domain.KindOf(err)))

	o.record(r, nil, false)
	return Fallback(intent, r.req.ConversationID)
}

func (o *Orchestrator) record(r *run, used []domain.DomainTag, success bool) {
	intent := domain.IntentGeneral
	if r.result != nil {
		intent = r.result.PrimaryIntent
	}
	o.deps.Metrics.Record(metrics.Sample{
		Intent:       intent,
		Domains:      used,
		ResponseTime: o.now().Sub(r.start),
		Success:      success,
	})
}

// Fallback is the response returned for every failed query.
func Fallback(intent domain.Intent, conversationID string) *domain.QueryResponse {
	return &domain.QueryResponse{
		Answer:           FallbackAnswer,
		Sources:          []domain.Source{},
		DomainsUsed:      []domain.DomainTag{},
		Confidence:       0,
		SuggestedQueries: append([]string(nil), FallbackSuggestions...),
		ConversationID:   conversationID,
		Intent:           intent,
	}
}

// ClearCache drops one domain, or every domain for DomainAll.
func (o *Orchestrator) ClearCache(tag domain.DomainTag) {
	if tag == "" || tag == domain.DomainAll {
		o.deps.Cache.Clear()
		return
	}
	o.deps.Cache.ClearDomain(tag)
}

// Metrics returns the process-lifetime aggregates with cache counters.
func (o *Orchestrator) Metrics() metrics.Snapshot {
	stats := o.deps.Cache.Stats()
	return o.deps.Metrics.Snapshot(&stats)
}

// History returns the caller's recent turns, optionally one conversation.
func (o *Orchestrator) History(ctx context.Context, userID, conversationID string, limit int) []*domain.ConversationTurn {
	if o.deps.History == nil {
		return []*domain.ConversationTurn{}
	}
	turns := o.deps.History.Recent(ctx, userID, limit)
	if conversationID == "" {
		return turns
	}
	out := []*domain.ConversationTurn{}
	for _, t := range turns {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	return out
}

// ClearHistory drops the caller's history, optionally one conversation.
func (o *Orchestrator) ClearHistory(ctx context.Context, userID, conversationID string) error {
	if o.deps.History == nil {
		return nil
	}
	return o.deps.History.Clear(ctx, userID, conversationID)
}

// resolveDomains returns the concrete domains to fetch. Requested domains
// replace the classified set; DomainAll expands to every concrete domain.
func resolveDomains(requested, classified []domain.DomainTag) []domain.DomainTag {
	src := classified
	if len(requested) > 0 {
		src = requested
	}
	seen := make(map[domain.DomainTag]bool, len(domain.ConcreteDomains))
	var out []domain.DomainTag
	add := func(tag domain.DomainTag) {
		if !seen[tag] {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	for _, tag := range src {
		if tag == domain.DomainAll {
			for _, c := range domain.ConcreteDomains {
				add(c)
			}
			continue
		}
		if _, ok := domain.ParseDomainTag(string(tag)); ok {
			add(tag)
		}
	}
	if len(out) == 0 {
		out = append(out, domain.ConcreteDomains...)
	}
	return out
}

func domainsUsed(ctx *domain.OptimizedContext) []domain.DomainTag {
	if ctx == nil || len(ctx.Domains) == 0 {
		return []domain.DomainTag{}
	}
	return append([]domain.DomainTag(nil), ctx.Domains...)
}
