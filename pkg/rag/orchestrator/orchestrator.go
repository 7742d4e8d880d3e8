package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"research-agent-be/internal/constant"
	"research-agent-be/internal/pkg/logger"
	"research-agent-be/internal/repository/contract"
	"research-agent-be/pkg/llm/gateway"
	"research-agent-be/pkg/observability"
	"research-agent-be/pkg/rag/grade"
	"research-agent-be/pkg/rag/prompt"
	"research-agent-be/pkg/rag/response"
	"research-agent-be/pkg/rag/rewrite"
	"research-agent-be/pkg/rag/router"
	"research-agent-be/pkg/retrieval/hybrid"
	"research-agent-be/pkg/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Retriever is the part of the hybrid engine the pipeline reads
type Retriever interface {
	Retrieve(ctx context.Context, query string, opts hybrid.Options) (*hybrid.Result, error)
	Status() hybrid.Status
}

// Dependencies are the collaborators of the pipeline. Nil stages fall back
// to their model-free behavior.
type Dependencies struct {
	Threads   contract.ThreadRepository
	Retriever Retriever
	Router    *router.Router
	Rewriter  *rewrite.Rewriter
	Grader    *grade.Grader
	Generator *response.Generator
	Sink      observability.Sink
}

// Orchestrator runs one state machine per question. It holds no per-question
// state; everything a question touches lives in its run.
type Orchestrator struct {
	threads   contract.ThreadRepository
	retriever Retriever
	router    *router.Router
	rewriter  *rewrite.Rewriter
	grader    *grade.Grader
	generator *response.Generator
	sink      observability.Sink
	settings  Settings
	tracer    trace.Tracer
	logger    logger.ILogger
}

func NewOrchestrator(deps Dependencies, settings Settings, log logger.ILogger) *Orchestrator {
	o := &Orchestrator{
		threads:   deps.Threads,
		retriever: deps.Retriever,
		router:    deps.Router,
		rewriter:  deps.Rewriter,
		grader:    deps.Grader,
		generator: deps.Generator,
		sink:      deps.Sink,
		settings:  settings.Normalize(),
		tracer:    otel.Tracer("research-agent-be/orchestrator"),
		logger:    log,
	}
	if o.router == nil {
		o.router = router.NewRouter(nil, router.ModeRules, log)
	}
	if o.rewriter == nil {
		o.rewriter = rewrite.NewRewriter(nil, log)
	}
	if o.grader == nil {
		o.grader = grade.NewGrader(nil, 0, log)
	}
	if o.generator == nil {
		o.generator = response.NewGenerator(nil, log)
	}
	if o.sink == nil {
		o.sink = observability.NopSink{}
	}
	return o
}

// Settings returns the process-wide defaults
func (o *Orchestrator) Settings() Settings {
	return o.settings
}

// Request is one question as received from transport
type Request struct {
	Question  string
	ThreadID  string // Empty mints a new thread
	Overrides *Overrides
}

// run is the state of a single question
type run struct {
	settings   Settings
	question   string
	threadID   string
	history    []store.Turn // Oldest first, excluding this question
	hasCorpus  bool
	decision   router.Decision
	memoryKind response.MemoryKind
	path       prompt.Path
	query      string
	excerpts   []store.GradedCandidate
	noRelevant bool
	degraded   bool
	notices    []string

	generations int
	drafts      []string
	revision    *prompt.Revision
	answer      string
	failure     error
	trail       []string
}

func (r *run) addNotice(n string) {
	for _, existing := range r.notices {
		if existing == n {
			return
		}
	}
	r.notices = append(r.notices, n)
}

// Answer runs the question to completion. It never fails: downstream errors
// become an explanatory answer. The question and answer are appended to the
// thread even when ctx has been canceled.
func (o *Orchestrator) Answer(ctx context.Context, req Request) *store.Answer {
	start := time.Now()
	r := &run{
		settings: o.settings.Merge(req.Overrides),
		question: strings.TrimSpace(req.Question),
		threadID: strings.TrimSpace(req.ThreadID),
	}
	if r.threadID == "" {
		r.threadID = o.mintThreadID(ctx)
	}

	ctx = observability.WithThread(ctx, r.threadID)
	ctx = gateway.WithOverrides(ctx, gateway.Overrides{
		PrimaryModel: r.settings.PrimaryModel,
		BackupModel:  r.settings.BackupModel,
		Timeout:      r.settings.ProviderTimeout,
	})
	ctx, cancel := context.WithTimeout(ctx, r.settings.QuestionTimeout)
	defer cancel()

	ctx, span := o.tracer.Start(ctx, "rag.answer", trace.WithAttributes(attribute.String("thread_id", r.threadID)))
	defer span.End()

	r.history = o.loadHistory(ctx, r.threadID)

	state := StateClassify
	for state != StateDone {
		if state != StateFinalize && r.failure == nil {
			if err := ctx.Err(); err != nil {
				r.failure = err
				state = StateFinalize
			}
		}
		next := o.step(ctx, r, state)
		if !CanTransition(state, next) {
			if r.failure == nil {
				r.failure = fmt.Errorf("illegal transition %s -> %s", state, next)
			}
			next = StateFinalize
			if state == StateFinalize {
				next = StateDone
			}
		}
		state = next
	}

	answer := r.result()
	span.SetAttributes(attribute.String("route", answer.Route), attribute.Int("generations", r.generations))
	o.emitCompleted(ctx, r, answer, start)
	return answer
}

// step executes one state and returns its successor
func (o *Orchestrator) step(ctx context.Context, r *run, s State) (next State) {
	stageStart := time.Now()
	ctx, span := o.tracer.Start(ctx, "rag."+s.String())
	defer span.End()

	r.trail = append(r.trail, s.String())
	o.emitStage(ctx, observability.EventStageEntered, s, 0)
	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("Orchestrator", "Stage panicked", map[string]interface{}{
				"stage": s.String(),
				"panic": fmt.Sprint(p),
			})
			if r.failure == nil {
				r.failure = fmt.Errorf("stage %s panicked: %v", s, p)
			}
			next = StateFinalize
			if s == StateFinalize {
				next = StateDone
			}
		}
		o.emitStage(ctx, observability.EventStageExited, s, time.Since(stageStart))
	}()

	switch s {
	case StateClassify:
		return o.classify(ctx, r)
	case StateMemoryAnswer:
		return o.memoryAnswer(r)
	case StateRetrievePath:
		return o.retrievePath(ctx, r)
	case StateGeneralPath:
		return o.generalPath(r)
	case StateGenerate:
		return o.generate(ctx, r)
	case StateSelfCheck:
		return o.selfCheck(ctx, r)
	case StateFinalize:
		return o.finalize(ctx, r)
	}
	return StateFinalize
}

func (o *Orchestrator) classify(ctx context.Context, r *run) State {
	r.hasCorpus = o.retriever != nil && o.retriever.Status().HasDocuments
	r.decision = o.router.Classify(ctx, r.question, r.hasCorpus)

	e := observability.NewEvent(ctx, observability.EventRouteChosen)
	e.Route = string(r.decision.Route)
	e.Attributes = map[string]interface{}{
		"reason":           r.decision.Reason,
		"by_model":         r.decision.ByModel,
		"document_seeking": r.decision.DocumentSeeking,
	}
	o.sink.Emit(ctx, e)

	switch r.decision.Route {
	case router.RouteConversational:
		return StateMemoryAnswer
	case router.RouteDocumentGrounded:
		return StateRetrievePath
	default:
		return StateGeneralPath
	}
}

func (o *Orchestrator) memoryAnswer(r *run) State {
	r.path = prompt.PathMemory
	r.memoryKind = response.ClassifyMemory(r.question)
	if r.memoryKind.Deterministic() || len(r.history) == 0 {
		r.answer = response.MemoryAnswer(r.memoryKind, r.question, r.history)
		return StateFinalize
	}
	return StateGenerate
}

func (o *Orchestrator) retrievePath(ctx context.Context, r *run) State {
	if o.retriever == nil {
		r.hasCorpus = false
		return StateGeneralPath
	}

	rw := o.rewriter.Rewrite(ctx, r.question, store.RecentWindow(r.history, r.settings.HistoryWindow))
	r.query = rw.Query

	res, err := o.retriever.Retrieve(ctx, r.query, r.settings.retrievalOptions())
	if errors.Is(err, hybrid.ErrIndexNotReady) {
		// The index was reset after classification
		r.hasCorpus = false
		return StateGeneralPath
	}
	if err != nil {
		r.failure = err
		return StateFinalize
	}

	if res.Degraded() {
		r.degraded = true
		r.addNotice(constant.NoticeDegradedRetrieval)
		for _, ch := range res.DegradedChannels {
			e := observability.NewEvent(ctx, observability.EventRetrievalDegraded)
			e.Attributes = map[string]interface{}{"channel": ch, "generation": res.Generation}
			o.sink.Emit(ctx, e)
		}
	}

	if len(res.Candidates) == 0 {
		r.noRelevant = true
		return StateGeneralPath
	}

	graded, err := o.grader.Grade(ctx, r.query, res.Candidates, r.settings.GradeThreshold)
	if err != nil {
		r.failure = err
		return StateFinalize
	}
	if graded.FallbackCount > 0 {
		o.logger.Debug("Orchestrator", "Some candidates graded by retrieval score", map[string]interface{}{
			"count": graded.FallbackCount,
		})
	}

	relevant := graded.Relevant()
	if len(relevant) == 0 {
		r.noRelevant = true
		return StateGeneralPath
	}
	if len(relevant) > r.settings.TopK {
		relevant = relevant[:r.settings.TopK]
	}
	r.excerpts = relevant
	r.path = prompt.PathGrounded
	return StateGenerate
}

func (o *Orchestrator) generalPath(r *run) State {
	if !r.hasCorpus && r.decision.DocumentSeeking {
		r.answer = constant.AnswerNoDocuments
		return StateFinalize
	}
	r.path = prompt.PathGeneral
	r.excerpts = nil
	return StateGenerate
}

func (o *Orchestrator) generate(ctx context.Context, r *run) State {
	if r.generations >= r.settings.maxGenerations() {
		o.keepFirstDraft(r)
		return StateFinalize
	}

	var draft string
	var err error
	if r.path == prompt.PathMemory {
		draft, err = o.generator.Memory(ctx, r.memoryKind, r.question, r.history)
	} else {
		req := response.Request{
			Path:     r.path,
			Question: r.question,
			Excerpts: r.excerpts,
			History:  oldestFirst(store.RecentWindow(r.history, r.settings.HistoryWindow)),
			Revision: r.revision,
		}
		if r.noRelevant {
			req.Notice = constant.NoticeNoRelevantDocuments
		}
		draft, err = o.generator.Generate(ctx, req)
	}
	r.generations++

	if err != nil {
		o.logger.Warn("Orchestrator", "Generation failed", map[string]interface{}{
			"path":       string(r.path),
			"generation": r.generations,
			"error":      err.Error(),
		})
		switch {
		case len(r.drafts) > 0:
			o.keepFirstDraft(r)
		case r.path == prompt.PathMemory && ctx.Err() == nil:
			r.answer = response.MemoryAnswer(r.memoryKind, r.question, r.history)
		default:
			r.failure = err
		}
		return StateFinalize
	}

	r.drafts = append(r.drafts, strings.TrimSpace(draft))
	return StateSelfCheck
}

func (o *Orchestrator) selfCheck(ctx context.Context, r *run) State {
	draft := r.drafts[len(r.drafts)-1]
	a := response.SelfCheck(response.CheckInput{
		Path:     r.path,
		Question: r.question,
		Draft:    draft,
		Excerpts: r.excerpts,
		History:  r.history,
	}, r.settings.SelfCheckThreshold)

	e := observability.NewEvent(ctx, observability.EventSelfCheck)
	e.Passed = &a.Passed
	e.Attributes = map[string]interface{}{
		"score":        a.Score,
		"groundedness": a.Groundedness,
		"completeness": a.Completeness,
		"attempt":      len(r.drafts),
	}
	o.sink.Emit(ctx, e)

	if a.Passed {
		r.answer = draft
		return StateFinalize
	}
	if r.generations < r.settings.maxGenerations() {
		r.revision = &prompt.Revision{Draft: draft, Feedback: a.Issues}
		return StateGenerate
	}
	o.keepFirstDraft(r)
	return StateFinalize
}

// keepFirstDraft settles on the first draft once the regeneration budget is spent
func (o *Orchestrator) keepFirstDraft(r *run) {
	if len(r.drafts) > 0 {
		r.answer = r.drafts[0]
	}
}

func (o *Orchestrator) finalize(ctx context.Context, r *run) State {
	switch {
	case r.failure != nil:
		o.logger.Error("Orchestrator", "Question degraded to an apology", map[string]interface{}{
			"thread_id": r.threadID,
			"error":     r.failure.Error(),
		})
		r.answer = failureAnswer(r.failure)
	case r.answer == "":
		r.answer = constant.AnswerInternalError
	case r.noRelevant && r.path == prompt.PathGeneral:
		r.addNotice(constant.NoticeNoRelevantDocuments)
		if !strings.HasPrefix(r.answer, constant.NoticeNoRelevantDocuments) {
			r.answer = constant.NoticeNoRelevantDocuments + "\n\n" + r.answer
		}
	}

	if o.threads != nil {
		err := o.threads.Append(context.WithoutCancel(ctx), r.threadID,
			store.HumanTurn(r.question),
			store.AssistantTurn(r.answer),
		)
		if err != nil {
			o.logger.Error("Orchestrator", "Failed to append turns", map[string]interface{}{
				"thread_id": r.threadID,
				"error":     err.Error(),
			})
		}
	}
	return StateDone
}

func failureAnswer(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return constant.AnswerTimeout
	case errors.Is(err, gateway.ErrProviderUnavailable), errors.Is(err, response.ErrNoProvider):
		return constant.AnswerUnavailable
	default:
		return constant.AnswerInternalError
	}
}

func (r *run) result() *store.Answer {
	refs := []store.Reference{}
	if r.failure == nil && r.path == prompt.PathGrounded {
		for _, c := range r.excerpts {
			refs = append(refs, store.Reference{
				Source:         c.Source,
				RelevanceScore: c.Grade,
				Snippet:        c.Snippet,
			})
		}
	}
	route := r.decision.Route
	if route == "" {
		route = router.RouteGeneralKnowledge
	}
	return &store.Answer{
		Text:       r.answer,
		References: refs,
		ThreadID:   r.threadID,
		Route:      string(route),
		Degraded:   r.degraded || r.failure != nil,
		Notices:    r.notices,
	}
}

func (o *Orchestrator) mintThreadID(ctx context.Context) string {
	if o.threads != nil {
		id, err := o.threads.NewThreadID(ctx)
		if err == nil {
			return id
		}
		o.logger.Warn("Orchestrator", "Thread store could not mint an id", map[string]interface{}{"error": err.Error()})
	}
	return uuid.NewString()
}

func (o *Orchestrator) loadHistory(ctx context.Context, threadID string) []store.Turn {
	if o.threads == nil {
		return nil
	}
	turns, err := o.threads.History(ctx, threadID)
	if err != nil {
		o.logger.Warn("Orchestrator", "Failed to load history, answering without it", map[string]interface{}{
			"thread_id": threadID,
			"error":     err.Error(),
		})
		return nil
	}
	return turns
}

func (o *Orchestrator) emitStage(ctx context.Context, typ observability.EventType, s State, latency time.Duration) {
	e := observability.NewEvent(ctx, typ)
	e.Stage = s.String()
	e.Latency = latency
	o.sink.Emit(ctx, e)
}

func (o *Orchestrator) emitCompleted(ctx context.Context, r *run, answer *store.Answer, start time.Time) {
	e := observability.NewEvent(ctx, observability.EventQuestionCompleted)
	e.Route = answer.Route
	e.Latency = time.Since(start)
	e.Attributes = map[string]interface{}{
		"path":        string(r.path),
		"generations": r.generations,
		"references":  len(answer.References),
		"degraded":    answer.Degraded,
		"failed":      r.failure != nil,
		"stages":      strings.Join(r.trail, ">"),
	}
	o.sink.Emit(context.WithoutCancel(ctx), e)
}

// oldestFirst reverses a newest-first window
func oldestFirst(turns []store.Turn) []store.Turn {
	out := make([]store.Turn, len(turns))
	for i, t := range turns {
		out[len(turns)-1-i] = t
	}
	return out
}
