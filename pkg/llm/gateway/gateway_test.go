package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns queued results in order, repeating the last one
type scriptedProvider struct {
	name    string
	mu      sync.Mutex
	results []result
	calls   int
	models  []string
}

type result struct {
	text string
	err  error
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Chat(ctx context.Context, _ []llm.Message, options ...llm.Option) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models = append(p.models, llm.Apply(llm.Options{}, options...).Model)
	idx := p.calls
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	p.calls++
	r := p.results[idx]
	if errors.Is(r.err, context.DeadlineExceeded) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return r.text, r.err
}

func (p *scriptedProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingSink struct {
	mu     sync.Mutex
	events []observability.Event
}

func (r *recordingSink) Emit(_ context.Context, e observability.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func testPolicy() Policy {
	return Policy{
		PrimaryAttempts: 3,
		InitialBackoff:  time.Millisecond,
		MaxBackoff:      5 * time.Millisecond,
		CallTimeout:     time.Second,
	}
}

func serverError() error {
	return &llm.StatusError{Provider: "test", StatusCode: http.StatusInternalServerError, Body: "boom"}
}

func TestComplete_PrimarySucceeds(t *testing.T) {
	primary := &scriptedProvider{name: "primary", results: []result{{text: "hello"}}}
	backup := &scriptedProvider{name: "backup", results: []result{{text: "unused"}}}
	sink := &recordingSink{}
	g := New(primary, backup, testPolicy(), sink, logger.NewNopLogger())

	c, err := g.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", c.Text)
	assert.Equal(t, "primary", c.Provider)
	assert.False(t, c.FellBack)
	assert.Equal(t, 0, backup.Calls())

	require.Len(t, sink.events, 1)
	assert.Equal(t, observability.EventProviderUsed, sink.events[0].Type)
	assert.Equal(t, "ok", sink.events[0].Attributes["outcome"])
}

func TestComplete_RetriesTransientPrimaryFailure(t *testing.T) {
	primary := &scriptedProvider{name: "primary", results: []result{
		{err: serverError()},
		{err: llm.ErrEmptyCompletion},
		{text: "third time"},
	}}
	backup := &scriptedProvider{name: "backup", results: []result{{text: "unused"}}}
	g := New(primary, backup, testPolicy(), nil, logger.NewNopLogger())

	c, err := g.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "third time", c.Text)
	assert.Equal(t, 3, c.Attempts)
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 0, backup.Calls())
}

func TestComplete_FailoverAfterRetriesExhausted(t *testing.T) {
	primary := &scriptedProvider{name: "primary", results: []result{{err: serverError()}}}
	backup := &scriptedProvider{name: "backup", results: []result{{text: "from backup"}}}
	sink := &recordingSink{}
	g := New(primary, backup, testPolicy(), sink, logger.NewNopLogger())

	c, err := g.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "from backup", c.Text)
	assert.True(t, c.FellBack)
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 1, backup.Calls())
	require.Len(t, sink.events, 1)
	assert.Equal(t, "failover", sink.events[0].Attributes["outcome"])
	assert.Equal(t, "backup", sink.events[0].Provider)
}

func TestComplete_FailoverIsPerCall(t *testing.T) {
	primary := &scriptedProvider{name: "primary", results: []result{
		{err: serverError()}, {err: serverError()}, {err: serverError()},
		{text: "primary is back"},
	}}
	backup := &scriptedProvider{name: "backup", results: []result{{text: "from backup"}}}
	g := New(primary, backup, testPolicy(), nil, logger.NewNopLogger())

	first, err := g.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "backup", first.Provider)

	second, err := g.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "primary", second.Provider)
	assert.Equal(t, 4, primary.Calls())
}

func TestComplete_ClientErrorSkipsRetries(t *testing.T) {
	primary := &scriptedProvider{name: "primary", results: []result{
		{err: &llm.StatusError{Provider: "primary", StatusCode: http.StatusBadRequest}},
	}}
	backup := &scriptedProvider{name: "backup", results: []result{{text: "from backup"}}}
	g := New(primary, backup, testPolicy(), nil, logger.NewNopLogger())

	c, err := g.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "from backup", c.Text)
	assert.Equal(t, 1, primary.Calls())
}

func TestComplete_BothFail(t *testing.T) {
	primary := &scriptedProvider{name: "primary", results: []result{{err: serverError()}}}
	backup := &scriptedProvider{name: "backup", results: []result{{err: errors.New("connection refused")}}}
	sink := &recordingSink{}
	g := New(primary, backup, testPolicy(), sink, logger.NewNopLogger())

	_, err := g.Complete(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "primary")
	assert.Contains(t, err.Error(), "backup")
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 1, backup.Calls())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "failed", sink.events[0].Attributes["outcome"])
}

func TestComplete_NoProviders(t *testing.T) {
	g := New(nil, nil, testPolicy(), nil, logger.NewNopLogger())
	assert.False(t, g.Available())

	_, err := g.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestComplete_AttemptTimeoutCountsAsFailure(t *testing.T) {
	policy := testPolicy()
	policy.PrimaryAttempts = 2
	policy.CallTimeout = 20 * time.Millisecond
	primary := &scriptedProvider{name: "primary", results: []result{{err: context.DeadlineExceeded}}}
	backup := &scriptedProvider{name: "backup", results: []result{{text: "in time"}}}
	g := New(primary, backup, policy, nil, logger.NewNopLogger())

	c, err := g.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "in time", c.Text)
	assert.Equal(t, 2, primary.Calls())
}

func TestComplete_CanceledContextStops(t *testing.T) {
	primary := &scriptedProvider{name: "primary", results: []result{{text: "never"}}}
	backup := &scriptedProvider{name: "backup", results: []result{{text: "never"}}}
	g := New(primary, backup, testPolicy(), nil, logger.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Complete(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 0, backup.Calls())
}

func TestComplete_OverridesModels(t *testing.T) {
	primary := &scriptedProvider{name: "primary", results: []result{{err: serverError()}}}
	backup := &scriptedProvider{name: "backup", results: []result{{text: "ok"}}}
	policy := testPolicy()
	policy.PrimaryAttempts = 1
	g := New(primary, backup, policy, nil, logger.NewNopLogger())

	ctx := WithOverrides(context.Background(), Overrides{PrimaryModel: "big", BackupModel: "small"})
	_, err := g.Complete(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"big"}, primary.models)
	assert.Equal(t, []string{"small"}, backup.models)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"canceled", context.Canceled, KindCanceled},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"empty", llm.ErrEmptyCompletion, KindEmpty},
		{"rate limited", &llm.StatusError{StatusCode: 429}, KindRateLimited},
		{"gateway timeout", &llm.StatusError{StatusCode: 504}, KindTimeout},
		{"server", &llm.StatusError{StatusCode: 503}, KindServer},
		{"client", &llm.StatusError{StatusCode: 401}, KindClient},
		{"transport", errors.New("dial tcp: connection refused"), KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
	assert.False(t, KindClient.Retryable())
	assert.True(t, KindRateLimited.Retryable())
}
