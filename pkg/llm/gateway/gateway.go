package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"research-agent-be/internal/pkg/logger"
	"research-agent-be/pkg/llm"
	"research-agent-be/pkg/observability"

	"github.com/avast/retry-go/v4"
	"github.com/hashicorp/go-multierror"
)

// Policy bounds the work spent on one call
type Policy struct {
	PrimaryAttempts uint          // Total tries on the primary, first call included
	InitialBackoff  time.Duration // Delay before the first retry, doubled afterwards
	MaxBackoff      time.Duration
	CallTimeout     time.Duration // Deadline for a single attempt
}

func DefaultPolicy() Policy {
	return Policy{
		PrimaryAttempts: 3,
		InitialBackoff:  250 * time.Millisecond,
		MaxBackoff:      2 * time.Second,
		CallTimeout:     30 * time.Second,
	}
}

// Completion is a successful call and how it was served
type Completion struct {
	Text     string
	Provider string
	Attempts int
	FellBack bool
}

// Gateway calls the primary provider, retries it with backoff, then fails
// over to the backup for that call only.
type Gateway struct {
	primary llm.LLMProvider
	backup  llm.LLMProvider
	policy  Policy
	sink    observability.Sink
	logger  logger.ILogger
}

var _ llm.LLMProvider = (*Gateway)(nil)

// New accepts nil providers; a gateway with neither fails every call
func New(primary, backup llm.LLMProvider, policy Policy, sink observability.Sink, log logger.ILogger) *Gateway {
	if policy.PrimaryAttempts == 0 {
		policy.PrimaryAttempts = 1
	}
	if policy.CallTimeout <= 0 {
		policy.CallTimeout = DefaultPolicy().CallTimeout
	}
	if sink == nil {
		sink = observability.NopSink{}
	}
	return &Gateway{
		primary: primary,
		backup:  backup,
		policy:  policy,
		sink:    sink,
		logger:  log,
	}
}

func (g *Gateway) Name() string {
	return "gateway"
}

// Available reports whether any provider is configured
func (g *Gateway) Available() bool {
	return g.primary != nil || g.backup != nil
}

func (g *Gateway) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	c, err := g.Complete(ctx, history, options...)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

func (g *Gateway) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	return g.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, options...)
}

// Complete runs the fallback policy for one call
func (g *Gateway) Complete(ctx context.Context, messages []llm.Message, options ...llm.Option) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	overrides := overridesFrom(ctx)
	var failures *multierror.Error

	if g.primary != nil {
		text, attempts, err := g.callPrimary(ctx, messages, options, overrides)
		if err == nil {
			g.emit(ctx, g.primary.Name(), "ok", attempts, start)
			return &Completion{Text: text, Provider: g.primary.Name(), Attempts: attempts}, nil
		}
		failures = multierror.Append(failures, err)

		if ctx.Err() != nil {
			return nil, &ProviderError{Provider: g.primary.Name(), Kind: KindCanceled, Err: ctx.Err()}
		}
		g.logger.Warn("Gateway", "Primary provider failed, falling back", map[string]interface{}{
			"provider": g.primary.Name(),
			"attempts": attempts,
			"error":    err.Error(),
		})
	}

	if g.backup != nil {
		text, err := g.callOnce(ctx, g.backup, messages, options, overrides.BackupModel, overrides.Timeout)
		if err == nil {
			g.emit(ctx, g.backup.Name(), "failover", 1, start)
			return &Completion{Text: text, Provider: g.backup.Name(), Attempts: 1, FellBack: g.primary != nil}, nil
		}
		failures = multierror.Append(failures, err)
		if ctx.Err() != nil {
			return nil, &ProviderError{Provider: g.backup.Name(), Kind: KindCanceled, Err: ctx.Err()}
		}
	}

	g.emit(ctx, "none", "failed", 0, start)
	if failures == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrProviderUnavailable)
	}
	g.logger.Error("Gateway", "All providers failed", map[string]interface{}{"error": failures.Error()})
	return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, failures.ErrorOrNil())
}

func (g *Gateway) callPrimary(ctx context.Context, messages []llm.Message, options []llm.Option, o Overrides) (string, int, error) {
	var text string
	attempts := 0

	retryOpts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(g.policy.PrimaryAttempts),
		retry.Delay(g.policy.InitialBackoff),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var pe *ProviderError
			return errors.As(err, &pe) && pe.Kind.Retryable()
		}),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Debug("Gateway", "Retrying primary provider", map[string]interface{}{
				"attempt": n + 1,
				"error":   err.Error(),
			})
		}),
	}
	if g.policy.MaxBackoff > 0 {
		retryOpts = append(retryOpts, retry.MaxDelay(g.policy.MaxBackoff))
	}
	if jitter := g.policy.InitialBackoff / 2; jitter > 0 {
		retryOpts = append(retryOpts,
			retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
			retry.MaxJitter(jitter),
		)
	} else {
		retryOpts = append(retryOpts, retry.DelayType(retry.BackOffDelay))
	}

	err := retry.Do(func() error {
		attempts++
		out, err := g.callOnce(ctx, g.primary, messages, options, o.PrimaryModel, o.Timeout)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, retryOpts...)

	return text, attempts, err
}

func (g *Gateway) callOnce(ctx context.Context, p llm.LLMProvider, messages []llm.Message, options []llm.Option, model string, timeout time.Duration) (string, error) {
	opts := append([]llm.Option{}, options...)
	if model != "" {
		opts = append(opts, llm.WithModel(model))
	}
	if applied := llm.Apply(llm.Options{}, options...); applied.Timeout > 0 {
		timeout = applied.Timeout
	}
	if timeout <= 0 {
		timeout = g.policy.CallTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := p.Chat(callCtx, messages, opts...)
	if err == nil && strings.TrimSpace(text) == "" {
		err = llm.ErrEmptyCompletion
	}
	if err != nil {
		kind := Classify(err)
		if ctx.Err() != nil {
			kind = KindCanceled
		}
		return "", &ProviderError{Provider: p.Name(), Kind: kind, Err: err}
	}
	return text, nil
}

func (g *Gateway) emit(ctx context.Context, provider, outcome string, attempts int, start time.Time) {
	e := observability.NewEvent(ctx, observability.EventProviderUsed)
	e.Provider = provider
	e.Latency = time.Since(start)
	e.Attributes = map[string]interface{}{
		"outcome":  outcome,
		"attempts": attempts,
	}
	g.sink.Emit(ctx, e)
}
