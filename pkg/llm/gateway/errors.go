package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"research-agent-be/pkg/llm"
)

// ErrProviderUnavailable means neither the primary nor the backup produced text
var ErrProviderUnavailable = errors.New("language model providers unavailable")

type Kind string

const (
	KindTransport   Kind = "transport"
	KindRateLimited Kind = "rate_limited"
	KindTimeout     Kind = "timeout"
	KindServer      Kind = "server"
	KindEmpty       Kind = "empty"
	KindClient      Kind = "client"
	KindCanceled    Kind = "canceled"
)

// Retryable reports whether another attempt on the same provider may help
func (k Kind) Retryable() bool {
	switch k {
	case KindTransport, KindRateLimited, KindTimeout, KindServer, KindEmpty:
		return true
	}
	return false
}

// ProviderError is one failed call to one backend
type ProviderError struct {
	Provider string
	Kind     Kind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Classify maps a backend error to a failure kind
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, llm.ErrEmptyCompletion):
		return KindEmpty
	}

	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		switch code := statusErr.StatusCode; {
		case code == http.StatusTooManyRequests:
			return KindRateLimited
		case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
			return KindTimeout
		case code >= 500:
			return KindServer
		default:
			return KindClient
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransport
}
