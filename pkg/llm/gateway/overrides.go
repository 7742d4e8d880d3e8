package gateway

import (
	"context"
	"time"
)

// Overrides carries per-question provider settings through a call chain
type Overrides struct {
	PrimaryModel string
	BackupModel  string
	Timeout      time.Duration
}

type overridesKey struct{}

func WithOverrides(ctx context.Context, o Overrides) context.Context {
	return context.WithValue(ctx, overridesKey{}, o)
}

func overridesFrom(ctx context.Context) Overrides {
	if o, ok := ctx.Value(overridesKey{}).(Overrides); ok {
		return o
	}
	return Overrides{}
}
