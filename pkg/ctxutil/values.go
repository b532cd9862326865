package ctxutil

import (
	"context"
)

// ValueKey is a typed context key.
type ValueKey[T any] interface {
	Name() string
	WithValue(ctx context.Context, value T) context.Context
	Get(ctx context.Context) T
}

type valueKey[T any] struct {
	key *key
}

func NewValueKey[T any](name string) ValueKey[T] {
	k := key(name)
	return &valueKey[T]{key: &k}
}

func (this *valueKey[T]) Name() string {
	return this.key.String()
}

func (this *valueKey[T]) WithValue(ctx context.Context, value T) context.Context {
	return context.WithValue(ctx, this.key, value)
}

// Get provides the value for the key, or the zero value.
func (this *valueKey[T]) Get(ctx context.Context) T {
	v, _ := ctx.Value(this.key).(T)
	return v
}
