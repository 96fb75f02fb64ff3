package vfs

import "context"

type workdirKey struct{}

// WithWorkdir returns a context carrying the working directory used to
// resolve relative paths. The provider itself holds no per-caller state,
// so concurrent callers with different working directories never interfere.
func WithWorkdir(ctx context.Context, workdir string) context.Context {
	return context.WithValue(ctx, workdirKey{}, NormalizePath(workdir))
}

// WorkdirFromContext returns the working directory stored in the context,
// or the root if none is set.
func WorkdirFromContext(ctx context.Context) string {
	if wd, ok := ctx.Value(workdirKey{}).(string); ok {
		return wd
	}
	return Separator
}
