// Package logging is the structured logger used by the server and qmsctl.
// Code depends on Logger; SlogLogger is the implementation.
package logging

import "context"

// Logger takes a message and key/value pairs:
//
//	log.Warn(ctx, "signature is stale", "entity", id, "artifact", artifactID)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always adds args.
	With(args ...any) Logger
}

type fieldsKey struct{}

// ContextWith returns a copy of ctx carrying key/value pairs that are added
// to every entry logged with it, after any pairs already attached.
func ContextWith(ctx context.Context, args ...any) context.Context {
	prev := Fields(ctx)
	fields := make([]any, 0, len(prev)+len(args))
	fields = append(append(fields, prev...), args...)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

// Fields returns the pairs attached to ctx by ContextWith.
func Fields(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	f, _ := ctx.Value(fieldsKey{}).([]any)
	return f
}
