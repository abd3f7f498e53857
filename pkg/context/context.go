// Package context carries request and job metadata through gym sync calls
package context

import "context"

type key int

const (
	requestIDKey key = iota
	userIDKey
	routeKey
	jobKey
)

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return value(ctx, requestIDKey)
}

// SetUserID stores the acting admin. Review decisions fall back to it as the reviewer.
func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return value(ctx, userIDKey)
}

// SetRoute stores the matched echo route, e.g. /api/v1/pending-matches/:id/approve
func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, routeKey, route)
}

func GetRoute(ctx context.Context) string {
	return value(ctx, routeKey)
}

// SetJob tags a scheduled or manually triggered run, e.g. sync_jjwl
func SetJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, jobKey, job)
}

func GetJob(ctx context.Context) string {
	return value(ctx, jobKey)
}

// LogFields returns the metadata set on ctx, keyed the way log lines name it
func LogFields(ctx context.Context) map[string]any {
	fields := make(map[string]any, 4)
	for k, name := range map[key]string{
		requestIDKey: "request_id",
		userIDKey:    "user_id",
		routeKey:     "route",
		jobKey:       "job",
	} {
		if v := value(ctx, k); v != "" {
			fields[name] = v
		}
	}
	return fields
}

func value(ctx context.Context, k key) string {
	v, _ := ctx.Value(k).(string)
	return v
}
