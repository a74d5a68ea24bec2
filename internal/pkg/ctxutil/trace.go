package ctxutil

import "context"

type traceDataKey struct{}

// TraceData follows a request into the jobs it enqueues. JobID is set only
// inside a worker.
type TraceData struct {
	TraceID   string
	RequestID string
	JobID     string
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// TraceFields returns non-empty trace_id, request_id and job_id as log fields.
func TraceFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	var out []interface{}
	for _, kv := range [][2]string{{"trace_id", td.TraceID}, {"request_id", td.RequestID}, {"job_id", td.JobID}} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}
