package kit

import "context"

// Transport names the surface an endpoint call arrived on.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportMCP  Transport = "mcp"
)

type ctxKey int

const (
	transportKey ctxKey = iota
	passIDKey
)

// WithTransport tags ctx with the surface serving the call.
func WithTransport(ctx context.Context, t Transport) context.Context {
	return context.WithValue(ctx, transportKey, t)
}

// TransportFrom returns the tagged surface, TransportHTTP when untagged.
func TransportFrom(ctx context.Context) Transport {
	if t, ok := ctx.Value(transportKey).(Transport); ok {
		return t
	}
	return TransportHTTP
}

// WithPassID carries the id of the cleaning pass a call belongs to, so log
// lines from the engine and from endpoints can be joined per pass.
func WithPassID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, passIDKey, id)
}

// PassID returns the pass id in ctx, or "".
func PassID(ctx context.Context) string {
	id, _ := ctx.Value(passIDKey).(string)
	return id
}
