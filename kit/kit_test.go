package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	chained := Chain(noop)(base)

	_, err := chained(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	base := func(_ context.Context, _ any) (any, error) { return nil, errors.New("boom") }
	ep := Logging(logger, "scan")(base)

	ctx := WithPassID(WithTransport(context.Background(), TransportMCP), "p-1")
	if _, err := ep(ctx, nil); err == nil {
		t.Fatal("expected error")
	}
	out := buf.String()
	for _, want := range []string{"kit: endpoint failed", "endpoint=scan", "transport=mcp", "pass_id=p-1", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestContext_Transport(t *testing.T) {
	if v := TransportFrom(context.Background()); v != TransportHTTP {
		t.Fatalf("default transport: got %q, want %q", v, TransportHTTP)
	}
	ctx := WithTransport(context.Background(), TransportMCP)
	if v := TransportFrom(ctx); v != TransportMCP {
		t.Fatalf("transport: got %q", v)
	}
}

func TestContext_PassID(t *testing.T) {
	if v := PassID(context.Background()); v != "" {
		t.Fatalf("pass id default: got %q", v)
	}
	ctx := WithPassID(context.Background(), "4f1c")
	if v := PassID(ctx); v != "4f1c" {
		t.Fatalf("pass id: got %q", v)
	}
	// A bare string key must not collide with the typed key.
	ctx = context.WithValue(context.Background(), "pass_id", "x")
	if v := PassID(ctx); v != "" {
		t.Fatalf("untyped key leaked: got %q", v)
	}
}

func TestInputSchema(t *testing.T) {
	s := InputSchema(map[string]any{"html": map[string]any{"type": "string"}}, []string{"html"})
	if s["type"] != "object" {
		t.Fatalf("type: %v", s["type"])
	}
	if req, _ := s["required"].([]string); len(req) != 1 || req[0] != "html" {
		t.Fatalf("required: %v", s["required"])
	}
	if _, ok := InputSchema(nil, nil)["required"]; ok {
		t.Fatal("required set without required fields")
	}
}

func TestTimeout_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	ep := Timeout(time.Minute)(func(ctx context.Context, req any) (any, error) {
		deadline, ok = ctx.Deadline()
		return nil, nil
	})
	if _, err := ep(context.Background(), nil); err != nil {
		t.Fatalf("endpoint: %v", err)
	}
	if !ok || time.Until(deadline) > time.Minute {
		t.Fatalf("deadline: got %v (set=%v)", deadline, ok)
	}

	ep = Timeout(0)(func(ctx context.Context, req any) (any, error) {
		_, ok = ctx.Deadline()
		return nil, nil
	})
	ep(context.Background(), nil)
	if ok {
		t.Fatal("zero timeout set a deadline")
	}
}
