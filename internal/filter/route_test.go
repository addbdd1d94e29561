package filter

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/edgefilter/bodyroute/internal/rules"
)

// mockStream records header writes and route cache invalidations.
type mockStream struct {
	headers     map[string]string
	setCalls    int
	clearCalls  int
	clearBefore bool // a clear arrived before the decision header was set
}

func newMockStream() *mockStream {
	return &mockStream{headers: map[string]string{}}
}

func (s *mockStream) RequestHeader(name string) (string, bool) {
	v, ok := s.headers[name]
	return v, ok
}

func (s *mockStream) RequestHeaders() [][2]string {
	var out [][2]string
	for k, v := range s.headers {
		out = append(out, [2]string{k, v})
	}
	return out
}

func (s *mockStream) SetRequestHeader(name, value string) {
	s.headers[name] = value
	s.setCalls++
}

func (s *mockStream) ClearRouteCache() {
	if _, ok := s.headers["x-route-to"]; !ok {
		s.clearBefore = true
	}
	s.clearCalls++
}

func newTestRouteFilter(t *testing.T, maxBody int) *RouteFilter {
	t.Helper()
	engine, err := rules.NewYAMLEngineFromFile(rules.DefaultRouteFile())
	if err != nil {
		t.Fatal(err)
	}
	return NewRouteFilter(RouteConfig{
		Engine:         engine,
		SignalField:    "method",
		DecisionHeader: "x-route-to",
		DefaultRoute:   "echo1",
		MaxBodyBytes:   maxBody,
	})
}

func TestRouteFilter_NoBody(t *testing.T) {
	f := newTestRouteFilter(t, 0)
	stream := newMockStream()
	sc := NewStreamContext(stream)
	ctx := context.Background()

	status, err := f.OnRequestHeaders(ctx, sc, true)
	if err != nil {
		t.Fatal(err)
	}
	if status != HeaderContinue {
		t.Errorf("expected continue for bodyless request, got %s", status)
	}
	if sc.State() != StateCompleted {
		t.Errorf("expected completed state, got %s", sc.State())
	}
	if got := stream.headers["x-route-to"]; got != "echo1" {
		t.Errorf("expected default route header, got %q", got)
	}
	if stream.clearCalls != 0 {
		t.Errorf("expected no cache invalidation without a body phase, got %d", stream.clearCalls)
	}
}

func TestRouteFilter_BodyRouting(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"echo2 method", `{"method":"invoke_echo2_service"}`, "echo2"},
		{"echo1 method", `{"method":"invoke_echo1"}`, "echo1"},
		{"empty object", `{}`, "echo1"},
		{"not json", `not json at all`, "echo1"},
		{"empty body", ``, "echo1"},
		{"non-string method", `{"method":7}`, "echo1"},
		{"non-utf8 body", string([]byte{0xff, 0xfe, 0xfd}), "echo1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTestRouteFilter(t, 0)
			stream := newMockStream()
			sc := NewStreamContext(stream)
			ctx := context.Background()

			status, err := f.OnRequestHeaders(ctx, sc, false)
			if err != nil {
				t.Fatal(err)
			}
			if status != HeaderStopIteration {
				t.Fatalf("expected pause on headers, got %s", status)
			}

			bstatus, err := f.OnRequestBody(ctx, sc, []byte(tt.body), true)
			if err != nil {
				t.Fatal(err)
			}
			if bstatus != BodyContinue {
				t.Errorf("expected resume on final chunk, got %s", bstatus)
			}
			if got := stream.headers["x-route-to"]; got != tt.want {
				t.Errorf("x-route-to = %q, want %q", got, tt.want)
			}
			if stream.clearCalls != 1 {
				t.Errorf("expected exactly one cache invalidation, got %d", stream.clearCalls)
			}
			if stream.clearBefore {
				t.Error("cache invalidated before decision header was written")
			}
		})
	}
}

func TestRouteFilter_ChunkedBuffering(t *testing.T) {
	f := newTestRouteFilter(t, 0)
	stream := newMockStream()
	sc := NewStreamContext(stream)
	ctx := context.Background()

	if _, err := f.OnRequestHeaders(ctx, sc, false); err != nil {
		t.Fatal(err)
	}

	chunks := [][]byte{
		[]byte(`{"meth`),
		[]byte(`od":"invoke_`),
		[]byte(`echo2_service"}`),
	}

	for i, chunk := range chunks[:len(chunks)-1] {
		status, err := f.OnRequestBody(ctx, sc, chunk, false)
		if err != nil {
			t.Fatal(err)
		}
		if status != BodyStopIterationAndBuffer {
			t.Fatalf("chunk %d: expected buffer signal, got %s", i, status)
		}
		if stream.clearCalls != 0 {
			t.Fatalf("chunk %d: decision made on partial body", i)
		}
	}

	status, err := f.OnRequestBody(ctx, sc, chunks[len(chunks)-1], true)
	if err != nil {
		t.Fatal(err)
	}
	if status != BodyContinue {
		t.Errorf("expected resume on final chunk, got %s", status)
	}

	want := bytes.Join(chunks, nil)
	if !bytes.Equal(sc.BufferedBody(), want) {
		t.Errorf("assembled body = %q, want %q", sc.BufferedBody(), want)
	}
	if got := stream.headers["x-route-to"]; got != "echo2" {
		t.Errorf("x-route-to = %q, want echo2", got)
	}
}

func TestRouteFilter_Idempotent(t *testing.T) {
	f := newTestRouteFilter(t, 0)
	stream := newMockStream()
	sc := NewStreamContext(stream)
	ctx := context.Background()

	if _, err := f.OnRequestHeaders(ctx, sc, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.OnRequestBody(ctx, sc, []byte(`{"method":"invoke_echo2_service"}`), true); err != nil {
		t.Fatal(err)
	}
	first := sc.Decision().Route

	// A duplicate end-of-stream callback must not re-run extraction or
	// invalidate the cache again.
	status, err := f.OnRequestBody(ctx, sc, []byte(`{"method":"other"}`), true)
	if err != nil {
		t.Fatal(err)
	}
	if status != BodyContinue {
		t.Errorf("expected continue on completed stream, got %s", status)
	}
	if sc.Decision().Route != first {
		t.Errorf("decision changed on re-invocation: %q -> %q", first, sc.Decision().Route)
	}
	if stream.clearCalls != 1 {
		t.Errorf("expected one cache invalidation, got %d", stream.clearCalls)
	}
	if stream.setCalls != 1 {
		t.Errorf("expected one header write, got %d", stream.setCalls)
	}
}

func TestRouteFilter_BodyBeforeHeaders(t *testing.T) {
	f := newTestRouteFilter(t, 0)
	sc := NewStreamContext(newMockStream())

	_, err := f.OnRequestBody(context.Background(), sc, []byte(`{}`), true)
	if !errors.Is(err, ErrBodyBeforeHeaders) {
		t.Errorf("expected ErrBodyBeforeHeaders, got %v", err)
	}
}

func TestRouteFilter_BodyOverflow(t *testing.T) {
	f := newTestRouteFilter(t, 8)
	stream := newMockStream()
	sc := NewStreamContext(stream)
	ctx := context.Background()

	if _, err := f.OnRequestHeaders(ctx, sc, false); err != nil {
		t.Fatal(err)
	}

	// Overflowing chunk carries an echo2 signal that must be ignored.
	status, err := f.OnRequestBody(ctx, sc, []byte(`{"method":"invoke_echo2_service"}`), false)
	if err != nil {
		t.Fatal(err)
	}
	if status != BodyContinue {
		t.Errorf("expected release on overflow, got %s", status)
	}
	if sc.State() != StateCompleted {
		t.Errorf("expected completed state, got %s", sc.State())
	}
	if got := stream.headers["x-route-to"]; got != "echo1" {
		t.Errorf("expected default route on overflow, got %q", got)
	}
}

func TestRouteFilter_TrailersAfterCompletion(t *testing.T) {
	f := newTestRouteFilter(t, 0)
	stream := newMockStream()
	sc := NewStreamContext(stream)
	ctx := context.Background()

	if _, err := f.OnRequestHeaders(ctx, sc, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.OnRequestBody(ctx, sc, []byte(`{}`), true); err != nil {
		t.Fatal(err)
	}
	if err := f.OnRequestTrailers(ctx, sc); err != nil {
		t.Fatal(err)
	}
	if stream.setCalls != 1 || stream.clearCalls != 1 {
		t.Error("trailer event advanced routing state")
	}
}
