package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edgefilter/bodyroute/internal/filter"
	"github.com/edgefilter/bodyroute/internal/rules"
)

type upstream struct {
	server *httptest.Server

	hits       int
	lastHeader string
	lastBody   string
	lastPath   string
}

func newUpstream(t *testing.T, name string) *upstream {
	t.Helper()
	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.hits++
		u.lastHeader = r.Header.Get("x-route-to")
		u.lastBody = string(body)
		u.lastPath = r.URL.Path
		w.Write([]byte(name))
	}))
	t.Cleanup(u.server.Close)
	return u
}

func newTestProxy(t *testing.T, echo1, echo2 *upstream, maxBodyBytes int) *Proxy {
	t.Helper()

	engine, err := rules.NewYAMLEngineFromFile(rules.DefaultRouteFile())
	if err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	chain := filter.BuildChain(filter.ChainConfig{
		Engine:         engine,
		Logger:         logger,
		SignalField:    "method",
		DecisionHeader: "x-route-to",
		DefaultRoute:   "echo1",
		MaxBodyBytes:   maxBodyBytes,
	})

	p, err := NewProxy(map[string]string{
		"echo1": echo1.server.URL,
		"echo2": echo2.server.URL,
	}, "echo1", "x-route-to", chain, logger)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestProxy_RoutesOnBodyContent(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"echo2 method", `{"method": "invoke_echo2_service"}`, "echo2"},
		{"other method", `{"method": "invoke_something_else"}`, "echo1"},
		{"no method field", `{"id": 42}`, "echo1"},
		{"not json", `hello world`, "echo1"},
		{"method not a string", `{"method": 7}`, "echo1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			echo1 := newUpstream(t, "echo1")
			echo2 := newUpstream(t, "echo2")
			proxy := httptest.NewServer(newTestProxy(t, echo1, echo2, 0))
			defer proxy.Close()

			resp, err := http.Post(proxy.URL+"/call", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			got, _ := io.ReadAll(resp.Body)
			if string(got) != tt.want {
				t.Errorf("routed to %s, want %s", got, tt.want)
			}

			target := echo1
			if tt.want == "echo2" {
				target = echo2
			}
			if target.hits != 1 {
				t.Errorf("upstream %s hits = %d, want 1", tt.want, target.hits)
			}
			if target.lastHeader != tt.want {
				t.Errorf("x-route-to seen by upstream = %q, want %q", target.lastHeader, tt.want)
			}
			if target.lastBody != tt.body {
				t.Errorf("upstream body = %q, want %q", target.lastBody, tt.body)
			}
		})
	}
}

func TestProxy_NoBodyUsesDefaultRoute(t *testing.T) {
	echo1 := newUpstream(t, "echo1")
	echo2 := newUpstream(t, "echo2")
	proxy := httptest.NewServer(newTestProxy(t, echo1, echo2, 0))
	defer proxy.Close()

	resp, err := http.Get(proxy.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	got, _ := io.ReadAll(resp.Body)
	if string(got) != "echo1" {
		t.Errorf("routed to %s, want echo1", got)
	}
	if echo1.lastHeader != "echo1" {
		t.Errorf("x-route-to = %q, want echo1", echo1.lastHeader)
	}
	if echo2.hits != 0 {
		t.Errorf("echo2 hits = %d, want 0", echo2.hits)
	}
}

func TestProxy_ChunkedBody(t *testing.T) {
	echo1 := newUpstream(t, "echo1")
	echo2 := newUpstream(t, "echo2")
	proxy := httptest.NewServer(newTestProxy(t, echo1, echo2, 0))
	defer proxy.Close()

	body := `{"method": "call_echo2_now"}`
	req, err := http.NewRequest(http.MethodPost, proxy.URL+"/call", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	// Unknown length forces chunked transfer encoding.
	req.ContentLength = -1

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	got, _ := io.ReadAll(resp.Body)
	if string(got) != "echo2" {
		t.Errorf("routed to %s, want echo2", got)
	}
	if echo2.lastBody != body {
		t.Errorf("upstream body = %q, want %q", echo2.lastBody, body)
	}
}

func TestProxy_BodyIntactPastInspectionBound(t *testing.T) {
	echo1 := newUpstream(t, "echo1")
	echo2 := newUpstream(t, "echo2")
	proxy := httptest.NewServer(newTestProxy(t, echo1, echo2, 10))
	defer proxy.Close()

	// Larger than one read chunk, with the signal past the bound so
	// inspection gives up before ever seeing it.
	body := `{"pad": "` + strings.Repeat("a", 40*1024) + `", "method": "invoke_echo2_service"}`

	resp, err := http.Post(proxy.URL+"/call", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	got, _ := io.ReadAll(resp.Body)
	if string(got) != "echo1" {
		t.Errorf("routed to %s, want echo1", got)
	}
	if len(echo1.lastBody) != len(body) {
		t.Fatalf("upstream received %d bytes, want %d", len(echo1.lastBody), len(body))
	}
	if echo1.lastBody != body {
		t.Error("upstream body differs from the original request body")
	}
}

func TestProxy_PathPreserved(t *testing.T) {
	echo1 := newUpstream(t, "echo1")
	echo2 := newUpstream(t, "echo2")
	proxy := httptest.NewServer(newTestProxy(t, echo1, echo2, 0))
	defer proxy.Close()

	resp, err := http.Post(proxy.URL+"/v1/messages", "application/json", strings.NewReader(`{"id":1}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if echo1.lastPath != "/v1/messages" {
		t.Errorf("upstream path = %q, want /v1/messages", echo1.lastPath)
	}
}

func TestNewProxy_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := NewProxy(nil, "echo1", "x-route-to", nil, logger); err == nil {
		t.Error("expected error for empty route table")
	}

	routes := map[string]string{"echo2": "http://localhost:1"}
	if _, err := NewProxy(routes, "echo1", "x-route-to", nil, logger); err == nil {
		t.Error("expected error when default route missing from table")
	}
}
