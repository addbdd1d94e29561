package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/edgefilter/bodyroute/internal/filter"
)

// chunkSize is the read granularity used when feeding body data through
// the filter chain.
const chunkSize = 32 * 1024

// Proxy is a content-routing HTTP reverse proxy. It drives the filter chain
// with header and body events for each request, then forwards to the
// upstream named by the decision header.
type Proxy struct {
	targets      map[string]*url.URL
	upstreams    map[string]*httputil.ReverseProxy
	defaultRoute string
	header       string
	chain        *filter.Chain
	logger       *slog.Logger
}

// NewProxy creates a proxy over a route table mapping route ids to upstream
// URLs. The default route must be present in the table.
func NewProxy(routes map[string]string, defaultRoute, header string, chain *filter.Chain, logger *slog.Logger) (*Proxy, error) {
	if len(routes) == 0 {
		return nil, fmt.Errorf("no routes configured")
	}
	if _, ok := routes[defaultRoute]; !ok {
		return nil, fmt.Errorf("default route %q not in route table", defaultRoute)
	}

	p := &Proxy{
		targets:      make(map[string]*url.URL, len(routes)),
		upstreams:    make(map[string]*httputil.ReverseProxy, len(routes)),
		defaultRoute: defaultRoute,
		header:       header,
		chain:        chain,
		logger:       logger,
	}

	for route, raw := range routes {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("route %q: invalid upstream URL: %w", route, err)
		}
		rp := httputil.NewSingleHostReverseProxy(u)
		rp.Director = p.directorFor(u)
		rp.ErrorHandler = p.errorHandler
		p.targets[route] = u
		p.upstreams[route] = rp
	}

	return p, nil
}

// ServeHTTP handles incoming HTTP requests.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stream := newHTTPStream(r)
	sc := filter.NewStreamContext(stream)
	defer p.chain.OnStreamComplete(ctx, sc)

	// ContentLength 0 means no body follows; -1 means chunked, length unknown.
	hasBody := r.ContentLength != 0

	hstatus, err := p.chain.OnRequestHeaders(ctx, sc, !hasBody)
	if err != nil {
		p.logger.Error("filter chain error", "request_id", sc.ID, "error", err)
		http.Error(w, "internal filter error", http.StatusInternalServerError)
		return
	}

	if hstatus == filter.HeaderContinue {
		// Header phase released: the routing decision is computed and
		// cached here, before any body arrives.
		stream.cacheRoute(p.matchRoute(stream))
	}

	if hasBody {
		// The replay buffer is owned here, not by the filters: a filter may
		// stop inspecting mid-stream (body bound exceeded) and its buffer
		// then holds only a prefix, but the upstream must see every byte.
		var replay bytes.Buffer
		if err := p.pumpBody(ctx, sc, r, &replay); err != nil {
			p.logger.Error("reading request body", "request_id", sc.ID, "error", err)
			http.Error(w, "failed to read request", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(replay.Bytes()))
		r.ContentLength = int64(replay.Len())
	}

	// Re-evaluate if a filter invalidated the cached selection.
	route, ok := stream.cachedRoute()
	if !ok {
		route = p.matchRoute(stream)
	}

	upstream, ok := p.upstreams[route]
	if !ok {
		route = p.defaultRoute
		upstream = p.upstreams[route]
	}

	p.logger.Info("forwarding request",
		"request_id", sc.ID,
		"route", route,
		"method", r.Method,
		"path", r.URL.Path,
	)
	upstream.ServeHTTP(w, r)
}

// pumpBody reads the request body in chunks, copies each into the replay
// buffer, and delivers it to the filter chain, marking the final chunk with
// end-of-stream.
func (p *Proxy) pumpBody(ctx context.Context, sc *filter.StreamContext, r *http.Request, replay *bytes.Buffer) error {
	defer r.Body.Close()

	buf := make([]byte, chunkSize)
	for {
		n, rerr := r.Body.Read(buf)
		endOfStream := rerr == io.EOF
		if n > 0 || endOfStream {
			replay.Write(buf[:n])
			if _, err := p.chain.OnRequestBody(ctx, sc, buf[:n], endOfStream); err != nil {
				return err
			}
		}
		if endOfStream {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// matchRoute performs the host's route-table match: the decision header
// names the route, unknown or missing values fall back to the default.
func (p *Proxy) matchRoute(stream filter.Stream) string {
	value, ok := stream.RequestHeader(p.header)
	if !ok {
		return p.defaultRoute
	}
	if _, known := p.targets[value]; !known {
		return p.defaultRoute
	}
	return value
}

func (p *Proxy) directorFor(target *url.URL) func(*http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host
		if target.Path != "" {
			req.URL.Path = singleJoiningSlash(target.Path, req.URL.Path)
		}
		req.Host = target.Host
	}
}

func (p *Proxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	p.logger.Error("proxy error", "error", err, "url", r.URL.String())
	http.Error(w, "proxy error: "+err.Error(), http.StatusBadGateway)
}

// Handler returns an http.Handler for use with http.Server.
func (p *Proxy) Handler() http.Handler {
	return p
}

// ListenAndServe starts the HTTP proxy server.
func (p *Proxy) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: p,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	p.logger.Info("starting proxy",
		"listen", addr,
		"default_route", p.defaultRoute,
		"routes", len(p.targets),
	)

	return srv.ListenAndServe()
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash && b != "":
		return a + "/" + b
	}
	return a + b
}
