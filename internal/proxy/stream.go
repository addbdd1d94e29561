package proxy

import "net/http"

// httpStream adapts an in-flight *http.Request to the filter.Stream host
// surface. The cached route models the host's upstream selection: computed
// once when header processing completes and discarded on ClearRouteCache.
type httpStream struct {
	req    *http.Request
	route  string
	cached bool
}

func newHTTPStream(r *http.Request) *httpStream {
	return &httpStream{req: r}
}

func (s *httpStream) RequestHeader(name string) (string, bool) {
	if len(s.req.Header.Values(name)) == 0 {
		return "", false
	}
	return s.req.Header.Get(name), true
}

func (s *httpStream) RequestHeaders() [][2]string {
	var headers [][2]string
	for name, values := range s.req.Header {
		for _, v := range values {
			headers = append(headers, [2]string{name, v})
		}
	}
	return headers
}

func (s *httpStream) SetRequestHeader(name, value string) {
	s.req.Header.Set(name, value)
}

func (s *httpStream) ClearRouteCache() {
	s.route = ""
	s.cached = false
}

func (s *httpStream) cacheRoute(route string) {
	s.route = route
	s.cached = true
}

func (s *httpStream) cachedRoute() (string, bool) {
	return s.route, s.cached
}
