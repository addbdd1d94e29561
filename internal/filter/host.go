package filter

// Stream is the host-side surface for one in-flight request. Implementations
// wrap whatever the embedding host uses to represent a request; failures in
// these primitives surface through the host's own fault handling, not here.
type Stream interface {
	// RequestHeader returns the value of a request header.
	RequestHeader(name string) (string, bool)

	// RequestHeaders returns all request header pairs in order.
	RequestHeaders() [][2]string

	// SetRequestHeader sets a request header, replacing any prior value.
	SetRequestHeader(name, value string)

	// ClearRouteCache tells the host to discard any previously computed
	// upstream selection so it re-evaluates using current header state.
	ClearRouteCache()
}
