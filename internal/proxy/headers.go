package proxy

import (
	"net/http"
	"strings"
)

// strippedInbound are headers never forwarded to the upstream: hop-by-hop
// headers, plus the payment headers, which are relay protocol surface and
// must not leak to the seller's API.
var strippedInbound = map[string]struct{}{
	"host":                {},
	"connection":          {},
	"keep-alive":          {},
	"te":                  {},
	"trailer":             {},
	"upgrade":             {},
	"content-length":      {},
	"x-payment":           {},
	"x-payment-signature": {},
	"payment-signature":   {},
}

// copyInboundHeaders copies forwardable request headers onto the upstream
// request, then lays auth headers on top so endpoint credentials always win.
func copyInboundHeaders(dst http.Header, src http.Header, auth http.Header) {
	for name, values := range src {
		if _, strip := strippedInbound[strings.ToLower(name)]; strip {
			continue
		}
		dst[name] = values
	}
	for name, values := range auth {
		dst[name] = values
	}
}

// copyUpstreamHeaders forwards only Content-Type from the upstream response.
// Everything else (cookies, CORS grants, server banners) stays behind the
// relay boundary.
func copyUpstreamHeaders(dst http.Header, src http.Header) {
	if ct := src.Get("Content-Type"); ct != "" {
		dst.Set("Content-Type", ct)
	}
}
