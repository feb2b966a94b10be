package middleware

import (
	"net"
	"net/http"
	"net/netip"

	"food-diary/pkg/security/gate"
)

// LoopbackBypass marks requests arriving over the loopback interface as
// internal, so the gate lets them omit Origin and Referer. Requests that do
// send either header are still checked against the allow list.
//
// The peer address is taken from RemoteAddr only. A request carrying any
// forwarding header came through a proxy, so its real client is not local
// and it never gets the bypass, even when the proxy itself is on loopback.
func LoopbackBypass(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isLoopback(r.RemoteAddr) && !forwarded(r.Header) {
				r = r.WithContext(gate.WithBypass(r.Context()))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return addr.Unmap().IsLoopback()
}

// forwardingHeaders are set by reverse proxies on the way in.
var forwardingHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Real-IP", "X-Forwarded-Host"}

func forwarded(h http.Header) bool {
	for _, name := range forwardingHeaders {
		if len(h.Values(name)) > 0 {
			return true
		}
	}
	return false
}
