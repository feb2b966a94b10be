package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"food-diary/pkg/security/gate"
)

// IPExtractor finds the client address a request should be rate limited by.
type IPExtractor interface {
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor uses the TCP peer address only. It is the default:
// forwarding headers are client-controlled unless a known proxy set them.
type RemoteAddrExtractor struct{}

func (RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	addr, err := peerAddr(r.RemoteAddr)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}

// TrustedProxyConfig lists the reverse proxies whose forwarding headers are believed.
type TrustedProxyConfig struct {
	Enabled      bool
	AllowedCIDRs []netip.Prefix
}

// IsTrusted reports whether addr ("IP" or "IP:port") belongs to a trusted proxy.
func (c *TrustedProxyConfig) IsTrusted(addr string) bool {
	a, err := peerAddr(addr)
	return err == nil && c.contains(a)
}

func (c *TrustedProxyConfig) contains(a netip.Addr) bool {
	for _, p := range c.AllowedCIDRs {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// ParseTrustedProxies accepts single addresses ("10.0.0.1") and ranges
// ("172.16.0.0/12", "2001:db8::/32"). A malformed entry fails startup
// rather than silently trusting or ignoring a proxy.
func ParseTrustedProxies(enabled bool, entries []string) (*TrustedProxyConfig, error) {
	cfg := &TrustedProxyConfig{Enabled: enabled, AllowedCIDRs: []netip.Prefix{}}
	if !enabled {
		return cfg, nil
	}

	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		p, err := parseProxyEntry(e)
		if err != nil {
			return nil, err
		}
		cfg.AllowedCIDRs = append(cfg.AllowedCIDRs, p)
	}
	if len(cfg.AllowedCIDRs) == 0 {
		return nil, errors.New("trusted proxies are enabled but none are configured")
	}
	return cfg, nil
}

func parseProxyEntry(e string) (netip.Prefix, error) {
	if p, err := netip.ParsePrefix(e); err == nil {
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(e)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid trusted proxy %q: want an IP address or CIDR range", e)
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

// TrustedProxyExtractor believes X-Forwarded-For and X-Real-IP only when the
// peer is a trusted proxy.
//
// X-Forwarded-For is walked from the right, skipping trusted proxies; the
// first untrusted hop is the client. Entries left of it were written by the
// client, so rotating them cannot change the rate limit key.
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
	logger *slog.Logger
}

func NewTrustedProxyExtractor(config TrustedProxyConfig, logger *slog.Logger) *TrustedProxyExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrustedProxyExtractor{config: config, logger: logger}
}

func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	peer, err := peerAddr(r.RemoteAddr)
	if err != nil {
		return "", err
	}
	if !e.config.Enabled {
		return peer.String(), nil
	}

	if !e.config.contains(peer) {
		if r.Header.Get("X-Forwarded-For") != "" || r.Header.Get("X-Real-IP") != "" {
			e.logger.Warn("untrusted peer sent forwarding headers",
				slog.String("remote_addr", r.RemoteAddr))
		}
		return peer.String(), nil
	}

	if hops := r.Header.Values("X-Forwarded-For"); len(hops) > 0 {
		if client, ok := e.firstUntrusted(strings.Join(hops, ",")); ok {
			return client.String(), nil
		}
	}
	if a, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return a.Unmap().String(), nil
	}
	return peer.String(), nil
}

func (e *TrustedProxyExtractor) firstUntrusted(header string) (netip.Addr, bool) {
	hops := strings.Split(header, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		a, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			// Nothing left of a malformed hop can be trusted.
			return netip.Addr{}, false
		}
		a = a.Unmap()
		if !e.config.contains(a) {
			return a, true
		}
	}
	return netip.Addr{}, false
}

// GateKey adapts an IPExtractor to the gate's rate limit key function.
func GateKey(e IPExtractor) gate.KeyFunc {
	return func(r *http.Request) (string, error) {
		ip, err := e.ExtractIP(r)
		if err != nil {
			return "", err
		}
		return RateLimitKey(ip), nil
	}
}

// RateLimitKey normalises ip for use as a rate limit key. IPv6 clients are
// grouped by /64, the smallest block a single subscriber usually controls.
func RateLimitKey(ip string) string {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return ip
	}
	a = a.Unmap()
	if a.Is6() {
		if p, err := a.WithZone("").Prefix(64); err == nil {
			return p.String()
		}
	}
	return a.String()
}

// peerAddr parses "IP:port" or a bare "IP", unmapping IPv4-in-IPv6.
func peerAddr(addr string) (netip.Addr, error) {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid address format: %q", addr)
	}
	return a.Unmap(), nil
}
