package httputil

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/platinummonkey/warden/pkg/contextkeys"
)

// TrustedProxies are the networks whose X-Forwarded-For and X-Real-IP headers are
// believed. Requests from any other peer are keyed on the connection address.
type TrustedProxies []*net.IPNet

// ParseTrustedProxies parses CIDR blocks or bare addresses
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var proxies TrustedProxies
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 8 * net.IPv6len
			if v4 := ip.To4(); v4 != nil {
				ip, bits = v4, 8*net.IPv4len
			}
			proxies = append(proxies, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		proxies = append(proxies, network)
	}
	return proxies, nil
}

// Contains reports whether ip belongs to a trusted network
func (t TrustedProxies) Contains(ip net.IP) bool {
	for _, network := range t {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Resolve returns the originating client address. Forwarding headers are only read
// when the peer is trusted; X-Forwarded-For is walked right to left and the first
// untrusted hop wins.
func (t TrustedProxies) Resolve(r *http.Request) string {
	peer := peerIP(r)
	if ip := net.ParseIP(peer); ip == nil || !t.Contains(ip) {
		return peer
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		client := ""
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			client = ip.String()
			if !t.Contains(ip) {
				break
			}
		}
		if client != "" {
			return client
		}
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer
}

// ClientIPMiddleware resolves the client address once and stores it for ClientIP
func ClientIPMiddleware(trusted TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := contextkeys.WithClientIP(r.Context(), trusted.Resolve(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the address resolved by ClientIPMiddleware, or the connection
// address when the middleware did not run.
func ClientIP(r *http.Request) string {
	if ip := contextkeys.GetClientIP(r.Context()); ip != "" {
		return ip
	}
	return peerIP(r)
}

func peerIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
