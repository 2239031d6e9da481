package pipeline

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// TrustedProxies is the set of peers allowed to report the client address
// through X-Forwarded-For or X-Real-IP. The zero value trusts no one.
type TrustedProxies struct {
	nets []*net.IPNet
}

// ParseTrustedProxies parses IPs and CIDRs such as "10.0.0.0/8" or "192.0.2.1".
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var tp TrustedProxies
	for _, e := range entries {
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return TrustedProxies{}, fmt.Errorf("pipeline: invalid trusted proxy %q", e)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			tp.nets = append(tp.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return TrustedProxies{}, fmt.Errorf("pipeline: invalid trusted proxy %q: %w", e, err)
		}
		tp.nets = append(tp.nets, n)
	}
	return tp, nil
}

func (tp TrustedProxies) contains(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range tp.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the client IP for r. Forwarding headers are read only when
// the connection comes from a trusted proxy; X-Forwarded-For is walked from
// the right, skipping trusted hops, so a client cannot choose its own address
// by prepending entries.
func (tp TrustedProxies) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !tp.contains(peer) {
		return peer
	}
	if s := r.Header.Get("X-Forwarded-For"); strings.TrimSpace(s) != "" {
		hops := strings.Split(s, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !tp.contains(hop) || i == 0 {
				return hop
			}
		}
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	return peer
}

// Middleware stores the client IP in the request context for rate limiting and audit.
func (tp TrustedProxies) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithClientIP(r.Context(), tp.ClientIP(r))))
	})
}

func remoteHost(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
