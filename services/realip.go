package services

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// ParseTrustedProxies reads a comma separated list of IPs and CIDRs.
// Invalid entries are logged and skipped.
func ParseTrustedProxies(list string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				slog.Warn("Ignoring invalid trusted proxy", "entry", entry)
				continue
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, cidr, err := net.ParseCIDR(entry)
		if err != nil {
			slog.Warn("Ignoring invalid trusted proxy", "entry", entry, "error", err)
			continue
		}
		nets = append(nets, cidr)
	}
	return nets
}

func isTrusted(ip net.IP, trusted []*net.IPNet) bool {
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// TrustedRealIP replaces RemoteAddr with the forwarded client address, but
// only when the request arrived from a trusted proxy. X-Forwarded-For is
// walked right to left and the first hop outside the trusted set wins.
// With no trusted proxies, forwarding headers are ignored.
func TrustedRealIP(trusted []*net.IPNet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(trusted) > 0 && isTrusted(net.ParseIP(clientIP(r)), trusted) {
				if ip := forwardedFor(r, trusted); ip != "" {
					r.RemoteAddr = net.JoinHostPort(ip, "0")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedFor(r *http.Request, trusted []*net.IPNet) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		var leftmost string
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				// Stop at a garbled hop.
				return leftmost
			}
			if !isTrusted(ip, trusted) {
				return ip.String()
			}
			leftmost = ip.String()
		}
		return leftmost
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return ""
}
