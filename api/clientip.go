package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"gatehouse/session"
)

// clientIP returns the client address for rate limiting, fingerprinting,
// and risk scoring.
//
// Proxy headers (X-Forwarded-For, Forwarded, X-Real-IP) are only honored
// when trusted proxies are configured AND the request's RemoteAddr falls
// within one of the trusted CIDR ranges; otherwise untrusted clients could
// spoof their source address through headers. With no trusted proxies
// configured, RemoteAddr is always used.
func (a *API) clientIP(r *http.Request) string {
	remoteIP, _ := parseIPCandidate(r.RemoteAddr)

	proxyTrusted := false
	if len(a.trustedProxies) > 0 && remoteIP != "" {
		if addr, err := netip.ParseAddr(remoteIP); err == nil {
			for _, prefix := range a.trustedProxies {
				if prefix.Contains(addr) {
					proxyTrusted = true
					break
				}
			}
		}
	}

	if proxyTrusted {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip, ok := parseIPCandidate(part); ok {
					return ip
				}
			}
		}
		if fwd := strings.TrimSpace(r.Header.Get("Forwarded")); fwd != "" {
			for _, elem := range strings.Split(fwd, ",") {
				for _, param := range strings.Split(elem, ";") {
					param = strings.TrimSpace(param)
					if !strings.HasPrefix(strings.ToLower(param), "for=") {
						continue
					}
					if ip, ok := parseIPCandidate(param[4:]); ok {
						return ip
					}
				}
			}
		}
		if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
			if ip, ok := parseIPCandidate(xrip); ok {
				return ip
			}
		}
	}

	return remoteIP
}

// requestContext assembles the session request context from the resolved
// client IP and the fingerprint-bearing headers.
func (a *API) requestContext(r *http.Request) session.RequestContext {
	return session.RequestContext{
		ClientIP:       a.clientIP(r),
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		AcceptEncoding: r.Header.Get("Accept-Encoding"),
		SecCHUA:        r.Header.Get("Sec-CH-UA"),
		SecCHUAMobile:  r.Header.Get("Sec-CH-UA-Mobile"),
		SecCHPlatform:  r.Header.Get("Sec-CH-UA-Platform"),
	}
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	if s == "" {
		return "", false
	}

	// RFC 7239 quoted IPv6 may appear as [::1]:1234.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	// Drop zone if any (e.g. fe80::1%eth0).
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String(), true
	}
	return "", false
}

// ParseTrustedProxies converts CIDR strings (bare IPs allowed) into
// prefixes for WithTrustedProxies.
func ParseTrustedProxies(cidrs []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, "/") {
			addr, err := netip.ParseAddr(c)
			if err != nil {
				return nil, err
			}
			out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, err
		}
		out = append(out, prefix)
	}
	return out, nil
}
