package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type clientIPKey struct{}

// ProxyTrust resolves the client address once per request. Forwarding
// headers are honoured only when the socket peer is a listed proxy.
type ProxyTrust struct {
	networks []*net.IPNet
}

// NewProxyTrust accepts CIDRs or bare IPs. Unparseable entries are skipped;
// config validation rejects them before this point.
func NewProxyTrust(proxies []string) *ProxyTrust {
	trust := &ProxyTrust{}
	for _, entry := range proxies {
		if network := parseNetwork(entry); network != nil {
			trust.networks = append(trust.networks, network)
		}
	}
	return trust
}

func parseNetwork(entry string) *net.IPNet {
	entry = strings.TrimSpace(entry)
	if _, network, err := net.ParseCIDR(entry); err == nil {
		return network
	}
	ip := net.ParseIP(entry)
	if ip == nil {
		return nil
	}
	bits := 128
	if ip.To4() != nil {
		ip = ip.To4()
		bits = 32
	}
	return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
}

func (p *ProxyTrust) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), clientIPKey{}, p.Resolve(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Resolve walks X-Forwarded-For from the nearest hop and returns the first
// address that is not a trusted proxy.
func (p *ProxyTrust) Resolve(r *http.Request) string {
	peer := socketHost(r)
	if !p.trusted(peer) {
		return peer
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); strings.TrimSpace(forwarded) != "" {
		hops := strings.Split(forwarded, ",")
		client := peer
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if net.ParseIP(hop) == nil {
				break
			}
			client = hop
			if !p.trusted(hop) {
				break
			}
		}
		return client
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
		return realIP
	}

	return peer
}

func (p *ProxyTrust) trusted(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, network := range p.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the address resolved by ProxyTrust, or the socket host
// when the request did not pass through it.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip
	}
	return socketHost(r)
}

func socketHost(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote == "" {
		return "unknown"
	}
	return remote
}
