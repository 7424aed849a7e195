package gateway

import (
	"net"
	"net/http"
	"strings"

	"schemagate/internal/tenant/models"
)

// SignalsFromRequest extracts the identification signals the pipeline
// consumes from one HTTP request.
func SignalsFromRequest(r *http.Request) models.Signals {
	sig := models.Signals{
		Host:          stripPort(r.Host),
		APIName:       r.Header.Get("X-Api-Name"),
		DatabaseID:    r.Header.Get("X-Database-Id"),
		MetaSchema:    truthy(r.Header.Get("X-Meta-Schema")),
		Authorization: r.Header.Get("Authorization"),
		Origin:        r.Header.Get("Origin"),
		RemoteIP:      clientIP(r),
	}

	if raw := r.Header.Get("X-Schemata"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sig.Schemas = append(sig.Schemas, s)
			}
		}
	}

	if r.Method == http.MethodOptions {
		sig.RequestedMethod = r.Header.Get("Access-Control-Request-Method")
		if raw := r.Header.Get("Access-Control-Request-Headers"); raw != "" {
			for _, h := range strings.Split(raw, ",") {
				if h = strings.TrimSpace(h); h != "" {
					sig.RequestedHeaders = append(sig.RequestedHeaders, h)
				}
			}
		}
	}

	return sig
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
