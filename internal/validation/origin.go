package validation

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// ValidateOrigin validates WebSocket origin for CSRF protection. An allowed
// entry matches either the whole origin or its host:port.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin format: %w", err)
	}

	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return fmt.Errorf("invalid origin scheme '%s': only http and https are allowed", originURL.Scheme)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || originURL.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin '%s' is not in allowed origins list", origin)
}

// LocalOrigins lists the host:port pairs a browser uses for a server
// listening on host and port.
func LocalOrigins(host string, port int) []string {
	p := strconv.Itoa(port)
	origins := []string{
		net.JoinHostPort("localhost", p),
		net.JoinHostPort("127.0.0.1", p),
	}
	if host != "" && host != "localhost" && host != "127.0.0.1" && host != "0.0.0.0" {
		origins = append(origins, net.JoinHostPort(host, p))
	}
	return origins
}
