package upstream

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL checks that an upstream URL is usable as a forwarding target.
// Loopback hosts and non-http(s) schemes are rejected unless explicitly
// allowed, so a misconfigured endpoint cannot probe the relay's own network.
func ValidateURL(raw string, allowLoopback, allowOtherSchemes bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid upstream url: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
	case "":
		return fmt.Errorf("upstream url missing scheme")
	default:
		if !allowOtherSchemes {
			return fmt.Errorf("upstream scheme %q not allowed", u.Scheme)
		}
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("upstream url missing host")
	}

	if !allowLoopback && isLoopbackHost(host) {
		return fmt.Errorf("loopback upstream host %q not allowed", host)
	}

	return nil
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
