package proxy

import (
	"net/http"
	"regexp"
	"strings"
)

var browserUAPattern = regexp.MustCompile(`(?i)Mozilla|Chrome|Safari|Firefox|Edge`)

// isBrowser reports whether a request looks like it came from an interactive
// browser rather than an API client. Browsers get the paywall page instead of
// the JSON 402.
func isBrowser(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		return true
	}
	return browserUAPattern.MatchString(r.Header.Get("User-Agent"))
}
