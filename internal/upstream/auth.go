// Package upstream assembles the outbound request: target URL, query merging,
// and injected credentials.
package upstream

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/relay402/server/internal/secrets"
	"github.com/relay402/server/internal/storage"
)

// BuildAuth produces the headers and query parameters that authenticate an
// endpoint to its upstream. Every configured value passes through secret
// reference resolution first.
func BuildAuth(ctx context.Context, ep storage.Endpoint, lookup secrets.LookupFunc) (http.Header, url.Values, error) {
	headers := make(http.Header)
	query := make(url.Values)

	resolve := func(v string) string {
		return secrets.ResolveReferences(ctx, v, lookup)
	}

	switch ep.AuthKind {
	case storage.AuthNone, "":

	case storage.AuthBearer:
		token := resolve(ep.AuthConfig["token"])
		if token == "" {
			return nil, nil, fmt.Errorf("bearer auth requires a token")
		}
		headers.Set("Authorization", "Bearer "+token)

	case storage.AuthHeaderKey:
		name := ep.AuthConfig["header"]
		if name == "" {
			name = "X-API-Key"
		}
		value := resolve(ep.AuthConfig["value"])
		if value == "" {
			return nil, nil, fmt.Errorf("header-key auth requires a value")
		}
		headers.Set(name, value)

	case storage.AuthQueryKey:
		name := ep.AuthConfig["param"]
		if name == "" {
			name = "api_key"
		}
		value := resolve(ep.AuthConfig["value"])
		if value == "" {
			return nil, nil, fmt.Errorf("query-key auth requires a value")
		}
		query.Set(name, value)

	case storage.AuthBasic:
		user := resolve(ep.AuthConfig["username"])
		pass := resolve(ep.AuthConfig["password"])
		if user == "" && pass == "" {
			return nil, nil, fmt.Errorf("basic auth requires credentials")
		}
		cred := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
		headers.Set("Authorization", "Basic "+cred)

	case storage.AuthCustomHeaders:
		for name, value := range ep.AuthConfig {
			resolved := resolve(value)
			if resolved == "" {
				continue
			}
			headers.Set(name, resolved)
		}

	default:
		return nil, nil, fmt.Errorf("unknown auth kind %q", ep.AuthKind)
	}

	return headers, query, nil
}

// BuildTargetURL joins the endpoint's upstream URL with the request's
// remaining path and merges query parameters. Auth query parameters win over
// inbound ones of the same name.
func BuildTargetURL(ep storage.Endpoint, rest string, inboundQuery url.Values, authQuery url.Values) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(ep.UpstreamURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse upstream url: %w", err)
	}

	if rest != "" {
		if !strings.HasPrefix(rest, "/") {
			rest = "/" + rest
		}
		base.Path = strings.TrimSuffix(base.Path, "/") + rest
	}

	merged := make(url.Values)
	for k, vs := range inboundQuery {
		merged[k] = vs
	}
	for k, vs := range authQuery {
		merged[k] = vs
	}
	base.RawQuery = merged.Encode()

	return base.String(), nil
}
