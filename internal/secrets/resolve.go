package secrets

import (
	"context"
	"regexp"

	"github.com/relay402/server/internal/logger"
)

// refPattern matches {{SECRET:NAME}} references. Names are uppercase
// alphanumeric with underscores, not starting with a digit, at most 64 chars.
var refPattern = regexp.MustCompile(`\{\{SECRET:([A-Z_][A-Z0-9_]{0,63})\}\}`)

// LookupFunc resolves a secret name to its plaintext value.
// It returns false when the secret does not exist or cannot be decrypted.
type LookupFunc func(ctx context.Context, name string) (string, bool)

// ResolveReferences replaces every {{SECRET:NAME}} reference in the input with
// the secret's value. Unknown or unresolvable references are left in place
// verbatim and logged; resolution never aborts the request and never
// substitutes an error marker that could leak into an upstream call.
func ResolveReferences(ctx context.Context, input string, lookup LookupFunc) string {
	if input == "" || lookup == nil {
		return input
	}

	return refPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := refPattern.FindStringSubmatch(match)[1]
		value, ok := lookup(ctx, name)
		if !ok {
			log := logger.FromContext(ctx)
			log.Warn().
				Str("secret", name).
				Msg("secrets.unresolved_reference")
			return match
		}
		return value
	})
}

// HasReferences reports whether the input contains any secret references.
func HasReferences(input string) bool {
	return refPattern.MatchString(input)
}
