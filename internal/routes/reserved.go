package routes

// reservedSlugs are path segments that can never resolve to a tenant or
// endpoint. They shadow current and future control-plane routes; a tenant
// registered under one of these would be unreachable anyway.
var reservedSlugs = map[string]struct{}{
	"admin":        {},
	"api":          {},
	"app":          {},
	"assets":       {},
	"auth":         {},
	"billing":      {},
	"dashboard":    {},
	"docs":         {},
	"health":       {},
	"internal":     {},
	"login":        {},
	"logout":       {},
	"metrics":      {},
	"register":     {},
	"relay-health": {},
	"settings":     {},
	"static":       {},
	"status":       {},
	"www":          {},
}

// IsReserved reports whether a slug collides with the reserved set.
func IsReserved(slug string) bool {
	_, ok := reservedSlugs[slug]
	return ok
}
