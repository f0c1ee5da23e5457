package busx

import "strings"

// reserved holds the names a child namespace may not take: the bus's own
// operation names and the members every component scope exposes.
var reserved = map[string]struct{}{
	"app":        {},
	"emit":       {},
	"on":         {},
	"off":        {},
	"child":      {},
	"catch":      {},
	"report":     {},
	"name":       {},
	"env":        {},
	"logger":     {},
	"shutdown":   {},
	"await":      {},
	"component":  {},
	"components": {},
}

// Reserved reports whether name collides with the reserved surface. The
// comparison ignores case.
func Reserved(name string) bool {
	_, ok := reserved[strings.ToLower(name)]
	return ok
}

// ReservedNames returns the reserved names in no particular order.
func ReservedNames() []string {
	names := make([]string, 0, len(reserved))
	for name := range reserved {
		names = append(names, name)
	}
	return names
}
