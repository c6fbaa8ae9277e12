package instrumentation

import "strings"

// ExtractUserDomain reduces an email-like identity to its domain so it can be
// used as a low-cardinality label. Identities without a domain map to
// "unknown".
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(identity string) string {
	at := strings.LastIndex(identity, "@")
	if at < 0 || at == len(identity)-1 {
		return "unknown"
	}
	return identity[at+1:]
}
