package entities

import "strings"

// AnonymousPrincipal is the caller identity used when none is supplied.
const AnonymousPrincipal = "anonymous"

// IsAnonymous reports whether principal identifies no particular caller.
func IsAnonymous(principal string) bool {
	p := strings.TrimSpace(principal)
	return p == "" || p == AnonymousPrincipal
}
