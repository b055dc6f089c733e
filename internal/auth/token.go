package auth

import "crypto/subtle"

// TokenEqual compares a presented admin token against the configured one in
// constant time. An empty configured token never matches: an operator who
// forgot to set ADMIN_TOKEN must not leave the panel open.
func TokenEqual(presented, configured string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) == 1
}
