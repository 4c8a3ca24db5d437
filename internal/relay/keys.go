package relay

import "strings"

// GroupKey is the routing key every identified session is subscribed to.
const GroupKey = "group"

// keySeparator joins the two halves of a private key. It is a reserved
// character: ValidIdentity rejects names containing it, so "a_b"+"c" and
// "a"+"b_c" can never derive the same key.
const keySeparator = "\x1f"

// PrivateKey derives the routing key for the unordered identity pair {a, b}.
// The pair is sorted lexicographically, so PrivateKey(a, b) == PrivateKey(b, a).
func PrivateKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + keySeparator + b
}

// ValidIdentity reports whether name is usable as a display identity.
func ValidIdentity(name string) bool {
	return name != "" && !strings.Contains(name, keySeparator)
}
