// Package dnsname classifies an input string as an IPv4 literal, an IPv6 literal, a candidate host
// name, or invalid, per spec 4.1. Host-name validity follows the classic RFC1035 label grammar;
// matching is case-insensitive and all further use of a name is expected to go through Lowercase.
package dnsname

import (
	"net/netip"
	"strings"
)

// Class is the result of classifying an input string.
type Class int

const (
	Invalid Class = iota
	IP4Literal
	IP6Literal
	Hostname
)

const maxNameLength = 253
const maxLabelLength = 63

// Classify determines whether name is an IPv4 literal, an IPv6 literal, a syntactically valid host
// name, or none of the above.
func Classify(name string) Class {
	if len(name) == 0 {
		return Invalid
	}

	if addr, err := netip.ParseAddr(name); err == nil {
		if addr.Is4() || addr.Is4In6() {
			return IP4Literal
		}
		return IP6Literal
	}

	if isValidHostname(name) {
		return Hostname
	}

	return Invalid
}

// isValidHostname applies the label grammar from spec 4.1: total length <= 253, one or more labels
// separated by ".", each label matching [A-Za-z0-9]([A-Za-z0-9-]{0,61}[A-Za-z0-9])?.
func isValidHostname(name string) bool {
	if len(name) > maxNameLength {
		return false
	}

	labels := strings.Split(name, ".")
	for _, label := range labels {
		if !isValidLabel(label) {
			return false
		}
	}

	return true
}

func isValidLabel(label string) bool {
	n := len(label)
	if n == 0 || n > maxLabelLength {
		return false
	}
	if !isAlnum(label[0]) || !isAlnum(label[n-1]) {
		return false
	}
	for i := 1; i < n-1; i++ {
		c := label[i]
		if !isAlnum(c) && c != '-' {
			return false
		}
	}

	return true
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// Lowercase returns name with all ASCII letters folded to lower case. The resolver lowercases every
// name before it's used as a cache or hosts-map key, per spec 4.1.
func Lowercase(name string) string {
	return strings.ToLower(name)
}
