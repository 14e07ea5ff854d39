package utils

import "strings"

// MatchToken checks a concrete permission token ("documents:read") against a
// role permission pattern. Patterns may use '*' for a whole segment
// ("documents:*", "*:read", "*:*") or as a prefix wildcard within a segment
// ("doc*:read").
func MatchToken(value, pattern string) bool {
	if pattern == "*" || pattern == value {
		return true
	}
	vType, vAction, vOK := strings.Cut(value, ":")
	pType, pAction, pOK := strings.Cut(pattern, ":")
	if vOK != pOK {
		return false
	}
	if !pOK {
		return matchSegment(value, pattern)
	}
	return matchSegment(vType, pType) && matchSegment(vAction, pAction)
}

// MatchAction checks one action against a pattern that may end in '*'.
func MatchAction(pattern, action string) bool {
	return matchSegment(action, pattern)
}

func matchSegment(value, pattern string) bool {
	if pattern == "*" || pattern == value {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, pattern[:len(pattern)-1])
	}
	return false
}
