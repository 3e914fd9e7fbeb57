package storage

import (
	"path"
	"strings"
)

// Match reports whether name matches pattern. Segments are separated by '/';
// "**" matches any number of segments, other segments use path.Match rules.
func Match(pattern, name string) bool {
	return matchSegments(splitPath(pattern), splitPath(name))
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			rest := pat[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pat[0], name[0])
		if err != nil || !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// staticPrefix returns the part of pattern before its first wildcard, cut
// back to a segment boundary. Object stores list by this prefix.
func staticPrefix(pattern string) string {
	i := strings.IndexAny(pattern, "*?[")
	if i < 0 {
		return pattern
	}
	prefix := pattern[:i]
	if j := strings.LastIndex(prefix, "/"); j >= 0 {
		return prefix[:j+1]
	}
	return ""
}
