package utils

import "unicode/utf8"

// Excerpt returns at most max characters of s.
// Cuts on rune boundaries so a truncated upstream body stays valid UTF-8.
func Excerpt(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// ExcerptBytes is Excerpt for raw response bodies
func ExcerptBytes(b []byte, max int) string {
	return Excerpt(string(b), max)
}
