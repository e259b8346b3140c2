package model

import "strings"

// DefaultStripChars are removed from titles before comparison.
const DefaultStripChars = "®™©@:"

// Normalizer turns display titles into catalog match keys.
type Normalizer struct {
	StripChars string
}

// DefaultNormalizer strips DefaultStripChars.
var DefaultNormalizer = Normalizer{StripChars: DefaultStripChars}

// Normalize lowercases, drops every rune in StripChars and trims whitespace.
func (n Normalizer) Normalize(title string) string {
	lowered := strings.ToLower(title)
	stripped := strings.Map(func(r rune) rune {
		if strings.ContainsRune(n.StripChars, r) {
			return -1
		}
		return r
	}, lowered)
	return strings.TrimSpace(stripped)
}

// NormalizeTitle normalizes with the default character set.
func NormalizeTitle(title string) string {
	return DefaultNormalizer.Normalize(title)
}
