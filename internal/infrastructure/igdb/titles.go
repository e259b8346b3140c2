package igdb

import "strings"

// DefaultEditionSuffixes are removed by CleanTitle.
var DefaultEditionSuffixes = []string{
	"GOTY",
	"Game of the Year Edition",
	"Definitive Edition",
	"Complete Edition",
	"Enhanced Edition",
	"Remastered",
}

var markReplacer = strings.NewReplacer("®", "", "™", "", "©", "", " - ", ": ")

// CleanTitle strips trademark marks, turns " - " into ": " and removes
// edition suffixes.
func CleanTitle(title string, suffixes []string) string {
	cleaned := markReplacer.Replace(title)
	for _, s := range suffixes {
		if s == "" {
			continue
		}
		cleaned = strings.ReplaceAll(cleaned, s, "")
	}
	return strings.TrimSpace(cleaned)
}

// BaseTitle returns the text before the first colon when that colon sits
// past index 3, otherwise the title unchanged.
func BaseTitle(title string) string {
	idx := strings.Index(title, ":")
	if idx > 3 {
		return strings.TrimSpace(title[:idx])
	}
	return title
}

// escape quotes for an Apicalypse string literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
