package organizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var invalidNameChars = []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}

// SanitizeName turns a comic name or chapter label into a usable directory
// name. The result is NFC normalized so names built from descriptors match
// names already on disk. It returns "" when nothing usable is left.
func SanitizeName(name string) string {
	result := norm.NFC.String(name)
	for _, char := range invalidNameChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, result)
	// Trim spaces and dots from ends
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	return strings.TrimSpace(result)
}

// TargetName returns the directory name a classified node is renamed to.
// A chapter nested under its own comic only needs its label; anywhere else
// the comic name is prefixed to keep chapters of different comics apart.
func TargetName(c Classification, parent Classification, hasParent bool) string {
	switch c.Kind {
	case KindComic:
		return SanitizeName(c.ComicName)
	case KindChapter:
		if c.ComicName == "" {
			return SanitizeName(c.ChapterLabel)
		}
		if hasParent && parent.Classified() && parent.ComicName == c.ComicName {
			return SanitizeName(c.ChapterLabel)
		}
		return SanitizeName(c.ComicName + "-" + c.ChapterLabel)
	default:
		return ""
	}
}
