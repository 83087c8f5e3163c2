package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reNotLettersDigits = regexp.MustCompile(`[^0-9\p{L}]+`)
	reUnderscores      = regexp.MustCompile(`_+`)
	reISBNBody         = regexp.MustCompile(`[^0-9X]+`)
	reCopySuffix       = regexp.MustCompile(`-(\d{1,3})$`)
)

func collapseUnderscores(s string) string {
	s = reUnderscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

func SanitizeTitle(input string) string {
	return TrimAndNormalize(input)
}

func SanitizeAuthor(input string) string {
	return TrimAndNormalize(input)
}

func SanitizeFullName(input string) string {
	return TrimAndNormalize(input)
}

func SanitizeCategory(input string) string {
	p := Pipeline{
		trimAndLower,
		func(s string) string { return reNotLettersDigits.ReplaceAllString(s, "_") },
		collapseUnderscores,
	}
	return p.Apply(input)
}

// SanitizeISBN strips separators from an ISBN-10/13. A trailing copy suffix
// such as "-3" is kept so per-copy ISBNs stay distinct.
func SanitizeISBN(input string) string {
	s := strings.ToUpper(strings.TrimSpace(input))
	if s == "" {
		return ""
	}

	suffix := ""
	if m := reCopySuffix.FindStringSubmatchIndex(s); m != nil {
		body := reISBNBody.ReplaceAllString(s[:m[0]], "")
		if len(body) == 10 || len(body) == 13 {
			suffix = s[m[0]:]
			s = s[:m[0]]
		}
	}

	return reISBNBody.ReplaceAllString(s, "") + suffix
}

func SanitizeEmail(input string) string {
	return trimAndLower(input)
}

func SanitizeUsername(input string) string {
	return strings.TrimSpace(input)
}

func SanitizeNotes(input string) string {
	return strings.TrimSpace(input)
}
