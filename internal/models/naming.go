package models

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var symbolReplacer = strings.NewReplacer(
	"º", "o",
	"ª", "a",
	"×", "x",
	"@", "_at_",
	"&", "_and_",
	"+", "_plus_",
	"=", "_equals_",
	"%", "_percent_",
	"#", "_hash_",
	"?", "_question_",
	"/", "_slash_",
	`\`, "_backslash_",
	":", "_colon_",
	";", "_semicolon_",
	"<", "_lt_",
	">", "_gt_",
	"|", "_pipe_",
	"*", "_star_",
	`"`, "_quote_",
	"'", "_apostrophe_",
)

var (
	spaceRun      = regexp.MustCompile(` +`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// SanitizeFilename turns free text into an ASCII-only token made of letters,
// digits, '-' and '_'. Accents are stripped, reserved symbols become words.
func SanitizeFilename(text string) string {
	stripAccents := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripAccents, text)
	if err != nil {
		out = text
	}

	out = symbolReplacer.Replace(out)
	out = strings.Map(func(r rune) rune {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			return r
		case r == '-' || r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, out)

	out = spaceRun.ReplaceAllString(out, "_")
	out = underscoreRun.ReplaceAllString(out, "_")
	return strings.Trim(out, "_")
}
