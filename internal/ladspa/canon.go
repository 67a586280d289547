package ladspa

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// canonify turns a free-form name into an identifier: compatibility
// decomposed, diacritics dropped, lower case, runs of anything but ASCII
// letters and digits collapsed into one underscore.
func canonify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range norm.NFKD.String(s) {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pending = true
		}
	}
	if b.Len() == 0 {
		return "x"
	}
	return b.String()
}

// TypeName returns the graph type name of a plugin label.
func TypeName(label string) string {
	return "ladspa." + canonify(label)
}
