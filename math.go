package main

import "strings"

// translateMath converts a raw TeX expression from the platform's math markup
// into Markdown-embeddable math text. Inline expressions become $...$ and
// display expressions become $$ blocks on their own lines. Expressions
// carrying \tag{...} are always promoted to display mode because \tag is only
// valid there.
func translateMath(tex string, display bool) string {
	tex = strings.TrimSpace(tex)
	if strings.Contains(tex, `\tag{`) {
		display = true
	}

	escaped := escapeMathText(tex)
	if display {
		return "$$\n" + escaped + "\n$$"
	}
	return "$" + escaped + "$"
}

// escapeMathText escapes the characters Markdown would otherwise swallow
// inside a math expression. Backslash-led pairs are copied verbatim so LaTeX
// commands like \frac and already-escaped characters survive untouched, which
// also makes a second pass over the output a no-op. Bare underscores and
// asterisks gain a backslash. Everything else passes through, so malformed
// input still yields output.
func escapeMathText(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\':
			b.WriteByte('\\')
			if i+1 < len(s) {
				i++
				b.WriteByte(s[i])
			} else {
				// A dangling trailing backslash would escape whatever
				// follows in the rendered document.
				b.WriteByte('\\')
			}
		case c == '_' || c == '*':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
