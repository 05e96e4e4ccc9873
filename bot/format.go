package bot

import "github.com/lrstanley/girc"

// Only the codes go through girc.Fmt; user text is concatenated untouched so
// braces in chat are never taken for format codes.
var (
	codeBold  = girc.Fmt("{bold}")
	codeReset = girc.Fmt("{reset}")
)

// Bold wraps s in IRC bold codes.
func Bold(s string) string {
	return codeBold + s + codeBold
}

// Colorize renders s in the given girc color name (e.g. "red") followed by a
// formatting reset.
func Colorize(color, s string) string {
	return girc.Fmt("{"+color+"}") + s + codeReset
}

// Unstyle removes IRC formatting codes.
func Unstyle(s string) string {
	return girc.StripRaw(s)
}
