package bot

import "strings"

// ParseCommand splits a prefixed bot command ("<prefix>name args...") into
// its lower-cased name and the remaining argument text.
func ParseCommand(prefix, text string) (name, args string, ok bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return "", "", false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, prefix))
	if rest == "" {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}
