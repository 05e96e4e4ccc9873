// Package sed implements retroactive message correction.
//
// Every ordinary chat line is remembered in a small per-conversation ring
// (25 lines by default). A line of the form s/find/replace/flags (any of
// / | \ ! . , as the delimiter) is a correction command: the Corrector walks
// the remembered lines newest first, runs GNU sed against each one and posts
// the first line that actually changed.
//
// Parsing of the substitution language is left to sed itself, which runs in
// --sandbox mode with a hard timeout. A malformed expression is reported to
// the invoker once and the remaining lines are not tried.
package sed
