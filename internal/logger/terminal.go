package logger

import "golang.org/x/term"

// isTerminal reports whether fd refers to a terminal that can render colors.
func isTerminal(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
