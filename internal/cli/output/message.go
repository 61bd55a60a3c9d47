package output

import (
	"fmt"
	"io"
)

const (
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiReset  = "\033[0m"
)

// Success writes msg on its own line, green when color is set.
func Success(w io.Writer, msg string, color bool) {
	writeColored(w, ansiGreen, msg, color)
}

// Warning writes msg on its own line, yellow when color is set.
func Warning(w io.Writer, msg string, color bool) {
	writeColored(w, ansiYellow, msg, color)
}

func writeColored(w io.Writer, code, msg string, color bool) {
	if color {
		_, _ = fmt.Fprintf(w, "%s%s%s\n", code, msg, ansiReset)
		return
	}
	_, _ = fmt.Fprintln(w, msg)
}
