// Package prompt asks the operator for confirmation on the terminal.
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

var (
	// ErrAborted means the operator pressed Ctrl+C.
	ErrAborted = errors.New("aborted")

	// ErrNotInteractive means a confirmation was needed but stdin is not a
	// terminal.
	ErrNotInteractive = errors.New("confirmation required: stdin is not a terminal, use --force")
)

// isInteractive is replaced in tests.
var isInteractive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// run is replaced in tests.
var run = func(p *promptui.Prompt) (string, error) {
	return p.Run()
}

// Confirm asks a yes/no question. An empty answer picks def.
func Confirm(label string, def bool) (bool, error) {
	if !isInteractive() {
		return false, ErrNotInteractive
	}

	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	answer, err := run(&promptui.Prompt{
		Label:     label + " [" + hint + "]",
		IsConfirm: true,
	})

	switch {
	case errors.Is(err, promptui.ErrInterrupt):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		// promptui reports a "no" as ErrAbort.
		return false, nil
	case err != nil && answer == "":
		return def, nil
	case err != nil:
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	case "":
		return def, nil
	}
	return false, nil
}

// ConfirmWithForce skips the question when force is set. Otherwise it
// defaults to no.
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}

// IsAborted reports whether err came from an interrupted prompt.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}
