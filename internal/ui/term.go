package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether the given file descriptor refers to a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// TermWidth returns the terminal width in columns, or 80 if it cannot be determined.
func TermWidth(fd uintptr) int {
	w, _, err := term.GetSize(int(fd))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// ReadPassword prompts on stderr and reads a password from the terminal
// on stdin without echo.
func ReadPassword(prompt string) (string, error) {
	os.Stderr.WriteString(prompt) //nolint:errcheck // best-effort prompt
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	os.Stderr.WriteString("\n") //nolint:errcheck // best-effort prompt
	if err != nil {
		return "", err
	}
	return string(b), nil
}
