//go:build !windows

package config

import (
	"os"

	"golang.org/x/term"
)

// IsTerminal reports whether stream is attached to a terminal.
func IsTerminal(stream *os.File) bool {
	return term.IsTerminal(int(stream.Fd()))
}

// EnableColorOutput checks if colorized output is possible.
func EnableColorOutput(stream *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || os.Getenv("TERM") == "dumb" {
		return false
	}
	return IsTerminal(stream)
}
