package config

import (
	"fmt"
	"io"
	"os"
)

// exit is swapped in tests that cannot use the subprocess pattern.
var exit = os.Exit

// Exitf writes a formatted error message to stderr and exits with code 1.
// It provides a consistent fatal-exit pattern for CLI entry points.
func Exitf(format string, args ...any) {
	ExitfTo(os.Stderr, 1, format, args...)
}

// ExitfTo writes a formatted message to w and exits with the given code.
func ExitfTo(w io.Writer, code int, format string, args ...any) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, format+"\n", args...)
	exit(code)
}
