package ui

import (
	"fmt"
	"strings"
)

// Status symbols. Status is never conveyed by color alone.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
)

// NoValue is shown for a variable that produced no value.
const NoValue = "(no value)"

func withSymbol(symbol, msg string) string {
	return symbol + " " + msg
}

func Success(msg string) string { return withSymbol(SymbolSuccess, msg) }

func Successf(format string, args ...any) string {
	return Success(fmt.Sprintf(format, args...))
}

func Error(msg string) string { return withSymbol(SymbolError, msg) }

func Warning(msg string) string { return withSymbol(SymbolWarning, msg) }

// Header renders a section title.
func Header(msg string) string { return Bold.Render(msg) }

// FilePath renders a path in the accent color.
func FilePath(path string) string { return Accent.Render(path) }

// Hint renders secondary text.
func Hint(msg string) string { return Muted.Render(msg) }

// Value renders a resolved variable for the terminal. Nil renders as a muted
// NoValue; marker and error texts get their status symbol.
func Value(v *string) string {
	if v == nil {
		return Hint(NoValue)
	}
	if msg, ok := strings.CutPrefix(*v, "Error: "); ok {
		return Error(msg)
	}
	if strings.HasPrefix(*v, "N/A (") {
		return Warning(*v)
	}
	return *v
}

// Count renders a badge such as "(3 fields)".
func Count(n int, singular, plural string) string {
	noun := plural
	if n == 1 {
		noun = singular
	}
	return fmt.Sprintf("(%d %s)", n, noun)
}
