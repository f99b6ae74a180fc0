// Package ui provides terminal output helpers for amsync.
package ui

import (
	"strings"

	"github.com/fatih/color"
)

// Color function types for styled output.
var (
	// Success is used for successful operations (green).
	Success = color.New(color.FgGreen).SprintFunc()
	// Error is used for errors and failures (red).
	Error = color.New(color.FgRed).SprintFunc()
	// Warning is used for warnings and cautions (yellow).
	Warning = color.New(color.FgYellow).SprintFunc()
	// Info is used for informational messages (cyan).
	Info = color.New(color.FgCyan).SprintFunc()
	// Bold is used for emphasis (bold white).
	Bold = color.New(color.Bold).SprintFunc()
	// Dim is used for secondary information (faint).
	Dim = color.New(color.Faint).SprintFunc()
	// Header is used for table headers and diff hunks (bold cyan).
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Status symbols with colors.
const (
	SymbolSuccess   = "✓"
	SymbolError     = "✗"
	SymbolWarning   = "⚠"
	SymbolSkipped   = "-"
	SymbolUnchanged = "="
)

func status(style func(...any) string, symbol, msg string) string {
	if msg == "" {
		return style(symbol)
	}
	return style(symbol) + " " + msg
}

// StatusSuccess returns a green checkmark with optional message.
func StatusSuccess(msg string) string {
	return status(Success, SymbolSuccess, msg)
}

// StatusError returns a red X with optional message.
func StatusError(msg string) string {
	return status(Error, SymbolError, msg)
}

// StatusWarning returns a yellow warning with optional message.
func StatusWarning(msg string) string {
	return status(Warning, SymbolWarning, msg)
}

// StatusSkipped returns a dimmed skip symbol with optional message.
func StatusSkipped(msg string) string {
	return status(Dim, SymbolSkipped, msg)
}

// StatusUnchanged returns a dimmed equals sign with optional message.
func StatusUnchanged(msg string) string {
	return status(Dim, SymbolUnchanged, msg)
}

// ColorizeDiff colors the lines of a unified diff: file headers bold, hunk
// headers cyan, removals red and additions green.
func ColorizeDiff(diff string) string {
	if !IsColorEnabled() {
		return diff
	}

	lines := strings.SplitAfter(diff, "\n")
	var b strings.Builder
	inHunk := false
	for _, line := range lines {
		body := strings.TrimSuffix(line, "\n")
		nl := line[len(body):]
		switch {
		case strings.HasPrefix(body, "@@"):
			inHunk = true
			b.WriteString(Header(body))
		case !inHunk:
			b.WriteString(Bold(body))
		case strings.HasPrefix(body, "+"):
			b.WriteString(Success(body))
		case strings.HasPrefix(body, "-"):
			b.WriteString(Error(body))
		default:
			b.WriteString(body)
		}
		b.WriteString(nl)
	}
	return b.String()
}

// DisableColors disables all color output.
// This is useful for piping output or for users who prefer no colors.
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output.
func EnableColors() {
	color.NoColor = false
}

// IsColorEnabled returns whether colors are currently enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}
