// Package shellutil provides shell quoting for building agent command
// lines.
package shellutil

import "strings"

// Quote single-quotes a string for safe use in a shell command. Single
// quotes preserve everything literally, including newlines, dollar
// signs, and backticks. An embedded single quote closes the quoted
// span, emits an escaped quote, and reopens it ('\'').
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
