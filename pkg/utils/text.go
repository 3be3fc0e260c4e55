// Package utils provides shared text, math, and logging helpers.
package utils

// Truncate clamps s to maxRunes characters, appending "..." when shortened.
// Counting runes keeps multibyte text (Korean labels, provider error bodies)
// from being cut mid-character. Non-positive maxRunes returns s unchanged.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
