// Package search matches display names against free-form search text
package search

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// Fold returns s case-folded for case-insensitive comparisons
func Fold(s string) string {
	return folder.String(s)
}

// Contains returns true if name contains text, ignoring case. Empty text matches everything.
func Contains(name, text string) bool {
	if text == "" {
		return true
	}
	return strings.Contains(Fold(name), Fold(text))
}
