package strutil

import "strings"

// NormalizeLower trims surrounding whitespace and converts to lower case.
// Use for config modes and other tokens where case is not significant.
func NormalizeLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// CollapseSpace joins the whitespace-separated fields of value with single
// spaces, removing newlines and tabs left over from stripped markup.
func CollapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// TitleKey is the comparison form of a headline: collapsed and lower case.
func TitleKey(title string) string {
	return strings.ToLower(CollapseSpace(title))
}
