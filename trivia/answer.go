/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import "strings"

const (
	italicOpen  = "<i>"
	italicClose = "</i>"
)

// CleanAnswer strips the italics wrapper the service puts around some
// responses, e.g. "<i>Hamlet</i>". Anything else passes through unchanged.
func CleanAnswer(s string) string {
	if len(s) < len(italicOpen)+len(italicClose) {
		return s
	}
	if !strings.HasPrefix(s, italicOpen) || !strings.HasSuffix(s, italicClose) {
		return s
	}

	return s[len(italicOpen) : len(s)-len(italicClose)]
}
