// CLAUDE:SUMMARY Flags secret-looking text: private keys, known API key shapes, high-entropy mixed-class tokens.
package detect

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	awsKeyRe    = regexp.MustCompile(`AKIA[0-9A-Z]{16}`)
	stripeKeyRe = regexp.MustCompile(`(?:sk|pk)_(?:test|live)_[0-9a-zA-Z]{24}`)
	googleKeyRe = regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`)

	upperRe  = regexp.MustCompile(`[A-Z]`)
	lowerRe  = regexp.MustCompile(`[a-z]`)
	digitRe  = regexp.MustCompile(`\d`)
	symbolRe = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

// Sensitive reports whether text looks like secret material: private key
// blocks, known API key shapes, or a single high-entropy token mixing
// character classes. Callers decide what to do with the flag; email and
// phone classifications override it to false.
func Sensitive(text string) bool {
	if text == "" {
		return false
	}

	if strings.Contains(text, "PRIVATE KEY-----") {
		return true
	}
	if awsKeyRe.MatchString(text) || stripeKeyRe.MatchString(text) || googleKeyRe.MatchString(text) {
		return true
	}

	// High-entropy single token: no whitespace, bounded length, all four
	// character classes present.
	token := strings.TrimSpace(text)
	n := utf8.RuneCountInString(token)
	if n <= 12 || n >= 128 {
		return false
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return false
	}
	return upperRe.MatchString(token) &&
		lowerRe.MatchString(token) &&
		digitRe.MatchString(token) &&
		symbolRe.MatchString(token)
}
