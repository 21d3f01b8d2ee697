// CLAUDE:SUMMARY Marker-scoring heuristic deciding whether text is source code, plus per-language hint scoring.
package detect

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Markers whose presence suggests source code. Two hits classify as code,
// so scoring stops early at 2.
var codeMarkers = compileAll(
	// python
	`\bdef\s+\w+\s*\(`, `\bclass\s+\w+`, `\bimport\s+\w+`, `\bfrom\s+\w+\s+import\b`,
	`\bif\s+__name__\s*==`, `\bself\.\w+`,
	// javascript / typescript
	`\bfunction\s+\w+\s*\(`, `\bconst\s+\w+\s*=`, `\blet\s+\w+\s*=`, `\bvar\s+\w+\s*=`,
	`\b=>\s*[{(]`, `\bconsole\.log\b`, `\bexport\s+(?:default\s+)?(?:function|class|const)\b`,
	// general control flow
	`\breturn\s+`, `\bfor\s*\(`, `\bwhile\s*\(`, `\bif\s*\(.+\)\s*[{:]`,
	`\btry\s*[{:]`, `\bcatch\s*\(`, `\bswitch\s*\(`,
	// c, java, go, rust
	`\b(?:int|void|char|float|double|bool)\s+\w+`, `#include\s*<`,
	`\bfn\s+\w+`, `\bfunc\s+\w+`, `\bpub\s+fn\b`,
	// shell
	`^#!/`, `\becho\s+`, `\bsudo\s+`,
	// sql
	`\bSELECT\s+.+\bFROM\b`, `\bINSERT\s+INTO\b`, `\bCREATE\s+TABLE\b`,
	// brackets and comment syntax. The comment marker excludes "#!" so
	// shebangs only count once.
	`[{}\[\]];$`, `^\s*//\s`, `^\s*#\s[^!]`,
)

// languageHints is ordered; Language resolves score ties to the earlier
// entry.
var languageHints = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"python", compileAll(`\bdef\s+\w+\(`, `\bimport\s+\w+`, `\bself\.`, `:\s*$`)},
	{"javascript", compileAll(`\bconst\s+\w+`, `\blet\s+\w+`, `\b=>\s*`, `\bconsole\.`)},
	{"bash", compileAll(`^#!/bin/(?:ba)?sh`, `\becho\s+`, `\bsudo\s+`, `\|\s*grep\b`)},
	{"sql", compileAll(`\bSELECT\b`, `\bFROM\b`, `\bWHERE\b`, `\bINSERT\b`)},
	{"html", compileAll(`</?(?:div|span|p|a|h[1-6]|ul|li|table|body|html)\b`, `</\w+>`)},
	{"css", compileAll(`\{[^}]*:\s*[^}]+\}`, `@media\b`, `\.[\w-]+\s*\{`)},
	{"json", compileAll(`^\s*\{[\s\S]*"\w+"\s*:`, `^\s*\[`)},
	{"rust", compileAll(`\bfn\s+\w+`, `\blet\s+mut\b`, `\bimpl\b`, `\bpub\s+fn\b`)},
	{"go", compileAll(`\bfunc\s+\w+`, `\bpackage\s+\w+`, `\bfmt\.\w+`)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		res[i] = regexp.MustCompile(`(?im)` + p)
	}
	return res
}

const specialChars = "{}[]();=<>|&!@#$%^*~`"

func looksLikeCode(s string) bool {
	if utf8.RuneCountInString(s) < 10 {
		return false
	}

	score := 0
	for _, re := range codeMarkers {
		if re.MatchString(s) {
			score++
			if score >= 2 {
				return true
			}
		}
	}

	special, total := 0, 0
	for _, r := range s {
		total++
		if strings.ContainsRune(specialChars, r) {
			special++
		}
	}
	if total > 0 && float64(special)/float64(total) > 0.08 {
		score++
	}

	lines := strings.Split(s, "\n")
	if len(lines) >= 3 {
		indented := 0
		for _, line := range lines {
			if strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t") {
				indented++
			}
		}
		if float64(indented)/float64(len(lines)) > 0.4 {
			score++
		}
	}

	return score >= 2
}

// Language guesses the programming language of code text. Empty when no
// hint matches.
func Language(s string) string {
	best, bestScore := "", 0
	for _, lang := range languageHints {
		score := 0
		for _, re := range lang.patterns {
			if re.MatchString(s) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = lang.name, score
		}
	}
	return best
}
