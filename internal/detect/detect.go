// CLAUDE:SUMMARY Ordered rule cascade classifying clipboard text: color, url, email, phone, code, with_urls, plain text.
package detect

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Categories assigned by Classify.
const (
	CategoryText  = "text"
	CategoryURL   = "url"
	CategoryEmail = "email"
	CategoryPhone = "phone"
	CategoryCode  = "code"
	CategoryColor = "color"
	CategoryImage = "image"
)

// SubtypeWithURLs marks plain text that embeds URL substrings.
const SubtypeWithURLs = "with_urls"

// Result is the outcome of classifying one captured text.
type Result struct {
	Category  string
	Subtype   string
	Metadata  map[string]string
	Sensitive bool
}

var (
	urlRe       = regexp.MustCompile(`(?i)https?://[^\s<>"')\]]+`)
	urlPrefixRe = regexp.MustCompile(`(?i)^https?://[^\s<>"')\]]+`)
	emailRe     = regexp.MustCompile(`(?i)^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneRe     = regexp.MustCompile(`^(?:\+?\d{1,3}[\s\-.]?)?\(?\d{2,4}\)?[\s\-.]?\d{3,4}[\s\-.]?\d{2,4}`)
	hexColorRe  = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)
	rgbColorRe  = regexp.MustCompile(`(?i)^(?:rgb|hsl)a?\(\s*\d+`)

	phoneStripRe = regexp.MustCompile(`[\s\-().+]`)
)

// rule is one step of the classification cascade. Rules run in order over
// the trimmed text; the first rule that matches produces the Result.
type rule struct {
	name  string
	match func(trimmed string, sensitive bool) (Result, bool)
}

var cascade = []rule{
	{name: "color", match: matchColor},
	{name: "url", match: matchURL},
	{name: "email", match: matchEmail},
	{name: "phone", match: matchPhone},
	{name: "code", match: matchCode},
	{name: SubtypeWithURLs, match: matchWithURLs},
}

// Classify analyzes text and returns its category, subtype, metadata, and
// sensitivity. Pure and non-blocking; safe for concurrent use.
func Classify(text string) Result {
	trimmed := strings.TrimSpace(text)
	sensitive := Sensitive(text)

	for _, r := range cascade {
		if res, ok := r.match(trimmed, sensitive); ok {
			return res
		}
	}
	return Result{Category: CategoryText, Metadata: map[string]string{}, Sensitive: sensitive}
}

func matchColor(s string, sensitive bool) (Result, bool) {
	if utf8.RuneCountInString(s) >= 30 {
		return Result{}, false
	}
	subtype := ""
	switch {
	case hexColorRe.MatchString(s):
		subtype = "hex"
	case rgbColorRe.MatchString(s):
		subtype = "rgb"
	default:
		return Result{}, false
	}
	return Result{
		Category:  CategoryColor,
		Subtype:   subtype,
		Metadata:  map[string]string{"color_value": s},
		Sensitive: sensitive,
	}, true
}

func matchURL(s string, sensitive bool) (Result, bool) {
	lines := strings.Split(s, "\n")
	if len(lines) > 3 {
		return Result{}, false
	}
	first := strings.TrimSpace(lines[0])
	if utf8.RuneCountInString(first) >= 2048 || !urlPrefixRe.MatchString(first) {
		return Result{}, false
	}
	domain := Domain(first)
	return Result{
		Category:  CategoryURL,
		Subtype:   domain,
		Metadata:  map[string]string{"url": s, "domain": domain},
		Sensitive: sensitive,
	}, true
}

func matchEmail(s string, _ bool) (Result, bool) {
	if strings.Contains(s, "\n") || len(s) > 254 || !emailRe.MatchString(s) {
		return Result{}, false
	}
	// Email addresses are usually public identifiers.
	return Result{
		Category: CategoryEmail,
		Metadata: map[string]string{"email": s},
	}, true
}

func matchPhone(s string, _ bool) (Result, bool) {
	if utf8.RuneCountInString(s) >= 25 {
		return Result{}, false
	}
	digits := phoneStripRe.ReplaceAllString(s, "")
	if len(digits) < 7 || len(digits) > 15 || !allDigits(digits) {
		return Result{}, false
	}
	if !phoneRe.MatchString(s) {
		return Result{}, false
	}
	return Result{
		Category: CategoryPhone,
		Metadata: map[string]string{"phone": s},
	}, true
}

func matchCode(s string, sensitive bool) (Result, bool) {
	if !looksLikeCode(s) {
		return Result{}, false
	}
	lang := Language(s)
	return Result{
		Category:  CategoryCode,
		Subtype:   lang,
		Metadata:  map[string]string{"language": lang},
		Sensitive: sensitive,
	}, true
}

func matchWithURLs(s string, sensitive bool) (Result, bool) {
	urls := urlRe.FindAllString(s, 5)
	if len(urls) == 0 {
		return Result{}, false
	}
	return Result{
		Category:  CategoryText,
		Subtype:   SubtypeWithURLs,
		Metadata:  map[string]string{"urls": strings.Join(urls, "\n")},
		Sensitive: sensitive,
	}, true
}

// Domain extracts the host of a URL-looking string: scheme and path removed,
// port and "www." stripped, lowercased.
func Domain(u string) string {
	s := u
	if i := strings.Index(s, "//"); i >= 0 {
		s = s[i+2:]
	}
	if i := strings.IndexAny(s, "/\n"); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(strings.ToLower(s), "www.")
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
