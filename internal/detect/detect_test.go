package detect

import (
	"strings"
	"testing"
)

func TestClassify_Table(t *testing.T) {
	// WHAT: Each cascade rule fires on its canonical input.
	// WHY: The cascade order and per-rule predicates are the contract.
	tests := []struct {
		name     string
		text     string
		category string
		subtype  string
	}{
		{"hex color", "#1a2b3c", CategoryColor, "hex"},
		{"short hex color", "#fff", CategoryColor, "hex"},
		{"rgb color", "rgb(255, 0, 0)", CategoryColor, "rgb"},
		{"hsla color", "hsla(120, 50%, 50%, 0.5)", CategoryColor, "rgb"},
		{"url", "https://example.com/path", CategoryURL, "example.com"},
		{"url with port and www", "https://www.Example.com:8080/x", CategoryURL, "example.com"},
		{"email", "a@b.co", CategoryEmail, ""},
		{"phone", "+1 (555) 123-4567", CategoryPhone, ""},
		{"python code", "def foo():\n    return 1\n", CategoryCode, "python"},
		{"javascript code", "const x = 1;\nconsole.log(x);\n", CategoryCode, "javascript"},
		{"text with urls", "see https://a.co and https://b.co for details", CategoryText, SubtypeWithURLs},
		{"plain text", "just a sentence about nothing", CategoryText, ""},
		{"empty", "", CategoryText, ""},
		{"whitespace only", "   \n\t  ", CategoryText, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text)
			if got.Category != tt.category {
				t.Errorf("category = %q, want %q", got.Category, tt.category)
			}
			if got.Subtype != tt.subtype {
				t.Errorf("subtype = %q, want %q", got.Subtype, tt.subtype)
			}
		})
	}
}

func TestClassify_URLMetadata(t *testing.T) {
	// WHAT: url clips carry url and domain metadata.
	res := Classify("https://example.com/path")
	if res.Metadata["domain"] != "example.com" {
		t.Errorf("domain = %q, want example.com", res.Metadata["domain"])
	}
	if res.Metadata["url"] != "https://example.com/path" {
		t.Errorf("url = %q", res.Metadata["url"])
	}
}

func TestClassify_URLNeedsShortText(t *testing.T) {
	// WHAT: Four or more lines never classify as url even when the first
	// line is one.
	text := "https://a.co\nline2\nline3\nline4"
	res := Classify(text)
	if res.Category != CategoryText || res.Subtype != SubtypeWithURLs {
		t.Fatalf("got %s/%s, want text/with_urls", res.Category, res.Subtype)
	}
}

func TestClassify_WithURLsCapsAtFive(t *testing.T) {
	// WHAT: Only the first 5 URL matches land in metadata.
	var b strings.Builder
	for i := 0; i < 8; i++ {
		b.WriteString("word https://example.com/")
		b.WriteByte(byte('a' + i))
		b.WriteString(" tail\n")
	}
	res := Classify(b.String())
	if res.Subtype != SubtypeWithURLs {
		t.Fatalf("subtype = %q", res.Subtype)
	}
	urls := strings.Split(res.Metadata["urls"], "\n")
	if len(urls) != 5 {
		t.Fatalf("urls = %d, want 5", len(urls))
	}
}

func TestClassify_EmailNeverSensitive(t *testing.T) {
	// WHAT: The email rule forces sensitive=false.
	// WHY: Addresses are public identifiers; flagging them would hide half
	// the history behind the sensitive filter.
	res := Classify("a@b.co")
	if res.Sensitive {
		t.Fatal("email classified sensitive")
	}
}

func TestClassify_PhoneNeverSensitive(t *testing.T) {
	res := Classify("+49 30 123456")
	if res.Category != CategoryPhone {
		t.Fatalf("category = %q, want phone", res.Category)
	}
	if res.Sensitive {
		t.Fatal("phone classified sensitive")
	}
}

func TestClassify_PhoneRejectsLetters(t *testing.T) {
	res := Classify("call 555-1234")
	if res.Category == CategoryPhone {
		t.Fatal("text with letters classified as phone")
	}
}

func TestClassify_ColorLengthBound(t *testing.T) {
	// WHAT: The color rule only fires on short values.
	long := "rgb(1, 2, 3) and then a lot of trailing words"
	if res := Classify(long); res.Category == CategoryColor {
		t.Fatal("long text classified as color")
	}
}

func TestClassify_SensitiveToken(t *testing.T) {
	// WHAT: A 15-rune token mixing all four character classes is sensitive.
	res := Classify("Tr0ub4dor&3xyz!")
	if !res.Sensitive {
		t.Fatal("high-entropy token not flagged sensitive")
	}
	if res.Category != CategoryText {
		t.Fatalf("category = %q, want text", res.Category)
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.com/path", "example.com"},
		{"http://www.example.com", "example.com"},
		{"https://example.com:8080/x?y=1", "example.com"},
		{"HTTPS://WWW.EXAMPLE.COM/A", "example.com"},
		{"https://sub.example.co.uk/deep/path", "sub.example.co.uk"},
	}
	for _, tt := range tests {
		if got := Domain(tt.url); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestLanguage_TieBreaksByTableOrder(t *testing.T) {
	// WHAT: Equal hint scores resolve to the earlier table entry.
	// WHY: Deterministic subtypes; reclassifying the same text must never
	// flip the language.
	text := "import x\nconst y = 1"
	if got := Language(text); got != "python" {
		t.Fatalf("Language = %q, want python", got)
	}
}

func TestLanguage_NoHints(t *testing.T) {
	if got := Language("plain prose with no markers"); got != "" {
		t.Fatalf("Language = %q, want empty", got)
	}
}

func TestLanguage_Rust(t *testing.T) {
	text := "pub fn main() {\n    let mut x = 1;\n}"
	if got := Language(text); got != "rust" {
		t.Fatalf("Language = %q, want rust", got)
	}
}

func TestLooksLikeCode_MinLength(t *testing.T) {
	// WHAT: Anything under 10 runes is never code.
	if looksLikeCode("for (") {
		t.Fatal("9-rune text classified as code")
	}
}

func TestLooksLikeCode_IndentationScoring(t *testing.T) {
	// WHAT: One marker plus heavy indentation reaches the accept score.
	text := "query something\n    indented one\n    indented two\nSELECT a FROM b"
	if !looksLikeCode(text) {
		t.Fatal("indented marker text not classified as code")
	}
}
