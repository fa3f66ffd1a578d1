package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinContentLength = 10
	maxAuthorLength  = 100
	shortCapsLength  = 30
	statusMaxLength  = 40
)

// Multi-word UI labels, removed before the per-word check.
var chromePhrases = []string{
	"view more comments", "write a comment", "most relevant", "join group",
	"see more", "see less", "is typing", "active now", "and others",
	"xem thêm", "bình luận", "chia sẻ", "trả lời", "báo cáo", "đang nhập", "trực tuyến",
	"me gusta", "ver más", "j'aime", "voir plus", "gefällt mir", "mehr anzeigen",
}

var chromeWords = toSet(
	"like", "likes", "liked", "comment", "comments", "share", "shares", "shared",
	"reply", "replies", "report", "typing", "online", "follow", "following",
	"send", "message", "reaction", "reactions", "view", "more", "all", "others",
	"and", "thích", "comentar", "comentarios", "compartir", "responder",
	"commenter", "partager", "répondre", "kommentieren", "teilen", "antworten",
)

// Short strings containing these read as presence indicators, not posts.
var statusMarkers = []string{
	"is typing", "are typing", "active now", "online", "đang nhập", "trực tuyến", "escribiendo",
}

var countToken = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?[KkMmBb]?`)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsUIChrome reports whether text looks like interface labels rather than
// user-written content.
func IsUIChrome(text string) bool {
	trimmed := strings.TrimSpace(text)
	norm := strings.ToLower(trimmed)
	n := utf8.RuneCountInString(norm)

	if n <= statusMaxLength {
		for _, m := range statusMarkers {
			if strings.Contains(norm, m) {
				return true
			}
		}
	}

	if n <= shortCapsLength && isAllCaps(trimmed) {
		return true
	}

	rest := norm
	for _, p := range chromePhrases {
		rest = strings.ReplaceAll(rest, p, " ")
	}
	for _, tok := range strings.FieldsFunc(rest, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if _, ok := chromeWords[tok]; !ok {
			return false
		}
	}
	return true
}

func isAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// ValidContent applies the text-shape rules for post content.
func ValidContent(text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinContentLength {
		return false
	}
	return !IsUIChrome(text)
}

// BestContent returns the longest valid candidate. Ties keep the earliest.
func BestContent(candidates []string) (string, bool) {
	best, bestLen := "", -1
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if !ValidContent(c) {
			continue
		}
		if l := utf8.RuneCountInString(c); l > bestLen {
			best, bestLen = c, l
		}
	}
	return best, bestLen >= 0
}

// ParseCount returns the first integer in text. Comma grouping is accepted;
// abbreviated or decimal counts such as "1.2K" are not expanded and yield 0.
func ParseCount(text string) int {
	tok := countToken.FindString(text)
	if tok == "" || strings.ContainsAny(tok, ".KkMmBb") {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(tok, ",", ""))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func validAuthor(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && name != "Facebook" && utf8.RuneCountInString(name) <= maxAuthorLength
}
