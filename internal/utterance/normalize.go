package utterance

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// builtinFillers are interjections, acknowledgements and wake words that
// transcripts often start with.
var builtinFillers = []string{
	"um", "uh", "uhm", "umm", "er", "erm", "hmm", "ah", "oh",
	"ok", "okay", "alright", "yeah", "well", "so", "hey",
	"doubao", "doubao doubao", "hey doubao",
	"嗯", "啊", "呃", "哦", "那个", "好的",
	"豆包", "豆包豆包",
}

// builtinNoiseSuffixes are UI labels scraped along with the message text.
var builtinNoiseSuffixes = []string{"分享"}

// cjkPunct is always replaced by a space.
const cjkPunct = "，。：；、！？…「」『』“”‘’（）【】《》～·．"

// asciiPunct runs are replaced by a space when they touch a separator.
const asciiPunct = ",.:;!?\""

// Normalizer strips conversational noise from raw transcripts.
type Normalizer struct {
	fillers []string
	noise   []string
}

// NewNormalizer creates a Normalizer with the built-in fillers plus extra ones.
func NewNormalizer(extraFillers []string) *Normalizer {
	return &Normalizer{
		fillers: longestFirst(append(append([]string{}, builtinFillers...), extraFillers...)),
		noise:   longestFirst(builtinNoiseSuffixes),
	}
}

var defaultNormalizer = NewNormalizer(nil)

// Normalize strips noise using the built-in filler list.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// Normalize removes zero-width characters and separator punctuation,
// collapses whitespace, and strips leading fillers and trailing UI noise.
// It is idempotent and returns "" for blank input.
func (n *Normalizer) Normalize(raw string) string {
	s := raw
	// Every pass only deletes runes or turns them into single spaces,
	// so the loop reaches a fixpoint.
	for i := 0; i <= len(raw); i++ {
		next := n.pass(s)
		if next == s {
			return s
		}
		s = next
	}
	return s
}

func (n *Normalizer) pass(s string) string {
	s = stripPunct(removeZeroWidth(s))
	s = strings.Join(strings.Fields(s), " ")

	for changed := true; changed; {
		changed = false
		for _, f := range n.fillers {
			if rest, ok := trimLeadingToken(s, f); ok {
				s, changed = rest, true
				break
			}
		}
		for _, m := range n.noise {
			if rest, ok := trimTrailingMarker(s, m); ok {
				s, changed = rest, true
				break
			}
		}
	}
	return s
}

func removeZeroWidth(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		return r
	}, s)
}

// stripPunct replaces CJK punctuation with spaces, and ASCII punctuation runs
// only when the run touches whitespace or an edge of the string.
func stripPunct(s string) string {
	rs := []rune(s)
	out := make([]rune, 0, len(rs))
	isSep := func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(cjkPunct, r)
	}

	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case strings.ContainsRune(cjkPunct, r):
			out = append(out, ' ')
			i++
		case strings.ContainsRune(asciiPunct, r):
			j := i
			for j < len(rs) && strings.ContainsRune(asciiPunct, rs[j]) {
				j++
			}
			if i == 0 || j == len(rs) || isSep(rs[i-1]) || isSep(rs[j]) {
				out = append(out, ' ')
			} else {
				out = append(out, rs[i:j]...)
			}
			i = j
		default:
			out = append(out, r)
			i++
		}
	}
	return string(out)
}

// trimLeadingToken removes token from the start of s. Tokens ending in a
// word character need a following space or end of string.
func trimLeadingToken(s, token string) (string, bool) {
	n, ok := hasPrefixFold(s, token)
	if !ok {
		return s, false
	}
	rest := s[n:]
	last, _ := utf8.DecodeLastRuneInString(token)
	if rest != "" && isWordish(last) && !strings.HasPrefix(rest, " ") {
		if next, _ := utf8.DecodeRuneInString(rest); isWordish(next) {
			return s, false
		}
	}
	return strings.TrimSpace(rest), true
}

// trimTrailingMarker removes marker from the end of s.
func trimTrailingMarker(s, marker string) (string, bool) {
	if !strings.HasSuffix(s, marker) {
		return s, false
	}
	return strings.TrimSpace(strings.TrimSuffix(s, marker)), true
}

// hasPrefixFold reports whether s starts with prefix under simple case
// folding, returning the number of bytes of s consumed.
func hasPrefixFold(s, prefix string) (int, bool) {
	i := 0
	for _, pr := range prefix {
		if i >= len(s) {
			return 0, false
		}
		sr, size := utf8.DecodeRuneInString(s[i:])
		if sr != pr && unicode.ToLower(sr) != unicode.ToLower(pr) {
			return 0, false
		}
		i += size
	}
	return i, true
}

// hasSuffixFold is the suffix counterpart of hasPrefixFold, returning the
// byte offset in s where the suffix starts.
func hasSuffixFold(s, suffix string) (int, bool) {
	i := len(s)
	for j := len(suffix); j > 0; {
		if i <= 0 {
			return 0, false
		}
		pr, psize := utf8.DecodeLastRuneInString(suffix[:j])
		sr, ssize := utf8.DecodeLastRuneInString(s[:i])
		if sr != pr && unicode.ToLower(sr) != unicode.ToLower(pr) {
			return 0, false
		}
		i -= ssize
		j -= psize
	}
	return i, true
}

// isCJK reports whether r belongs to a script written without spaces.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// isWordish reports whether r is a letter or digit that needs word boundaries.
func isWordish(r rune) bool {
	return (unicode.IsLetter(r) || unicode.IsDigit(r)) && !isCJK(r)
}

// longestFirst returns trimmed, lower-cased, deduplicated tokens sorted by
// descending length so that "doubao doubao" is tried before "doubao".
func longestFirst(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t != "" && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}
