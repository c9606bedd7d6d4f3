package utterance

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Reason explains a match result.
type Reason string

const (
	ReasonMatched      Reason = "matched"
	ReasonNoMatch      Reason = "no_match"
	ReasonEmptyContent Reason = "empty_content"
)

// Match is the result of running the rule set against one normalized text.
type Match struct {
	Reason   Reason
	Category Category
	Content  string
	Rule     *Rule
}

// Matched reports whether the text is a command with content.
func (m Match) Matched() bool {
	return m.Reason == ReasonMatched
}

// Matcher classifies normalized text. It is immutable and safe for
// concurrent use.
type Matcher struct {
	rules []*Rule
	norm  *Normalizer
}

// NewMatcher builds the rule set for the given keywords.
func NewMatcher(cfg RuleConfig) (*Matcher, error) {
	rules, err := BuildRules(cfg)
	if err != nil {
		return nil, err
	}
	return &Matcher{rules: rules, norm: NewNormalizer(cfg.Fillers)}, nil
}

// Normalizer returns the normalizer configured with the same fillers.
func (m *Matcher) Normalizer() *Normalizer {
	return m.norm
}

// Rules returns the rules in evaluation order.
func (m *Matcher) Rules() []*Rule {
	out := make([]*Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Match evaluates rules in order and returns the first one that leaves
// non-empty content. Text consisting only of a trigger phrase yields
// ReasonEmptyContent.
func (m *Matcher) Match(text string) Match {
	text = cleanPhrase(text)
	if text == "" {
		return Match{Reason: ReasonNoMatch}
	}

	sawTrigger := false
	for _, r := range m.rules {
		for off := 0; off < len(text); {
			loc := r.re.FindStringSubmatchIndex(text[off:])
			if loc == nil {
				break
			}
			start, end, kwStart := off+loc[0], off+loc[1], off+loc[2]
			_, size := utf8.DecodeRuneInString(text[start:])
			off = start + size

			if !accept(r, text, start, end, kwStart) {
				continue
			}
			content := trimResidual(text[:start] + " " + text[end:])
			if rest := m.norm.Normalize(content); rest == "" || m.bareTrigger(rest) {
				sawTrigger = true
				continue
			}
			return Match{Reason: ReasonMatched, Category: r.Category, Content: content, Rule: r}
		}
	}

	if sawTrigger {
		return Match{Reason: ReasonEmptyContent}
	}
	return Match{Reason: ReasonNoMatch}
}

// Classify returns the classified utterance when text is a command.
func (m *Matcher) Classify(text string, capturedAt time.Time) (Classified, bool) {
	res := m.Match(text)
	if !res.Matched() {
		return Classified{}, false
	}
	return Classified{Category: res.Category, Content: res.Content, CapturedAt: capturedAt}, true
}

// trimResidual collapses whitespace and trims separator punctuation at the
// edges. Words inside the content are kept as spoken.
func trimResidual(s string) string {
	return strings.TrimFunc(cleanPhrase(s), func(r rune) bool {
		return r == ' ' || strings.ContainsRune(cjkPunct, r) || strings.ContainsRune(asciiPunct, r)
	})
}

// bareTrigger reports whether s is nothing but a trigger phrase.
func (m *Matcher) bareTrigger(s string) bool {
	for _, r := range m.rules {
		loc := r.re.FindStringIndex(s)
		if loc != nil && loc[0] == 0 && loc[1] == len(s) {
			return true
		}
	}
	return false
}

// accept applies word boundaries at both ends of a match and rejects an
// omission form whose dropped part is present right before it.
func accept(r *Rule, text string, start, end, kwStart int) bool {
	if start > 0 {
		prev, _ := utf8.DecodeLastRuneInString(text[:start])
		first, _ := utf8.DecodeRuneInString(text[start:])
		if isWordish(prev) && isWordish(first) {
			return false
		}
	}
	if end < len(text) {
		last, _ := utf8.DecodeLastRuneInString(text[:end])
		next, _ := utf8.DecodeRuneInString(text[end:])
		if isWordish(last) && isWordish(next) {
			return false
		}
	}
	if r.omitted != "" && precededBy(text[:kwStart], r.omitted) {
		return false
	}
	return true
}

func precededBy(before, omitted string) bool {
	before = strings.TrimRight(before, " ")
	i, ok := hasSuffixFold(before, omitted)
	if !ok {
		return false
	}
	if i == 0 {
		return true
	}
	prev, _ := utf8.DecodeLastRuneInString(before[:i])
	first, _ := utf8.DecodeRuneInString(omitted)
	return !(isWordish(prev) && isWordish(first))
}
