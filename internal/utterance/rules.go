package utterance

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// RuleSetVersion identifies the built-in homophone, filler and numeral tables.
// Bump it whenever those tables change so stored results can be traced.
const RuleSetVersion = 1

// Form describes how a rule's phrase relates to the canonical keyword.
type Form string

const (
	FormRepeated  Form = "repeated"
	FormExact     Form = "exact"
	FormHomophone Form = "homophone"
	FormOmission  Form = "omission"
)

// Prefix describes what a rule allows in front of the phrase.
type Prefix string

const (
	PrefixFiller  Prefix = "filler"
	PrefixNumeral Prefix = "numeral"
	PrefixNone    Prefix = "none"
)

// builtinHomophones maps canonical keywords to common transcription variants.
var builtinHomophones = map[string][]string{
	"记笔记":         {"记比记", "计笔记", "寄笔记", "记笔迹", "几笔记"},
	"记任务":         {"计任务", "寄任务", "记人物", "记认务", "几任务"},
	"take a note": {"take note", "take a notes", "take a knot", "make a note", "tape a note"},
	"add a task":  {"add task", "at a task", "add a tasks", "ad a task", "add a tusk"},
}

// builtinLeadIns are polite or imperative phrases that may directly precede a
// keyword without being part of the content.
var builtinLeadIns = []string{
	"please", "can you", "could you", "help me", "let's", "lets",
	"帮我", "请", "给我", "麻烦",
}

// numeralPattern matches a leading count such as "one", "a", "3" or "一".
const numeralPattern = `(?:(?:one|an|a) |\d+ ?|一 ?)`

// Rule is one compiled trigger pattern.
type Rule struct {
	ID       string
	Category Category
	Keyword  string
	Form     Form
	Prefix   Prefix
	Phrase   string

	// omitted is the leading part of the keyword an omission form drops.
	omitted string
	re      *regexp.Regexp
}

// RuleConfig is the input to BuildRules.
type RuleConfig struct {
	KeywordNote string
	KeywordTask string
	Homophones  map[string][]string
	Fillers     []string
}

// BuildRules expands both keywords into ordered rule groups, Note first.
func BuildRules(cfg RuleConfig) ([]*Rule, error) {
	note := cleanPhrase(cfg.KeywordNote)
	task := cleanPhrase(cfg.KeywordTask)
	if note == "" || task == "" {
		return nil, fmt.Errorf("both keywords are required")
	}
	if strings.EqualFold(note, task) {
		return nil, fmt.Errorf("keywords must differ: %q", note)
	}

	fillerAlt := fillerAlternation(append(append(append([]string{}, builtinFillers...), builtinLeadIns...), cfg.Fillers...))

	var rules []*Rule
	for _, g := range []struct {
		cat     Category
		keyword string
	}{{CategoryNote, note}, {CategoryTask, task}} {
		for _, f := range keywordForms(g.keyword, cfg.Homophones) {
			for _, p := range []Prefix{PrefixFiller, PrefixNumeral, PrefixNone} {
				r := &Rule{
					ID:       fmt.Sprintf("%s-%02d-%s-%s", g.cat, len(rules), f.form, p),
					Category: g.cat,
					Keyword:  g.keyword,
					Form:     f.form,
					Prefix:   p,
					Phrase:   f.phrase,
					omitted:  f.omitted,
				}
				re, err := compileRule(f.phrase, p, fillerAlt)
				if err != nil {
					return nil, fmt.Errorf("rule %s: %w", r.ID, err)
				}
				r.re = re
				rules = append(rules, r)
			}
		}
	}
	return rules, nil
}

type form struct {
	form    Form
	phrase  string
	omitted string
}

// keywordForms lists the phrase variants of one keyword from most to least specific.
func keywordForms(keyword string, extra map[string][]string) []form {
	seen := map[string]bool{}
	var forms []form
	add := func(f form) {
		key := strings.ToLower(f.phrase)
		if f.phrase == "" || seen[key] {
			return
		}
		seen[key] = true
		forms = append(forms, f)
	}

	add(form{form: FormRepeated, phrase: keyword + " " + keyword})
	add(form{form: FormExact, phrase: keyword})

	lower := strings.ToLower(keyword)
	for _, h := range builtinHomophones[lower] {
		add(form{form: FormHomophone, phrase: cleanPhrase(h)})
	}
	for k, hs := range extra {
		if strings.ToLower(cleanPhrase(k)) != lower {
			continue
		}
		for _, h := range hs {
			add(form{form: FormHomophone, phrase: cleanPhrase(h)})
		}
	}

	for _, o := range omissions(keyword) {
		add(o)
	}
	return forms
}

// omissions drops leading words of a multi-word keyword, or leading
// characters of a single-word one, keeping a recognizable tail.
func omissions(keyword string) []form {
	var out []form
	words := strings.Fields(keyword)
	if len(words) > 1 {
		for k := 1; k < len(words); k++ {
			tail := strings.Join(words[k:], " ")
			if letterCount(tail) < 3 {
				continue
			}
			out = append(out, form{form: FormOmission, phrase: tail, omitted: strings.Join(words[:k], " ")})
		}
		return out
	}

	runes := []rune(keyword)
	first, _ := utf8.DecodeRuneInString(keyword)
	minKeep := 4
	if isCJK(first) {
		minKeep = 2
	}
	for k := 1; len(runes)-k >= minKeep; k++ {
		out = append(out, form{form: FormOmission, phrase: string(runes[k:]), omitted: string(runes[:k])})
	}
	return out
}

func compileRule(phrase string, p Prefix, fillerAlt string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)")
	switch p {
	case PrefixFiller:
		b.WriteString("(?:" + fillerAlt + "){1,2}")
	case PrefixNumeral:
		b.WriteString(numeralPattern)
	}
	b.WriteString("(" + phrasePattern(phrase) + ")")
	return regexp.Compile(b.String())
}

// phrasePattern quotes a phrase, allowing an optional space between CJK
// characters and exactly one space between Latin words.
func phrasePattern(phrase string) string {
	var b strings.Builder
	var prev rune
	for i, r := range phrase {
		if r == ' ' {
			continue
		}
		if i > 0 {
			switch {
			case phrase[i-1] == ' ' && !isCJK(prev) && !isCJK(r):
				b.WriteString(" ")
			case isCJK(prev) || isCJK(r):
				b.WriteString(" ?")
			}
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
		prev = r
	}
	return b.String()
}

// fillerAlternation builds one alternative per filler, each followed by the
// separator the next token needs.
func fillerAlternation(fillers []string) string {
	parts := make([]string, 0, len(fillers))
	for _, f := range longestFirst(fillers) {
		last, _ := utf8.DecodeLastRuneInString(f)
		sep := " ?"
		if isWordish(last) || last == '\'' {
			sep = " "
		}
		parts = append(parts, phrasePattern(f)+sep)
	}
	return strings.Join(parts, "|")
}

func cleanPhrase(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' {
			n++
		}
	}
	return n
}
