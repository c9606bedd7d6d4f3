package utterance

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "wake word and commas",
			input: "doubao doubao, take a note, learned something new today",
			want:  "take a note learned something new today",
		},
		{
			name:  "stacked fillers",
			input: "um, uh, take a note",
			want:  "take a note",
		},
		{
			name:  "acknowledgement then filler",
			input: "Okay so take a note",
			want:  "take a note",
		},
		{
			name:  "filler needs word boundary",
			input: "something to buy",
			want:  "something to buy",
		},
		{
			name:  "cjk punctuation and filler",
			input: "嗯，记笔记：明天开会。",
			want:  "记笔记 明天开会",
		},
		{
			name:  "cjk wake word",
			input: "豆包豆包记任务交报告",
			want:  "记任务交报告",
		},
		{
			name:  "trailing share label",
			input: "买牛奶 分享",
			want:  "买牛奶",
		},
		{
			name:  "trailing share label attached",
			input: "买牛奶分享",
			want:  "买牛奶",
		},
		{
			name:  "zero width characters",
			input: "\u200btake a note\u200b buy milk\ufeff",
			want:  "take a note buy milk",
		},
		{
			name:  "decimal point kept",
			input: "version 3.5 is out",
			want:  "version 3.5 is out",
		},
		{
			name:  "inner comma kept",
			input: "a,b",
			want:  "a,b",
		},
		{
			name:  "trailing punctuation run",
			input: "call mom?!",
			want:  "call mom",
		},
		{
			name:  "case preserved",
			input: "Buy Milk",
			want:  "Buy Milk",
		},
		{
			name:  "tabs and newlines",
			input: "take\ta note\n\nbuy milk",
			want:  "take a note buy milk",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only noise",
			input: "  ，。 嗯 ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"doubao doubao, take a note, learned something new today",
		"x.分享",
		"um .x",
		"a.，b",
		"嗯 啊 那个 记笔记",
		"\"quoted\" words, here.",
		"3.5.",
		"well, well, well",
		"  ，。 ",
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizer_ExtraFillers(t *testing.T) {
	n := NewNormalizer([]string{" Basically "})

	got := n.Normalize("basically, take a note")
	if got != "take a note" {
		t.Errorf("Normalize = %q, want %q", got, "take a note")
	}

	// The package default does not know the extra filler.
	got = Normalize("basically, take a note")
	if got != "basically take a note" {
		t.Errorf("Normalize = %q, want %q", got, "basically take a note")
	}
}

func TestLongestFirst(t *testing.T) {
	got := longestFirst([]string{"doubao", "Doubao  Doubao", "", "doubao"})
	want := []string{"doubao doubao", "doubao"}

	if len(got) != len(want) {
		t.Fatalf("longestFirst = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("longestFirst[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHasSuffixFold(t *testing.T) {
	i, ok := hasSuffixFold("please TAKE A", "take a")
	if !ok || i != len("please ") {
		t.Errorf("hasSuffixFold = (%d, %v), want (%d, true)", i, ok, len("please "))
	}
	if _, ok := hasSuffixFold("a", "take a"); ok {
		t.Error("hasSuffixFold should fail for a shorter string")
	}
}
