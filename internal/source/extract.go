package source

import (
	"strings"

	"github.com/tidwall/gjson"
)

// MaxExtracted caps the texts taken from one payload.
const MaxExtracted = 50

// textKeys are the JSON keys whose string values carry transcript text.
var textKeys = map[string]bool{
	"text":         true,
	"content":      true,
	"message":      true,
	"delta":        true,
	"display_text": true,
}

// Extract returns the transcript lines contained in payload. JSON payloads
// yield the string values found under text keys at any depth; other input is
// split into lines. Empty lines are dropped and at most MaxExtracted are kept.
func Extract(payload string) []string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil
	}

	var texts []string
	if looksLikeJSON(payload) && gjson.Valid(payload) {
		collect(gjson.Parse(payload), false, &texts)
	} else {
		texts = []string{payload}
	}

	var lines []string
	for _, t := range texts {
		for _, line := range strings.Split(t, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			lines = append(lines, line)
			if len(lines) == MaxExtracted {
				return lines
			}
		}
	}
	return lines
}

func collect(v gjson.Result, underTextKey bool, texts *[]string) {
	if len(*texts) >= MaxExtracted {
		return
	}
	switch {
	case v.Type == gjson.String:
		if underTextKey {
			*texts = append(*texts, v.String())
		}
	case v.IsArray():
		v.ForEach(func(_, elem gjson.Result) bool {
			collect(elem, underTextKey, texts)
			return len(*texts) < MaxExtracted
		})
	case v.IsObject():
		v.ForEach(func(key, val gjson.Result) bool {
			collect(val, textKeys[key.String()], texts)
			return len(*texts) < MaxExtracted
		})
	}
}

func looksLikeJSON(s string) bool {
	return (strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")) ||
		(strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"))
}
