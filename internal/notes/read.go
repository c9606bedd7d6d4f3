package notes

import (
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hpungsan/vocap/internal/errors"
	"github.com/hpungsan/vocap/internal/utterance"
)

const maxDailyFileSize = 4 * 1024 * 1024

var markdown = goldmark.New(goldmark.WithExtensions(extension.TaskList))

var noteTimeRe = regexp.MustCompile(`^\[(\d{1,2}:\d{2})\]\s*(.*)$`)

// Entry is one list item of a daily file.
type Entry struct {
	Time    string `json:"time,omitempty"`
	Task    bool   `json:"task,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Content string `json:"content"`
}

// Day is the parsed content of one daily file.
type Day struct {
	Date     string             `json:"date"`
	Category utterance.Category `json:"category"`
	Path     string             `json:"path"`
	Exists   bool               `json:"exists"`
	Entries  []Entry            `json:"entries"`
}

// ReadDay parses the daily file of a category. A missing file yields a Day
// with no entries.
func (s *Store) ReadDay(cat utterance.Category, day time.Time) (*Day, error) {
	path := s.DailyPath(cat, day)
	d := &Day{
		Date:     day.Local().Format("2006-01-02"),
		Category: cat,
		Path:     path,
		Entries:  []Entry{},
	}

	f, err := openReadNoFollow(path)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return d, nil
		}
		return nil, err
	}
	defer f.Close()

	src, err := io.ReadAll(io.LimitReader(f, maxDailyFileSize))
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	d.Exists = true
	d.Entries = ParseEntries(src)
	return d, nil
}

// ParseEntries extracts top-level list items from Markdown source.
func ParseEntries(src []byte) []Entry {
	doc := markdown.Parser().Parse(text.NewReader(src))

	entries := []Entry{}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		item, ok := n.(*ast.ListItem)
		if !ok {
			return ast.WalkContinue, nil
		}
		if e, ok := itemEntry(item, src); ok {
			entries = append(entries, e)
		}
		return ast.WalkSkipChildren, nil
	})
	return entries
}

func itemEntry(item *ast.ListItem, src []byte) (Entry, bool) {
	var e Entry
	var b strings.Builder

	_ = ast.Walk(item, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.List:
			// nested lists are not entries of their own
			return ast.WalkSkipChildren, nil
		case *extast.TaskCheckBox:
			e.Task = true
			e.Done = v.IsChecked
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})

	content := strings.TrimSpace(b.String())
	if !e.Task {
		if m := noteTimeRe.FindStringSubmatch(content); m != nil {
			e.Time = m[1]
			content = m[2]
		}
	}
	e.Content = content
	return e, content != ""
}
