// Package ingest gathers auxiliary research material: archived documents from
// a content directory and headlines from trending feeds.
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	nurl "net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
)

// maxTextLength caps the runes kept per document.
const maxTextLength = 15000

// ErrNoDocuments is returned when the content directory holds no usable files.
var ErrNoDocuments = errors.New("no content documents found")

// Document is one archived piece of content.
type Document struct {
	Path   string
	Title  string
	Author string
	Text   string
}

// LoadDocuments reads *.md and *.html files from dir, sorted by name.
// HTML is reduced to its readable text.
func LoadDocuments(dir string) ([]Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read content dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []Document
	for _, name := range names {
		path := filepath.Join(dir, name)
		var (
			doc Document
			err error
		)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".md", ".markdown":
			doc, err = loadMarkdown(path)
		case ".html", ".htm":
			doc, err = loadHTML(path)
		default:
			continue
		}
		if err != nil {
			return docs, fmt.Errorf("%s: %w", name, err)
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	return docs, nil
}

func loadMarkdown(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	text := normalizeText(string(raw))
	title := titleFromName(path)
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "# ") {
			title = strings.TrimSpace(line[2:])
			break
		}
	}
	return Document{Path: path, Title: title, Text: truncate(text)}, nil
}

func loadHTML(path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	abs, _ := filepath.Abs(path)
	pageURL := &nurl.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	article, err := readability.FromReader(bytes.NewReader(raw), pageURL)
	if err != nil {
		return Document{}, fmt.Errorf("readability: %w", err)
	}
	return Document{
		Path:   path,
		Title:  titleFromName(path),
		Author: article.Byline,
		Text:   truncate(normalizeText(article.TextContent)),
	}, nil
}

func titleFromName(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.NewReplacer("-", " ", "_", " ").Replace(base)
}

func truncate(text string) string {
	if utf8.RuneCountInString(text) <= maxTextLength {
		return text
	}
	return string([]rune(text)[:maxTextLength]) + "\n... [truncated]"
}

var multiSpace = regexp.MustCompile(`[ \t]+`)
var multiNewline = regexp.MustCompile(`\n{3,}`)

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}

// Rank orders docs by how many distinct query words they mention, keeping
// input order among equals.
func Rank(docs []Document, query string) []Document {
	words := strings.Fields(strings.ToLower(query))
	score := func(d Document) int {
		hay := strings.ToLower(d.Title + " " + d.Text)
		n := 0
		for _, w := range words {
			if len(w) > 2 && strings.Contains(hay, w) {
				n++
			}
		}
		return n
	}
	ranked := append([]Document(nil), docs...)
	sort.SliceStable(ranked, func(i, j int) bool { return score(ranked[i]) > score(ranked[j]) })
	return ranked
}
