// Package outline extracts the first outline option and its subject-line
// candidates from the outline stage's markdown.
package outline

import (
	"strings"
	"unicode"
)

const (
	// Option1Heading opens the first outline option.
	Option1Heading = "# Outline Option 1"
	// Option2Heading ends it.
	Option2Heading = "# Outline Option 2"
	// SubjectLinesHeading introduces the candidate list inside an option.
	SubjectLinesHeading = "## Subject Line Candidates"
)

// Result is the parsed first option.
type Result struct {
	// Option1 always begins with Option1Heading.
	Option1      string
	SubjectLines []string
}

// Parse never fails. A missing option-1 heading makes the whole input the
// option-1 span; a missing candidates heading yields no subject lines.
func Parse(raw string) Result {
	span := option1Span(raw)
	return Result{
		Option1:      span,
		SubjectLines: SubjectLines(span),
	}
}

func option1Span(raw string) string {
	start := strings.Index(raw, Option1Heading)
	if start < 0 {
		return Option1Heading + "\n" + raw
	}
	span := raw[start:]
	if end := strings.Index(span[len(Option1Heading):], Option2Heading); end >= 0 {
		span = span[:len(Option1Heading)+end]
	}
	return span
}

type scanState int

const (
	beforeList scanState = iota
	inList
	afterList
)

// SubjectLines scans the lines after the candidates heading. Marker lines are
// entries; the first unmarked line after an entry ends the list, while
// unmarked lines and empty markers before any entry are skipped.
func SubjectLines(span string) []string {
	at := strings.Index(span, SubjectLinesHeading)
	if at < 0 {
		return []string{}
	}
	body := span[at+len(SubjectLinesHeading):]
	// Drop the remainder of the heading line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}

	lines := []string{}
	state := beforeList
	for _, line := range strings.Split(body, "\n") {
		if state == afterList {
			break
		}
		item, ok := stripMarker(strings.TrimSpace(line))
		switch {
		case ok:
			if item = cleanCandidate(item); item != "" {
				lines = append(lines, item)
				state = inList
			}
		case state == inList:
			state = afterList
		}
	}
	return lines
}

// stripMarker removes a leading "-", "*", "+", "1." or "1)" list marker.
func stripMarker(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	switch line[0] {
	case '-', '*', '+':
		rest := line[1:]
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return rest, true
		}
		return "", false
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i+1 > len(line) || (line[i] != '.' && line[i] != ')') {
		return "", false
	}
	rest := line[i+1:]
	if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
		return rest, true
	}
	return "", false
}

const quoteChars = "\"'“”‘’"

func cleanCandidate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, quoteChars)
	return strings.TrimFunc(s, unicode.IsSpace)
}
