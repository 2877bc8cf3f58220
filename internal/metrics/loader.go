// Package metrics loads historical issue metrics from a delimited file.
package metrics

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yangwenmai/letterpress/internal/model"
)

// Column is a header name in the metrics file.
type Column string

const (
	IssueDate   Column = "IssueDate"
	SubjectLine Column = "SubjectLine"
	OpenRate    Column = "OpenRate"
	ClickRate   Column = "ClickRate"
	ReplyCount  Column = "ReplyCount"
	Subscribers Column = "Subscribers"
)

// AllColumns is the full schema, used when a caller declares no subset.
var AllColumns = []Column{IssueDate, SubjectLine, OpenRate, ClickRate, ReplyCount, Subscribers}

// Caller-specific minimal schemas.
var (
	ForecastColumns = []Column{IssueDate, SubjectLine, OpenRate}
	AnalysisColumns = []Column{IssueDate, OpenRate, ClickRate}
)

const dateLayout = "2006-01-02"

// Load reads the metrics file at path and returns its records sorted
// descending by issue date. Only the required columns are validated and
// coerced; when required is empty every column is required. Any failure
// rejects the whole file.
func Load(path string, required ...Column) ([]model.MetricsRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, model.E(model.KindNotFound, "load metrics", "metrics file not found: %s", path)
		}
		return nil, model.Wrap(model.KindNotFound, "load metrics", err)
	}
	if info.IsDir() {
		return nil, model.E(model.KindNotFound, "load metrics", "metrics path is a directory: %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, model.Wrap(model.KindNotFound, "load metrics", err)
	}
	defer f.Close()
	return Parse(f, required...)
}

// Parse is Load over an already-open reader.
func Parse(r io.Reader, required ...Column) ([]model.MetricsRecord, error) {
	if len(required) == 0 {
		required = AllColumns
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, model.Wrap(model.KindSchema, "load metrics", err)
	}
	if len(rows) == 0 {
		return nil, model.E(model.KindSchema, "load metrics", "metrics file is empty")
	}

	index := make(map[Column]int, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		index[Column(h)] = i
	}
	var missing []string
	for _, c := range required {
		if _, ok := index[c]; !ok {
			missing = append(missing, string(c))
		}
	}
	if len(missing) > 0 {
		return nil, model.E(model.KindSchema, "load metrics", "missing required columns: %s", strings.Join(missing, ", "))
	}

	records := make([]model.MetricsRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		rec, err := coerceRow(row, index, required)
		if err != nil {
			// Header is line 1.
			return nil, model.Wrap(model.KindSchema, "load metrics", fmt.Errorf("line %d: %w", n+2, err))
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].IssueDate.After(records[j].IssueDate)
	})
	return records, nil
}

func coerceRow(row []string, index map[Column]int, required []Column) (model.MetricsRecord, error) {
	var rec model.MetricsRecord
	for _, c := range required {
		raw := ""
		if i := index[c]; i < len(row) {
			raw = strings.TrimSpace(row[i])
		}
		var err error
		switch c {
		case IssueDate:
			rec.IssueDate, err = time.Parse(dateLayout, raw)
		case SubjectLine:
			rec.SubjectLine = raw
		case OpenRate:
			rec.OpenRate, err = strconv.ParseFloat(raw, 64)
		case ClickRate:
			rec.ClickRate, err = strconv.ParseFloat(raw, 64)
		case ReplyCount:
			rec.ReplyCount, err = strconv.Atoi(raw)
			if err == nil && rec.ReplyCount < 0 {
				return rec, fmt.Errorf("%s must be non-negative, got %d", c, rec.ReplyCount)
			}
		case Subscribers:
			rec.Subscribers, err = strconv.Atoi(raw)
			if err == nil && rec.Subscribers <= 0 {
				return rec, fmt.Errorf("%s must be positive, got %d", c, rec.Subscribers)
			}
		}
		if err != nil {
			return rec, fmt.Errorf("%s %q: %w", c, raw, model.ErrTypeCoercion)
		}
	}
	return rec, nil
}

// Recent returns at most n records from the head of a date-descending set.
func Recent(records []model.MetricsRecord, n int) []model.MetricsRecord {
	if len(records) <= n {
		return records
	}
	return records[:n]
}
