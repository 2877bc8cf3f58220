package model

import (
	"strings"
	"time"
)

// PackageDescriptor is the publication metadata written to metadata.json.
type PackageDescriptor struct {
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Tags        []string `json:"tags"`
	PublishDate string   `json:"publish_date"`
}

// dateLayouts are the accepted ISO-8601 forms of a publish date.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
}

// ParsePublishDate parses an ISO-8601 date or datetime.
func ParsePublishDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, E(KindInvalidInput, "publish date", "%q is not an ISO-8601 date", s)
}

// Validate checks title, slug, tags, and that the publish date is ISO-8601.
func (d PackageDescriptor) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return E(KindInvalidInput, "metadata", "title must not be empty")
	}
	if strings.TrimSpace(d.Slug) == "" {
		return E(KindInvalidInput, "metadata", "slug must not be empty")
	}
	if len(d.Tags) == 0 {
		return E(KindInvalidInput, "metadata", "at least one tag is required")
	}
	_, err := ParsePublishDate(d.PublishDate)
	return err
}
