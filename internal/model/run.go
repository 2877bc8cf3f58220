package model

import (
	"strings"
	"time"
)

// Run status constants
const (
	StatusQueued    = "QUEUED"
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// RunRequest carries every input of one end-to-end pipeline run.
type RunRequest struct {
	MetricsCSV    string   `json:"metrics_csv" yaml:"metrics_csv"`
	ResearchQuery string   `json:"research_query" yaml:"research_query"`
	IssueBrief    string   `json:"issue_brief" yaml:"issue_brief"`
	CoverImage    string   `json:"cover_image" yaml:"cover_image"`
	Title         string   `json:"title" yaml:"title"`
	Slug          string   `json:"slug" yaml:"slug"`
	Tags          []string `json:"tags" yaml:"tags"`
	PublishDate   string   `json:"publish_date" yaml:"publish_date"`
}

// Validate checks that every required input is present.
func (r RunRequest) Validate() error {
	fields := []struct{ name, value string }{
		{"metrics_csv", r.MetricsCSV},
		{"research_query", r.ResearchQuery},
		{"issue_brief", r.IssueBrief},
		{"cover_image", r.CoverImage},
		{"title", r.Title},
		{"slug", r.Slug},
		{"publish_date", r.PublishDate},
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(r.Tags) == 0 {
		missing = append(missing, "tags")
	}
	if len(missing) > 0 {
		return E(KindInvalidInput, "run request", "missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SplitTags turns a comma-separated tag list into trimmed, non-empty tags.
func SplitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Run is one recorded pipeline execution.
type Run struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	Request     RunRequest `json:"request"`
	ArchivePath *string    `json:"archive_path,omitempty"`
	ErrorInfo   *string    `json:"error_info,omitempty"`
	CreatedAt   string     `json:"created_at"`
	UpdatedAt   string     `json:"updated_at"`
}

// RunWithArtifacts is a Run together with its recorded artifacts.
type RunWithArtifacts struct {
	Run
	Artifacts []Artifact `json:"artifacts"`
}

// NewRun creates a Run in the given initial status.
func NewRun(id string, req RunRequest, status string) Run {
	now := time.Now().UTC().Format(time.RFC3339)
	return Run{
		ID:        id,
		Status:    status,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
