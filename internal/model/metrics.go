package model

import "time"

// MetricsRecord is one row of the historical issue-metrics table.
// Columns that were not requested at load time keep their zero value.
type MetricsRecord struct {
	IssueDate   time.Time `json:"issue_date"`
	SubjectLine string    `json:"subject_line"`
	OpenRate    float64   `json:"open_rate"`
	ClickRate   float64   `json:"click_rate"`
	ReplyCount  int       `json:"reply_count"`
	Subscribers int       `json:"subscribers"`
}

// RepliesPerThousand is ReplyCount / Subscribers * 1000.
func (r MetricsRecord) RepliesPerThousand() float64 {
	if r.Subscribers <= 0 {
		return 0
	}
	return float64(r.ReplyCount) / float64(r.Subscribers) * 1000
}
