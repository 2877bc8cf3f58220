package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// Headline is one item from a trending feed.
type Headline struct {
	Title     string
	Link      string
	Source    string
	Published time.Time
}

// Bundle is everything a gather pass collected.
type Bundle struct {
	Documents []Document
	Headlines []Headline
}

// Gatherer collects auxiliary research material. Every part is optional:
// failures are reported, and whatever was collected is still returned.
type Gatherer struct {
	dir         string
	feeds       []string
	parser      *gofeed.Parser
	perFeed     int
	maxResults  int
	feedTimeout time.Duration
}

// DefaultFeedTimeout bounds each feed fetch.
const DefaultFeedTimeout = 10 * time.Second

// GathererOption configures a Gatherer.
type GathererOption func(*Gatherer)

// WithFeedTimeout sets the per-feed fetch deadline.
func WithFeedTimeout(d time.Duration) GathererOption {
	return func(g *Gatherer) { g.feedTimeout = d }
}

// NewGatherer creates a Gatherer over a content directory and feed URLs.
func NewGatherer(dir string, feeds []string, opts ...GathererOption) *Gatherer {
	g := &Gatherer{
		dir:         dir,
		feeds:       feeds,
		parser:      gofeed.NewParser(),
		perFeed:     5,
		maxResults:  10,
		feedTimeout: DefaultFeedTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.parser.Client = &http.Client{Timeout: g.feedTimeout}
	return g
}

// Gather loads documents ranked against query and the newest feed headlines.
// The returned bundle is never nil.
func (g *Gatherer) Gather(ctx context.Context, query string) (*Bundle, error) {
	b := &Bundle{}
	var errs []error

	docs, err := LoadDocuments(g.dir)
	if err != nil {
		errs = append(errs, err)
	}
	docs = Rank(docs, query)
	if len(docs) > g.maxResults {
		docs = docs[:g.maxResults]
	}
	b.Documents = docs

	for _, url := range g.feeds {
		headlines, err := g.fetch(ctx, url)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", url, err))
			continue
		}
		b.Headlines = append(b.Headlines, headlines...)
	}

	slog.Debug("gathered research material", "documents", len(b.Documents), "headlines", len(b.Headlines))
	return b, errors.Join(errs...)
}

func (g *Gatherer) fetch(ctx context.Context, url string) ([]Headline, error) {
	ctx, cancel := context.WithTimeout(ctx, g.feedTimeout)
	defer cancel()
	feed, err := g.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}
	return headlinesFrom(feed, g.perFeed), nil
}

func headlinesFrom(feed *gofeed.Feed, limit int) []Headline {
	var out []Headline
	for _, item := range feed.Items {
		if len(out) == limit {
			break
		}
		if item == nil || item.Title == "" {
			continue
		}
		h := Headline{Title: item.Title, Link: item.Link, Source: feed.Title}
		if item.PublishedParsed != nil {
			h.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			h.Published = *item.UpdatedParsed
		}
		out = append(out, h)
	}
	return out
}
