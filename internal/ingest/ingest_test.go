package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rss = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Creator Weekly</title>
<item><title>Reply rates are the new open rates</title><link>https://example.com/a</link><pubDate>Mon, 01 Jul 2024 09:00:00 +0000</pubDate></item>
<item><title></title><link>https://example.com/untitled</link></item>
<item><title>Subject lines that work</title><link>https://example.com/b</link></item>
</channel></rss>`

const articleHTML = `<html><head><title>Ignored</title></head><body>
<article><h1>Deliverability basics</h1>
<p>Warm up new sending domains slowly, and watch your complaint rate closely every single week.</p>
<p>Segment your most engaged readers first so that early opens signal quality to mailbox providers.</p>
</article></body></html>`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b-growth.md", "# Growth Loops\n\n\n\nReferral   programs.")
	writeFile(t, dir, "a_deliverability.html", articleHTML)
	writeFile(t, dir, "notes.txt", "ignored")

	docs, err := LoadDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "a deliverability", docs[0].Title)
	assert.Contains(t, docs[0].Text, "Warm up new sending domains")
	assert.NotContains(t, docs[0].Text, "<p>")

	assert.Equal(t, "Growth Loops", docs[1].Title)
	assert.Equal(t, "# Growth Loops\n\nReferral programs.", docs[1].Text)
}

func TestLoadDocuments_Empty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "ignored")
	_, err := LoadDocuments(dir)
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestLoadDocuments_MissingDir(t *testing.T) {
	_, err := LoadDocuments(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestRank(t *testing.T) {
	docs := []Document{
		{Title: "Pricing"},
		{Title: "Reply engagement", Text: "newsletter replies"},
		{Title: "Other"},
	}
	ranked := Rank(docs, "newsletter reply engagement")
	assert.Equal(t, "Reply engagement", ranked[0].Title)
	assert.Equal(t, "Pricing", ranked[1].Title)
	assert.Equal(t, "Other", ranked[2].Title)
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", maxTextLength+5)
	out := truncate(long)
	assert.True(t, strings.HasSuffix(out, "... [truncated]"))
	assert.Equal(t, maxTextLength, len([]rune(strings.TrimSuffix(out, "\n... [truncated]"))))
}

func TestGather_DocumentsAndFeeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rss))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeFile(t, dir, "growth.md", "# Growth\nbody")

	b, err := NewGatherer(dir, []string{srv.URL}).Gather(context.Background(), "growth")
	require.NoError(t, err)
	require.Len(t, b.Documents, 1)
	require.Len(t, b.Headlines, 2)
	assert.Equal(t, "Reply rates are the new open rates", b.Headlines[0].Title)
	assert.Equal(t, "Creator Weekly", b.Headlines[0].Source)
	assert.False(t, b.Headlines[0].Published.IsZero())
}

func TestGather_PartialFailureKeepsWhatWorked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(rss))
	}))
	defer srv.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	b, err := NewGatherer(filepath.Join(t.TempDir(), "missing"), []string{bad.URL, srv.URL}).Gather(context.Background(), "")
	require.Error(t, err)
	require.NotNil(t, b)
	assert.Empty(t, b.Documents)
	assert.Len(t, b.Headlines, 2)
	assert.False(t, errors.Is(err, ErrNoDocuments), "missing dir is a read error, not an empty dir")
}

func TestGather_StalledFeedTimesOut(t *testing.T) {
	release := make(chan struct{})
	stalled := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer stalled.Close()
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(rss))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeFile(t, dir, "growth.md", "# Growth\nbody")

	g := NewGatherer(dir, []string{stalled.URL, srv.URL}, WithFeedTimeout(100*time.Millisecond))
	start := time.Now()
	b, err := g.Gather(context.Background(), "growth")
	require.Error(t, err)
	assert.Contains(t, err.Error(), stalled.URL)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Len(t, b.Documents, 1)
	assert.Len(t, b.Headlines, 2)
}
