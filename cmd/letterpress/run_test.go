package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yangwenmai/letterpress/internal/model"
)

const requestYAML = `metrics_csv: data/metrics.csv
research_query: reply rates
issue_brief: a short issue
cover_image: cover.png
title: From File
slug: from-file
tags: [email, growth]
publish_date: "2024-07-02"
`

func TestRunFlags_YAMLWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(requestYAML), 0o644))

	cmd := newRunCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--from", path, "--title", "From Flag", "--tags", "a, b ,c"}))

	f := runFlags{from: path, title: "From Flag", tags: "a, b ,c"}
	req, err := f.request(cmd)
	require.NoError(t, err)
	assert.Equal(t, "From Flag", req.Title)
	assert.Equal(t, "from-file", req.Slug)
	assert.Equal(t, []string{"a", "b", "c"}, req.Tags)
	assert.Equal(t, "2024-07-02", req.PublishDate)
}

func TestRunFlags_MissingInputs(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("title", "", "")
	require.NoError(t, cmd.Flags().Set("title", "Only a title"))

	_, err := runFlags{title: "Only a title"}.request(cmd)
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindInvalidInput))
	assert.Contains(t, err.Error(), "metrics_csv")
}

func TestRunFlags_MissingFile(t *testing.T) {
	_, err := runFlags{from: filepath.Join(t.TempDir(), "nope.yaml")}.request(&cobra.Command{})
	assert.True(t, model.IsKind(err, model.KindNotFound))
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "serve"}, names)
}
