package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yangwenmai/letterpress/internal/model"
)

type runFlags struct {
	from        string
	metricsCSV  string
	query       string
	brief       string
	cover       string
	title       string
	slug        string
	tags        string
	publishDate string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the whole pipeline once and print the package path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := f.request(cmd)
			if err != nil {
				return err
			}

			a, err := setup(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			run := model.NewRun(uuid.New().String(), req, model.StatusRunning)
			if err := a.store.CreateRun(cmd.Context(), run); err != nil {
				return err
			}
			res, err := a.orch.Execute(cmd.Context(), run)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Pipeline complete. Package created at: %s\n", res.ArchivePath)
			if res.PublishedURI != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Published to: %s\n", res.PublishedURI)
			}
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.from, "from", "", "YAML file with run inputs; flags override its values")
	fl.StringVar(&f.metricsCSV, "metrics-csv", "", "path to the metrics CSV")
	fl.StringVar(&f.query, "research-query", "", "research query")
	fl.StringVar(&f.brief, "issue-brief", "", "short brief for this issue")
	fl.StringVar(&f.cover, "cover-image", "", "path to the cover image")
	fl.StringVar(&f.title, "title", "", "issue title")
	fl.StringVar(&f.slug, "slug", "", "issue slug")
	fl.StringVar(&f.tags, "tags", "", "comma-separated tags")
	fl.StringVar(&f.publishDate, "publish-date", "", "ISO-8601 publish date")
	return cmd
}

// request merges the optional YAML file with explicitly set flags.
func (f runFlags) request(cmd *cobra.Command) (model.RunRequest, error) {
	var req model.RunRequest
	if f.from != "" {
		data, err := os.ReadFile(f.from)
		if err != nil {
			return req, model.Wrap(model.KindNotFound, "run", err)
		}
		if err := yaml.Unmarshal(data, &req); err != nil {
			return req, model.E(model.KindInvalidInput, "run", "parse %s: %v", f.from, err)
		}
	}

	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("metrics-csv", &req.MetricsCSV, f.metricsCSV)
	set("research-query", &req.ResearchQuery, f.query)
	set("issue-brief", &req.IssueBrief, f.brief)
	set("cover-image", &req.CoverImage, f.cover)
	set("title", &req.Title, f.title)
	set("slug", &req.Slug, f.slug)
	set("publish-date", &req.PublishDate, f.publishDate)
	if cmd.Flags().Changed("tags") {
		req.Tags = model.SplitTags(f.tags)
	}
	return req, req.Validate()
}
