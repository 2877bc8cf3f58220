package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/yangwenmai/letterpress/internal/engine"
	"github.com/yangwenmai/letterpress/internal/metrics"
	"github.com/yangwenmai/letterpress/internal/model"
	"github.com/yangwenmai/letterpress/internal/outline"
	"github.com/yangwenmai/letterpress/internal/packager"
	"github.com/yangwenmai/letterpress/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ---------------------------------------------------------------------------
// Stage endpoints
// ---------------------------------------------------------------------------

type researchRequest struct {
	CSVPath string `json:"csv_path"`
	Query   string `json:"query"`
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	records, err := metrics.Load(req.CSVPath)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	out, err := s.gen.Research(r.Context(), engine.ResearchInput{Records: records, Query: req.Query})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"research_brief": out})
}

type outlinesRequest struct {
	ResearchBrief string `json:"research_brief"`
	IssueBrief    string `json:"issue_brief"`
}

func (s *Server) handleOutlines(w http.ResponseWriter, r *http.Request) {
	var req outlinesRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	out, err := s.gen.Outlines(r.Context(), req.ResearchBrief, req.IssueBrief)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outlines_markdown": out})
}

type parseOutlineRequest struct {
	OutlinesMarkdown string `json:"outlines_markdown"`
}

type parseOutlineResponse struct {
	OutlineMarkdown string   `json:"outline_markdown"`
	SubjectLines    []string `json:"subject_lines"`
}

func (s *Server) handleParseOutline(w http.ResponseWriter, r *http.Request) {
	var req parseOutlineRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	res := outline.Parse(req.OutlinesMarkdown)
	writeJSON(w, http.StatusOK, parseOutlineResponse{OutlineMarkdown: res.Option1, SubjectLines: res.SubjectLines})
}

type draftRequest struct {
	OutlineMarkdown string `json:"outline_markdown"`
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	out, err := s.gen.Draft(r.Context(), req.OutlineMarkdown)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"draft_markdown": out})
}

type editRequest struct {
	DraftMarkdown string `json:"draft_markdown"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	rev, err := s.gen.Edit(r.Context(), req.DraftMarkdown)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

type visualsRequest struct {
	DraftExcerpt string `json:"draft_excerpt"`
}

func (s *Server) handleVisuals(w http.ResponseWriter, r *http.Request) {
	var req visualsRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	out, err := s.gen.Visuals(r.Context(), req.DraftExcerpt)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"visual_prompts": out})
}

type forecastRequest struct {
	CSVPath      string   `json:"csv_path"`
	SubjectLines []string `json:"subject_lines"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	var req forecastRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	records, err := metrics.Load(req.CSVPath, metrics.ForecastColumns...)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	out, err := s.gen.Forecast(r.Context(), records, req.SubjectLines)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"forecast_markdown": out})
}

type packageRequest struct {
	DraftPath      string  `json:"draft_path"`
	CoverImagePath string  `json:"cover_image_path"`
	Title          string  `json:"title"`
	Slug           string  `json:"slug"`
	Tags           tagList `json:"tags"`
	PublishDate    string  `json:"publish_date"`
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	zipPath, err := packager.NewOS(s.opts.PackageDir, s.opts.PackagerOptions...).Build(r.Context(), packager.Input{
		DraftPath: req.DraftPath,
		CoverPath: req.CoverImagePath,
		Descriptor: model.PackageDescriptor{
			Title:       req.Title,
			Slug:        req.Slug,
			Tags:        req.Tags,
			PublishDate: req.PublishDate,
		},
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"package_zip_path": zipPath})
}

type analysisRequest struct {
	ForecastMarkdown string `json:"forecast_markdown"`
	ActualsCSVPath   string `json:"actuals_csv_path"`
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := decode(r, &req); err != nil {
		writeFailure(w, r, err)
		return
	}
	actuals, err := metrics.Load(req.ActualsCSVPath, metrics.AnalysisColumns...)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	out, err := s.gen.Analyze(r.Context(), req.ForecastMarkdown, actuals)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis_markdown": out})
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

type runBody struct {
	MetricsCSV    string  `json:"metrics_csv"`
	ResearchQuery string  `json:"research_query"`
	IssueBrief    string  `json:"issue_brief"`
	CoverImage    string  `json:"cover_image"`
	Title         string  `json:"title"`
	Slug          string  `json:"slug"`
	Tags          tagList `json:"tags"`
	PublishDate   string  `json:"publish_date"`
}

func (b runBody) request() model.RunRequest {
	return model.RunRequest{
		MetricsCSV:    b.MetricsCSV,
		ResearchQuery: b.ResearchQuery,
		IssueBrief:    b.IssueBrief,
		CoverImage:    b.CoverImage,
		Title:         b.Title,
		Slug:          b.Slug,
		Tags:          b.Tags,
		PublishDate:   b.PublishDate,
	}
}

// decodeRun reads and validates a full run request.
func decodeRun(r *http.Request) (model.RunRequest, error) {
	var body runBody
	if err := decode(r, &body); err != nil {
		return model.RunRequest{}, err
	}
	req := body.request()
	return req, req.Validate()
}

// POST /api/run-pipeline runs every stage before responding.
func (s *Server) handleRunPipeline(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRun(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	run := model.NewRun(uuid.New().String(), req, model.StatusRunning)
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeFailure(w, r, err)
		return
	}

	res, err := s.orch.Execute(r.Context(), run)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":           run.ID,
		"package_zip_path": res.ArchivePath,
		"subject_lines":    res.SubjectLines,
		"published_uri":    res.PublishedURI,
	})
}

// POST /api/runs queues a run for the worker.
func (s *Server) handleEnqueueRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRun(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	run := model.NewRun(uuid.New().String(), req, model.StatusQueued)
	if err := s.store.CreateRun(r.Context(), run); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": run.ID, "status": run.Status})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := store.RunFilter{Status: splitComma(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountByStatus(r.Context())
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
