package api

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yangwenmai/letterpress/internal/engine"
	"github.com/yangwenmai/letterpress/internal/model"
	"github.com/yangwenmai/letterpress/internal/packager"
	"github.com/yangwenmai/letterpress/internal/store"
)

const metricsCSV = `IssueDate,SubjectLine,OpenRate,ClickRate,ReplyCount,Subscribers
2024-06-01,June notes,41.2,5.1,12,1000
2024-06-08,Second June,38.0,4.4,3,1500
2024-06-15,Mid June,44.9,6.0,20,900
`

var packDay = func() time.Time { return time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC) }

type testEnv struct {
	srv   *Server
	store *store.Store
	dir   string
	csv   string
	cover string
}

func newTestServer(t *testing.T, client engine.ModelClient) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := store.OpenSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := store.New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	csvPath := filepath.Join(dir, "metrics.csv")
	if err := os.WriteFile(csvPath, []byte(metricsCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	coverPath := filepath.Join(dir, "cover.png")
	f, err := os.Create(coverPath)
	if err != nil {
		t.Fatal(err)
	}
	png.Encode(f, image.NewGray(image.Rect(0, 0, 2, 2)))
	f.Close()

	layout := engine.Layout{OutputDir: filepath.Join(dir, "output"), PackageDir: filepath.Join(dir, "package")}
	orch := engine.NewOrchestrator(engine.NewGenerator(client), layout,
		engine.WithLedger(s),
		engine.WithRunRecorder(s),
		engine.WithPackagerOptions(packager.WithClock(packDay)),
	)
	srv := New(s, orch, Options{
		PackageDir:      layout.PackageDir,
		PackagerOptions: []packager.Option{packager.WithClock(packDay)},
	})
	return &testEnv{srv: srv, store: s, dir: dir, csv: csvPath, cover: coverPath}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode JSON: %v\nbody: %s", err, rr.Body.String())
	}
	return result
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func (e *testEnv) requestJSON(t *testing.T) string {
	return mustJSON(t, map[string]any{
		"metrics_csv":    e.csv,
		"research_query": "why replies dropped",
		"issue_brief":    "a short issue about replies",
		"cover_image":    e.cover,
		"title":          "Reply Season",
		"slug":           "reply-season",
		"tags":           "email, growth",
		"publish_date":   "2024-07-02",
	})
}

func TestHealth(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	rr := doRequest(t, env.srv.Handler(), "GET", "/api/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decodeJSON(t, rr)["status"]; got != "ok" {
		t.Errorf("status = %v, want ok", got)
	}
}

func TestGenerateResearch(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	h := env.srv.Handler()

	rr := doRequest(t, h, "POST", "/api/generate-research", mustJSON(t, map[string]string{"csv_path": env.csv, "query": "replies"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	brief, _ := decodeJSON(t, rr)["research_brief"].(string)
	if !strings.HasPrefix(brief, "## Pain Points") {
		t.Errorf("research_brief should start with the pain points section, got %q", brief)
	}
}

func TestGenerateResearch_Errors(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	h := env.srv.Handler()

	cases := []struct {
		name string
		body string
		want int
	}{
		{"missing file", mustJSON(t, map[string]string{"csv_path": filepath.Join(env.dir, "nope.csv"), "query": "q"}), http.StatusNotFound},
		{"empty query", mustJSON(t, map[string]string{"csv_path": env.csv, "query": ""}), http.StatusBadRequest},
		{"bad json", `{"csv_path":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, h, "POST", "/api/generate-research", tc.body)
			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d (body %s)", rr.Code, tc.want, rr.Body.String())
			}
			if _, ok := decodeJSON(t, rr)["error"]; !ok {
				t.Error("error body missing")
			}
		})
	}
}

func TestSchemaErrorIs400(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	bad := filepath.Join(env.dir, "bad.csv")
	os.WriteFile(bad, []byte("IssueDate,SubjectLine\n2024-01-01,x\n"), 0o644)

	rr := doRequest(t, env.srv.Handler(), "POST", "/api/forecast-performance", mustJSON(t, map[string]any{"csv_path": bad, "subject_lines": []string{"a"}}))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestParseOutline(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	body := mustJSON(t, map[string]string{"outlines_markdown": "# Outline Option 1\n## Subject Line Candidates\n- \"One\"\n- Two\n# Outline Option 2\n- Three"})

	rr := doRequest(t, env.srv.Handler(), "POST", "/api/parse-outline", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp parseOutlineResponse
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.SubjectLines) != 2 || resp.SubjectLines[0] != "One" || resp.SubjectLines[1] != "Two" {
		t.Errorf("subject_lines = %v", resp.SubjectLines)
	}
	if strings.Contains(resp.OutlineMarkdown, "Option 2") {
		t.Errorf("outline_markdown leaked option 2: %q", resp.OutlineMarkdown)
	}
}

func TestEditDraft(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	rr := doRequest(t, env.srv.Handler(), "POST", "/api/edit-draft", `{"draft_markdown":"# Draft"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeJSON(t, rr)
	if resp["polished_markdown"] == "" || resp["revision_summary"] == "" {
		t.Errorf("resp = %v", resp)
	}
}

func TestUpstreamFailureIs502(t *testing.T) {
	failing := engine.ModelClientFunc(func(context.Context, engine.CompletionRequest) (string, error) {
		return "", errors.New("503 service unavailable")
	})
	env := newTestServer(t, failing)

	rr := doRequest(t, env.srv.Handler(), "POST", "/api/create-draft", `{"outline_markdown":"# Outline"}`)
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
}

func TestPackageForSubstack(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	draft := filepath.Join(env.dir, "polished.md")
	os.WriteFile(draft, []byte("# Hello"), 0o644)

	body := mustJSON(t, map[string]any{
		"draft_path":       draft,
		"cover_image_path": env.cover,
		"title":            "Hello",
		"slug":             "hello",
		"tags":             []string{"a", "b"},
		"publish_date":     "2024-07-02",
	})
	rr := doRequest(t, env.srv.Handler(), "POST", "/api/package-for-substack", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	zipPath, _ := decodeJSON(t, rr)["package_zip_path"].(string)
	if filepath.Base(zipPath) != "2024-07-01.zip" {
		t.Errorf("package_zip_path = %q", zipPath)
	}
	if _, err := os.Stat(zipPath); err != nil {
		t.Errorf("archive missing: %v", err)
	}

	body = strings.Replace(body, `"title":"Hello"`, `"title":""`, 1)
	rr = doRequest(t, env.srv.Handler(), "POST", "/api/package-for-substack", body)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty title status = %d, want 400", rr.Code)
	}
}

func TestRunPipeline(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	h := env.srv.Handler()

	rr := doRequest(t, h, "POST", "/api/run-pipeline", env.requestJSON(t))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	runID, _ := resp["run_id"].(string)
	if zip, _ := resp["package_zip_path"].(string); filepath.Base(zip) != "2024-07-01.zip" {
		t.Errorf("package_zip_path = %v", resp["package_zip_path"])
	}

	rr = doRequest(t, h, "GET", "/api/runs/"+runID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get run status = %d", rr.Code)
	}
	var run model.RunWithArtifacts
	json.Unmarshal(rr.Body.Bytes(), &run)
	if run.Status != model.StatusSucceeded {
		t.Errorf("run status = %q, want SUCCEEDED", run.Status)
	}
	if len(run.Request.Tags) != 2 || run.Request.Tags[1] != "growth" {
		t.Errorf("tags = %v", run.Request.Tags)
	}
	if len(run.Artifacts) != 10 {
		t.Errorf("artifacts = %d, want 10", len(run.Artifacts))
	}
}

func TestRunPipeline_MissingFields(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	rr := doRequest(t, env.srv.Handler(), "POST", "/api/run-pipeline", `{"title":"only a title"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if msg, _ := decodeJSON(t, rr)["error"].(string); !strings.Contains(msg, "metrics_csv") {
		t.Errorf("error = %q, should name missing fields", msg)
	}
}

func TestEnqueueAndListRuns(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	h := env.srv.Handler()

	rr := doRequest(t, h, "POST", "/api/runs", env.requestJSON(t))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := decodeJSON(t, rr)["status"]; got != model.StatusQueued {
		t.Errorf("status = %v, want QUEUED", got)
	}

	rr = doRequest(t, h, "GET", "/api/runs?status=QUEUED", "")
	var runs []model.Run
	json.Unmarshal(rr.Body.Bytes(), &runs)
	if len(runs) != 1 {
		t.Errorf("queued runs = %d, want 1", len(runs))
	}

	rr = doRequest(t, h, "GET", "/api/runs/stats", "")
	if got := decodeJSON(t, rr)[model.StatusQueued]; got != float64(1) {
		t.Errorf("stats QUEUED = %v, want 1", got)
	}

	rr = doRequest(t, h, "GET", "/api/runs?limit=abc", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rr.Code)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	rr := doRequest(t, env.srv.Handler(), "GET", "/api/runs/nonexistent", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestServer(t, &engine.StubModelClient{})
	req := httptest.NewRequest("OPTIONS", "/api/run-pipeline", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
