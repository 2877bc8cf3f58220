package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yangwenmai/letterpress/internal/engine"
	"github.com/yangwenmai/letterpress/internal/model"
	"github.com/yangwenmai/letterpress/internal/packager"
	"github.com/yangwenmai/letterpress/internal/store"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Options configures a Server.
type Options struct {
	// CORSOrigins are the allowed origins; empty allows any.
	CORSOrigins []string
	// PackageDir receives archives built by the package endpoint.
	PackageDir string
	// PackagerOptions are passed to the package endpoint's packager.
	PackagerOptions []packager.Option
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	store store.RunRepository
	orch  *engine.Orchestrator
	gen   *engine.Generator
	opts  Options
	mux   *chi.Mux
}

// New creates a new API server.
func New(s store.RunRepository, orch *engine.Orchestrator, opts Options) *Server {
	srv := &Server{store: s, orch: orch, gen: orch.Generator(), opts: opts, mux: chi.NewRouter()}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(limitBody)
	r.Use(jsonContent)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/generate-research", s.handleResearch)
		r.Post("/generate-outlines", s.handleOutlines)
		r.Post("/parse-outline", s.handleParseOutline)
		r.Post("/create-draft", s.handleDraft)
		r.Post("/edit-draft", s.handleEdit)
		r.Post("/suggest-visuals", s.handleVisuals)
		r.Post("/forecast-performance", s.handleForecast)
		r.Post("/package-for-substack", s.handlePackage)
		r.Post("/analyze-performance", s.handleAnalysis)
		r.Post("/run-pipeline", s.handleRunPipeline)

		r.Post("/runs", s.handleEnqueueRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/stats", s.handleRunStats)
		r.Get("/runs/{id}", s.handleGetRun)
	})
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch model.KindOf(err) {
	case model.KindInvalidInput, model.KindSchema:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure maps err to a status and logs server-side failures.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	writeError(w, status, err.Error())
}

// decode reads a JSON body, reporting malformed input as INVALID_INPUT.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return model.E(model.KindInvalidInput, "decode", "request body exceeds %d bytes", tooLarge.Limit)
		}
		return model.E(model.KindInvalidInput, "decode", "invalid JSON body: %v", err)
	}
	return nil
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	return model.SplitTags(s)
}

// tagList accepts either a JSON array of strings or one comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("tags must be a list or a comma-separated string")
	}
	*t = model.SplitTags(strings.TrimSpace(s))
	return nil
}
