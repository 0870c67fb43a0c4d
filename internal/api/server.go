package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/rockfall/internal/app"
	"github.com/banshee-data/rockfall/internal/config"
	"github.com/banshee-data/rockfall/internal/cycles"
	"github.com/banshee-data/rockfall/internal/db"
	"github.com/banshee-data/rockfall/internal/httputil"
	"github.com/banshee-data/rockfall/internal/input"
	"github.com/banshee-data/rockfall/internal/report"
	"github.com/banshee-data/rockfall/internal/shaft"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

const (
	// MaxQueries bounds the drop counts answered by one request.
	MaxQueries = 64
	// DefaultListLimit is the page size of GET /api/runs.
	DefaultListLimit = 50
	maxListLimit     = 1000
	// MaxDirectDrops bounds drop counts answered by direct simulation.
	MaxDirectDrops = app.VerifyLimit
	// DefaultCycleBudget is applied when a request leaves
	// max_simulated_cycles unset.
	DefaultCycleBudget = 100_000
)

var (
	runErrors = []httputil.ErrorClass{
		{Target: shaft.ErrInvalidInput, Status: http.StatusBadRequest},
		{Target: cycles.ErrCycleBudget, Status: http.StatusUnprocessableEntity},
	}
	storeErrors = []httputil.ErrorClass{
		{Target: db.ErrRunNotFound, Status: http.StatusNotFound},
	}
)

type Server struct {
	db     *db.DB
	store  *db.RunStore
	runner *app.Runner
}

// NewServer returns a server answering extrapolation requests. With a nil
// database runs are not recorded and the history routes answer 404.
func NewServer(database *db.DB) *Server {
	s := &Server{db: database}
	if database != nil {
		s.store = db.NewRunStore(database.DB)
	}
	s.runner = app.NewRunner(s.store, nil)
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/extrapolate", s.extrapolate)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/", s.runByID)
	mux.HandleFunc("/charts/runs/", s.runChart)
	return mux
}

// ExtrapolateRequest is the body of POST /api/extrapolate. Impulses uses
// the same '<' / '>' text as the jet file.
type ExtrapolateRequest struct {
	Impulses string                   `json:"impulses"`
	Drops    []uint64                 `json:"drops"`
	Config   *config.SimulationConfig `json:"config,omitempty"`
	Direct   bool                     `json:"direct,omitempty"`
	Verify   bool                     `json:"verify,omitempty"`
}

type ExtrapolateResponse struct {
	Outcomes []app.Outcome `json:"outcomes"`
}

// RunDetail is the body of GET /api/runs/{id}.
type RunDetail struct {
	Run     *db.Run        `json:"run"`
	Cycles  []db.RunCycle  `json:"cycles"`
	Summary report.Summary `json:"summary"`
}

func (s *Server) extrapolate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}
	var req ExtrapolateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Drops) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "drops must list at least one drop count")
		return
	}
	if len(req.Drops) > MaxQueries {
		httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("at most %d drop counts per request", MaxQueries))
		return
	}
	if req.Direct {
		for _, n := range req.Drops {
			if n > MaxDirectDrops {
				httputil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("direct simulation is limited to %d drops, got %d", MaxDirectDrops, n))
				return
			}
		}
	}
	imp, err := input.ParseImpulses(req.Impulses)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := s.runner.Run(app.Request{
		Config:   withCycleBudget(req.Config),
		Impulses: imp,
		Drops:    req.Drops,
		Direct:   req.Direct,
		Verify:   req.Verify,
	})
	if err != nil {
		httputil.WriteErrorFor(w, err, runErrors...)
		return
	}
	httputil.WriteJSONOK(w, ExtrapolateResponse{Outcomes: out})
}

// withCycleBudget returns cfg with max_simulated_cycles defaulted to
// DefaultCycleBudget. The caller's config is not modified.
func withCycleBudget(cfg *config.SimulationConfig) *config.SimulationConfig {
	var c config.SimulationConfig
	if cfg != nil {
		c = *cfg
	}
	if c.MaxSimulatedCycles == nil {
		budget := DefaultCycleBudget
		c.MaxSimulatedCycles = &budget
	}
	return &c
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.store == nil {
		httputil.WriteError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	limit := DefaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxListLimit {
			httputil.WriteError(w, http.StatusBadRequest, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.store.List(limit)
	if err != nil {
		httputil.WriteErrorFor(w, fmt.Errorf("list runs: %w", err))
		return
	}
	if runs == nil {
		runs = []*db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) runByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/runs/")
	if id == "" || strings.Contains(id, "/") {
		httputil.WriteError(w, http.StatusNotFound, db.ErrRunNotFound.Error())
		return
	}
	if s.store == nil {
		httputil.WriteError(w, http.StatusNotFound, "run history is disabled")
		return
	}

	switch r.Method {
	case http.MethodGet:
		detail, err := s.loadRun(id)
		if err != nil {
			httputil.WriteErrorFor(w, err, storeErrors...)
			return
		}
		httputil.WriteJSONOK(w, detail)
	case http.MethodDelete:
		if err := s.store.Delete(id); err != nil {
			httputil.WriteErrorFor(w, err, storeErrors...)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		httputil.MethodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) runChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/charts/runs/")
	if id == "" || strings.Contains(id, "/") || s.store == nil {
		httputil.WriteError(w, http.StatusNotFound, db.ErrRunNotFound.Error())
		return
	}
	detail, err := s.loadRun(id)
	if err != nil {
		httputil.WriteErrorFor(w, err, storeErrors...)
		return
	}

	title := fmt.Sprintf("Run %s: %d drops, height %d", detail.Run.RunID, detail.Run.Drops, detail.Run.Height)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderRunPage(w, title, report.PointsFromCycles(detail.Cycles), nil); err != nil {
		log.Printf("failed to render chart for run %s: %v", id, err)
	}
}

func (s *Server) loadRun(id string) (*RunDetail, error) {
	run, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.Cycles(id)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []db.RunCycle{}
	}
	var loop *cycles.LoopInfo
	if run.LoopStartCycle != nil && run.LoopPeriod != nil && run.LoopGain != nil {
		loop = &cycles.LoopInfo{StartCycle: *run.LoopStartCycle, Period: *run.LoopPeriod, Gain: *run.LoopGain}
	}
	return &RunDetail{
		Run:     run,
		Cycles:  rows,
		Summary: report.Summarise(report.PointsFromCycles(rows), loop),
	}, nil
}
