package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/rockfall/internal/app"
	"github.com/banshee-data/rockfall/internal/config"
	"github.com/banshee-data/rockfall/internal/db"
	"github.com/banshee-data/rockfall/internal/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleJets = ">>><<><>><<<>><>>><<<>>><<<><<<>><>><<>>"

func setupTestServer(t *testing.T) (*Server, *db.DB) {
	t.Helper()
	dbInst, err := db.NewDB(cloneTestDB(t))
	if err != nil {
		t.Fatalf("failed to create test DB: %v", err)
	}
	t.Cleanup(func() { dbInst.Close() })
	return NewServer(dbInst), dbInst
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func extrapolateBody(t *testing.T, req ExtrapolateRequest) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(req))
	return buf.String()
}

func TestExtrapolate(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	w := do(t, mux, http.MethodPost, "/api/extrapolate", extrapolateBody(t, ExtrapolateRequest{
		Impulses: exampleJets + "\n",
		Drops:    []uint64{2022, 1_000_000_000_000},
		Verify:   true,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ExtrapolateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Outcomes, 2)
	assert.Equal(t, uint64(3068), resp.Outcomes[0].Height)
	assert.True(t, resp.Outcomes[0].Verified)
	assert.Equal(t, uint64(1_514_285_714_288), resp.Outcomes[1].Height)
	for _, o := range resp.Outcomes {
		assert.NotEmpty(t, o.RunID, "runs are recorded when a database is attached")
	}
}

func TestExtrapolate_WithoutDatabase(t *testing.T) {
	mux := NewServer(nil).ServeMux()

	w := do(t, mux, http.MethodPost, "/api/extrapolate", `{"impulses":"`+exampleJets+`","drops":[2022],"direct":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ExtrapolateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []app.Outcome{{Drops: 2022, Height: 3068, Direct: true, Duration: resp.Outcomes[0].Duration}}, resp.Outcomes)

	w = do(t, mux, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtrapolate_Errors(t *testing.T) {
	mux := NewServer(nil).ServeMux()
	budget := `{"impulses":"` + exampleJets + `","drops":[1000000000000],"config":{"max_simulated_cycles":3}}`

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"malformed json", http.MethodPost, `{"impulses":`, http.StatusBadRequest},
		{"unknown field", http.MethodPost, `{"impulses":"<>","drops":[1],"extra":1}`, http.StatusBadRequest},
		{"no drops", http.MethodPost, `{"impulses":"<>","drops":[]}`, http.StatusBadRequest},
		{"bad impulse", http.MethodPost, `{"impulses":"<x>","drops":[1]}`, http.StatusBadRequest},
		{"empty impulses", http.MethodPost, `{"impulses":"","drops":[1]}`, http.StatusBadRequest},
		{"negative drops", http.MethodPost, `{"impulses":"<>","drops":[-1]}`, http.StatusBadRequest},
		{"invalid config", http.MethodPost, `{"impulses":"<>","drops":[1],"config":{"width":2}}`, http.StatusBadRequest},
		{"cycle budget", http.MethodPost, budget, http.StatusUnprocessableEntity},
		{"direct too large", http.MethodPost, `{"impulses":"<>","drops":[10,1000000000000],"direct":true}`, http.StatusBadRequest},
		{"direct just over limit", http.MethodPost, `{"impulses":"<>","drops":[100001],"direct":true}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, tt.method, "/api/extrapolate", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())

			var body httputil.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			assert.Equal(t, tt.status, body.Status)
		})
	}

	drops := make([]string, MaxQueries+1)
	for i := range drops {
		drops[i] = fmt.Sprint(i)
	}
	w := do(t, mux, http.MethodPost, "/api/extrapolate", `{"impulses":"<>","drops":[`+strings.Join(drops, ",")+`]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtrapolate_DirectAtLimit(t *testing.T) {
	mux := NewServer(nil).ServeMux()

	w := do(t, mux, http.MethodPost, "/api/extrapolate", fmt.Sprintf(`{"impulses":"<>","drops":[%d],"direct":true,"config":{"width":1,"pieces":[["#"]]}}`, MaxDirectDrops))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ExtrapolateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(MaxDirectDrops), resp.Outcomes[0].Height)
}

func TestWithCycleBudget(t *testing.T) {
	cfg := withCycleBudget(nil)
	require.NotNil(t, cfg.MaxSimulatedCycles)
	assert.Equal(t, DefaultCycleBudget, *cfg.MaxSimulatedCycles)

	width := 5
	in := &config.SimulationConfig{Width: &width}
	cfg = withCycleBudget(in)
	assert.Equal(t, 5, cfg.GetWidth())
	assert.Equal(t, DefaultCycleBudget, cfg.GetMaxSimulatedCycles())
	assert.Nil(t, in.MaxSimulatedCycles, "caller's config is left alone")

	budget := 7
	cfg = withCycleBudget(&config.SimulationConfig{MaxSimulatedCycles: &budget})
	assert.Equal(t, 7, cfg.GetMaxSimulatedCycles())
}

func TestRunHistory(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	w := do(t, mux, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(t, mux, http.MethodPost, "/api/extrapolate", extrapolateBody(t, ExtrapolateRequest{
		Impulses: exampleJets,
		Drops:    []uint64{10, 1_000_000_000_000},
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp ExtrapolateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	bigID := resp.Outcomes[1].RunID

	w = do(t, mux, http.MethodGet, "/api/runs?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []db.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	w = do(t, mux, http.MethodGet, "/api/runs/"+bigID, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail RunDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, uint64(1_514_285_714_288), detail.Run.Height)
	require.NotNil(t, detail.Run.LoopPeriod)
	assert.Equal(t, detail.Run.SimulatedCycles, len(detail.Cycles))
	assert.Equal(t, len(detail.Cycles), detail.Summary.Cycles)
	assert.Greater(t, detail.Summary.RowsPerCycle, 0.0)

	w = do(t, mux, http.MethodGet, "/charts/runs/"+bigID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "height 1514285714288")

	w = do(t, mux, http.MethodDelete, "/api/runs/"+bigID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, mux, http.MethodGet, "/api/runs/"+bigID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, mux, http.MethodDelete, "/api/runs/"+bigID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, mux, http.MethodGet, "/charts/runs/"+bigID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunHistory_BadRequests(t *testing.T) {
	server, _ := setupTestServer(t)
	mux := server.ServeMux()

	for _, limit := range []string{"0", "-3", "abc", "1001"} {
		w := do(t, mux, http.MethodGet, "/api/runs?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodPost, "/api/runs", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodPut, "/api/runs/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/runs/", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/runs/a/b", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/api/runs/missing", "").Code)
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"404"+colorReset, statusCodeColor(404))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "100", statusCodeColor(100))
}

func TestLoggingMiddleware(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
}
