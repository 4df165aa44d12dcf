package runstore

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/autopark/internal/httputil"
)

// AttachAdminRoutes mounts the run history under /debug/: a tailsql
// console over the database and JSON views of runs and their scans.
func (s *Store) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://autopark.db", s.DB, &tailsql.DBOptions{
		Label: "Auto-park runs",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("runs", "Recent parking runs (JSON, ?limit=N)", http.HandlerFunc(s.handleRuns))
	debug.Handle("run", "One run with its scans and moves (JSON, ?run_id=ID)", http.HandlerFunc(s.handleRun))
	return nil
}

func (s *Store) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.Runs(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// RunDetail is the JSON body of /debug/run.
type RunDetail struct {
	Run   RunSummary `json:"run"`
	Scans []ScanRow  `json:"scans"`
	Moves []MoveRow  `json:"moves"`
}

func (s *Store) handleRun(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("run_id")
	if id == "" {
		httputil.BadRequest(w, "missing run_id")
		return
	}
	run, err := s.Run(r.Context(), id)
	if errors.Is(err, ErrRunNotFound) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	detail := RunDetail{Run: run}
	if detail.Scans, err = s.Scans(r.Context(), id); err == nil {
		detail.Moves, err = s.Moves(r.Context(), id)
	}
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, detail)
}
