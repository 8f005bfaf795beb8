package bench

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

type Err struct {
	Err string `json:"error"`
}

type handler struct {
	harness *Harness
	// one run at a time, runs share the database
	running sync.Mutex
	logger  log.Logger
}

func (h *handler) encode(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set(`Content-Type`, `application/json`)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error(err)
	}
}

func (h *handler) encodeError(w http.ResponseWriter, status int, e error) {
	h.encode(w, status, Err{Err: e.Error()})
}

func (h *handler) reports(w http.ResponseWriter, _ *http.Request) {
	h.encode(w, http.StatusOK, h.harness.Registry().List())
}

func (h *handler) report(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)[`id`])
	if err != nil {
		h.encodeError(w, http.StatusBadRequest, errors.WithPrevious(err, `invalid run id`))
		return
	}

	report, ok := h.harness.Registry().Get(id)
	if !ok {
		h.encodeError(w, http.StatusNotFound, errors.New(fmt.Sprintf(`run [%s] does not exist`, id)))
		return
	}

	h.encode(w, http.StatusOK, report)
}

func (h *handler) run(w http.ResponseWriter, r *http.Request) {
	h.running.Lock()
	defer h.running.Unlock()

	report, err := h.harness.Run(r.Context())
	if err != nil {
		h.logger.Error(err)
		h.encodeError(w, http.StatusInternalServerError, err)
		return
	}

	h.encode(w, http.StatusCreated, report)
}

func (h *handler) timings(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(`Content-Type`, `text/plain`)
	if _, err := w.Write([]byte(h.harness.Timings())); err != nil {
		h.logger.Error(err)
	}
}

// Routes exposes the run reports of a harness:
//
//	GET  /runs       all kept reports, oldest first
//	POST /runs       starts a run and returns its report
//	GET  /runs/{id}  a single report
//	GET  /timings    timers aggregated over all runs
//	GET  /metrics    prometheus metrics
func Routes(harness *Harness, logger log.Logger) http.Handler {
	h := &handler{harness: harness, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc(`/runs`, h.reports).Methods(http.MethodGet)
	r.HandleFunc(`/runs`, h.run).Methods(http.MethodPost)
	r.HandleFunc(`/runs/{id}`, h.report).Methods(http.MethodGet)
	r.HandleFunc(`/timings`, h.timings).Methods(http.MethodGet)
	r.Handle(`/metrics`, promhttp.Handler()).Methods(http.MethodGet)

	return handlers.CORS()(r)
}

// MakeEndpoints serves Routes on host in the background. Close the returned
// server to stop it.
func MakeEndpoints(host string, harness *Harness, logger log.Logger) *http.Server {
	srv := &http.Server{Addr: host, Handler: Routes(harness, logger)}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf(`cannot start web server : %+v`, err))
		}
	}()

	logger.Info(fmt.Sprintf(`http server started on %s`, host))

	return srv
}
