package httpapi

import (
	"fmt"
	"net/http"

	"github.com/medo6/shim/internal/backend"
	"github.com/medo6/shim/internal/httperr"
	"github.com/medo6/shim/internal/logging"
	"github.com/medo6/shim/internal/query"
	"github.com/medo6/shim/internal/session"
)

// executeQuery implements /execute_query.
func (h *handlers) executeQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("id")
	queryText := q.Get("query")
	if id == "" || queryText == "" {
		httperr.Write(w, http.StatusBadRequest, "missing id or query")
		return
	}

	params := query.Params{
		SessionID: id,
		Query:     queryText,
		Save:      q.Get("save"),
		Release:   q.Get("release") != "" && q.Get("release") != "0",
		Prefix:    q.Get("prefix"),
		User:      q.Get("user"),
		Password:  q.Get("password"),
	}

	qid, err := h.cfg.Executor.Execute(r.Context(), params)
	if err != nil {
		writeExecuteError(w, err)
		return
	}
	httperr.WriteOK(w, fmt.Sprintf("%d", qid))
}

func writeExecuteError(w http.ResponseWriter, err error) {
	switch {
	case err == query.ErrSessionNotFound:
		httperr.Write(w, http.StatusNotFound, "unknown session")
	default:
		if berr, ok := err.(*query.BackendError); ok {
			writeBackendError(w, berr)
			return
		}
		logging.Errorf("execute_query: %v", err)
		httperr.Write(w, http.StatusInternalServerError, "server error")
	}
}

func writeBackendError(w http.ResponseWriter, berr *query.BackendError) {
	if isFatal(berr) {
		httperr.WriteDetailed(w, http.StatusBadGateway, "SciDB connection failed", berr.Message)
		return
	}
	httperr.WriteDetailed(w, http.StatusNotAcceptable, "query failed", berr.Message)
}

func isFatal(berr *query.BackendError) bool {
	return berr.Class == backend.ClassFatal
}

// readBytes implements /read_bytes.
func (h *handlers) readBytes(w http.ResponseWriter, r *http.Request) {
	h.readCommon(w, r, session.SaveBinary, "Output not saved in binary format", readBytesFn)
}

// readLines implements /read_lines.
func (h *handlers) readLines(w http.ResponseWriter, r *http.Request) {
	h.readCommon(w, r, session.SaveText, "Output not saved in text format", readLinesFn)
}
