package httpapi

import (
	"net/http"
	"strconv"

	"github.com/medo6/shim/internal/backend"
	"github.com/medo6/shim/internal/httperr"
	"github.com/medo6/shim/internal/logging"
	"github.com/medo6/shim/internal/query"
	"github.com/medo6/shim/internal/session"
)

// newSession implements /new_session: user?, password? -> session id.
func (h *handlers) newSession(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	password := r.URL.Query().Get("password")

	slot, err := h.cfg.Store.Allocate(r.Context(), user, password)
	if err != nil {
		writeAllocateError(w, err)
		return
	}
	httperr.WriteOK(w, slot.ID())
}

func writeAllocateError(w http.ResponseWriter, err error) {
	switch {
	case err == session.ErrNoSlots:
		httperr.Write(w, http.StatusServiceUnavailable, "no sessions available")
	case err == backend.ErrAuth:
		httperr.Write(w, http.StatusUnauthorized, "SciDB authentication failed")
	default:
		logging.Errorf("new_session: %v", err)
		httperr.Write(w, http.StatusBadGateway, "SciDB connection failed")
	}
}

// releaseSession implements /release_session: id -> empty body.
func (h *handlers) releaseSession(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httperr.Write(w, http.StatusBadRequest, "missing id")
		return
	}
	slot := h.cfg.Store.Lookup(id)
	if slot == nil {
		httperr.Write(w, http.StatusNotFound, "unknown session")
		return
	}
	h.cfg.Store.Release(r.Context(), slot)
	httperr.WriteOK(w, "")
}

// cancel implements /cancel: id -> empty body, 409 if no active query.
func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		httperr.Write(w, http.StatusBadRequest, "missing id")
		return
	}
	slot := h.cfg.Store.Lookup(id)
	if slot == nil {
		httperr.Write(w, http.StatusNotFound, "unknown session")
		return
	}

	if err := query.Cancel(r.Context(), slot); err != nil {
		writeCancelError(w, err)
		return
	}
	httperr.WriteOK(w, "")
}

func writeCancelError(w http.ResponseWriter, err error) {
	switch {
	case err == query.ErrNoActiveQuery:
		httperr.Write(w, http.StatusConflict, "no active query")
	default:
		if berr, ok := err.(*query.BackendError); ok {
			httperr.WriteDetailed(w, http.StatusBadGateway, "cancel failed", berr.Message)
			return
		}
		logging.Errorf("cancel: %v", err)
		httperr.Write(w, http.StatusInternalServerError, "cancel failed")
	}
}

// debug implements the debug-build-only /debug endpoint: a JSON-free,
// plain-text dump of every slot's stats.
func (h *handlers) debug(w http.ResponseWriter, _ *http.Request) {
	stats := h.cfg.Store.Snapshot()
	body := ""
	for _, s := range stats {
		body += "slot " + strconv.Itoa(s.Index) + " id=" + s.ID + "\n"
	}
	httperr.WriteOK(w, body)
}
