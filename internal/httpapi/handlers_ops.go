package httpapi

import (
	"net/http"

	"github.com/medo6/shim/internal/httperr"
	"github.com/medo6/shim/internal/logging"
)

// LogLocator finds and reads the backend server's log file via a
// process-inspection heuristic. It is best-effort and not on a hot
// path.
type LogLocator interface {
	TailLog() (string, error)
}

// version implements /version.
func (h *handlers) version(w http.ResponseWriter, _ *http.Request) {
	httperr.WriteOK(w, h.cfg.Version)
}

// getLog implements /get_log: best-effort tail of the backend's log.
func (h *handlers) getLog(w http.ResponseWriter, _ *http.Request) {
	if h.cfg.LogLocator == nil {
		httperr.Write(w, http.StatusInternalServerError, "log locator not configured")
		return
	}
	contents, err := h.cfg.LogLocator.TailLog()
	if err != nil {
		logging.Warnf("get_log: %v", err)
		httperr.Write(w, http.StatusInternalServerError, "log unavailable")
		return
	}
	httperr.WriteOK(w, contents)
}
