package httpapi

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/medo6/shim/internal/httperr"
	"github.com/medo6/shim/internal/logging"
)

// upload implements POST /upload: streams the request body into the
// session's input file.
func (h *handlers) upload(w http.ResponseWriter, r *http.Request) {
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

	slot.Lock()
	inputPath := slot.InputPath()
	slot.TouchBusy(time.Now())
	slot.Unlock()

	n, err := writeUpload(inputPath, r.Body)

	slot.Lock()
	slot.Touch(time.Now())
	slot.Unlock()

	if err != nil {
		logging.Errorf("upload to session %s: %v", id, err)
		httperr.Write(w, http.StatusInternalServerError, "upload failed")
		return
	}
	if n == 0 {
		httperr.Write(w, http.StatusBadRequest, "empty upload")
		return
	}
	httperr.WriteOK(w, inputPath)
}

func writeUpload(path string, body io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, body)
}
