package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/medo6/shim/internal/httperr"
	"github.com/medo6/shim/internal/logging"
	"github.com/medo6/shim/internal/metrics"
	"github.com/medo6/shim/internal/readpipeline"
	"github.com/medo6/shim/internal/session"
)

type readFunc func(slot *session.Slot, n int) ([]byte, error)

func readBytesFn(slot *session.Slot, n int) ([]byte, error) { return readpipeline.ReadBytes(slot, n) }
func readLinesFn(slot *session.Slot, n int) ([]byte, error) { return readpipeline.ReadLines(slot, n) }

// readCommon implements the shared shape of /read_bytes and
// /read_lines: resolve session, check the required save mode, read,
// and touch last_touched on completion.
func (h *handlers) readCommon(w http.ResponseWriter, r *http.Request, want session.SaveMode, wrongModeMsg string, fn readFunc) {
	q := r.URL.Query()
	id := q.Get("id")
	if id == "" {
		httperr.Write(w, http.StatusBadRequest, "missing id")
		return
	}
	slot := h.cfg.Store.Lookup(id)
	if slot == nil {
		httperr.Write(w, http.StatusNotFound, "unknown session")
		return
	}

	n := 0
	if raw := q.Get("n"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			n = parsed
		}
	}

	slot.Lock()
	mode := slot.SaveModeValue()
	slot.Unlock()

	if mode == session.SaveNone {
		httperr.Write(w, http.StatusGone, "Output not saved")
		return
	}
	if mode != want {
		httperr.Write(w, http.StatusRequestedRangeNotSatisfiable, wrongModeMsg)
		return
	}

	slot.Lock()
	data, err := fn(slot, n)
	slot.Touch(time.Now())
	slot.Unlock()

	if err != nil {
		h.writeReadError(w, slot, err)
		return
	}

	if want == session.SaveBinary {
		metrics.BytesRead.Add(float64(len(data)))
		httperr.WriteOKBinary(w, data)
		return
	}
	lines := bytes.Count(data, []byte{'\n'})
	if len(data) > 0 && data[len(data)-1] != '\n' {
		lines++
	}
	metrics.LinesRead.Add(float64(lines))
	httperr.WriteOK(w, string(data))
}

func (h *handlers) writeReadError(w http.ResponseWriter, slot *session.Slot, err error) {
	if errors.Is(err, readpipeline.ErrEOF) {
		httperr.Write(w, http.StatusRequestedRangeNotSatisfiable, "EOF - range out of bounds")
		return
	}
	logging.Errorf("read on session %s: %v", slot.ID(), err)
	h.cfg.Store.Release(context.Background(), slot)
	httperr.Write(w, http.StatusInternalServerError, "server error")
}
