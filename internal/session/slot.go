// Package session implements the fixed-size pool of session slots:
// allocation, lookup, reclamation, and the two-level global/per-slot
// locking discipline.
package session

import (
	"bufio"
	"os"
	"sync"
	"time"

	"github.com/medo6/shim/internal/backend"
)

// SaveMode records whether a session's output buffer, once written by
// a save-wrapped query, holds binary or text data. It is sticky: a
// later execute that omits save never clears it back to None.
type SaveMode int

const (
	// SaveNone means no query has ever saved output for this session.
	SaveNone SaveMode = iota
	// SaveBinary means the output buffer holds a binary-format save.
	SaveBinary
	// SaveText means the output buffer holds a text-format save.
	SaveText
)

// idAvailable is the sentinel id carried by an AVAILABLE slot.
const idAvailable = "NA"

// Slot is one entry in the fixed-size session pool. Exactly one of
// {AVAILABLE, UNAVAILABLE} holds at any time, enforced by Store.
type Slot struct {
	mu sync.Mutex

	index       int
	available   bool
	id          string
	qid         backend.QueryID
	conns       [2]backend.Conn // 0: prepare/execute/complete, 1: cancel only
	inputPath   string
	outputPath  string
	pipePath    string
	outFD       *os.File      // lazily opened by the read pipeline; never closed between reads
	lineReader  *bufio.Reader // lazily wraps outFD; persists across read_lines calls
	saveMode    SaveMode
	stream      bool // always false; see DESIGN.md open question
	compression int  // always -1; see DESIGN.md open question
	lastTouched time.Time
	created     time.Time
}

// SlotStats is a read-only snapshot used by /debug and by tests.
type SlotStats struct {
	Index       int
	ID          string
	Available   bool
	QueryActive bool
	SaveMode    SaveMode
	Created     time.Time
	LastTouched time.Time
}

// Lock acquires the slot's mutex. Callers must pair with Unlock.
func (s *Slot) Lock() { s.mu.Lock() }

// Unlock releases the slot's mutex.
func (s *Slot) Unlock() { s.mu.Unlock() }

// ID returns the slot's id. Safe to call without holding the lock for
// read-mostly call sites such as routing, but callers that need a
// consistent view across multiple fields should hold the lock.
func (s *Slot) ID() string { return s.id }

// Index returns the slot's position in the pool.
func (s *Slot) Index() int { return s.index }

// QueryID returns the slot's current (coordinator, query) pair.
func (s *Slot) QueryID() backend.QueryID { return s.qid }

// SetQueryID records the query id returned by a prepare/execute pair.
func (s *Slot) SetQueryID(q backend.QueryID) { s.qid = q }

// SaveModeValue returns the slot's sticky save mode.
func (s *Slot) SaveModeValue() SaveMode { return s.saveMode }

// SetSaveMode upgrades the slot's save mode. Never downgrades to
// SaveNone: once a session has saved output, later queries without
// save still leave the prior output readable.
func (s *Slot) SetSaveMode(m SaveMode) {
	if m != SaveNone {
		s.saveMode = m
	}
}

// Conn returns the backend connection at the given index (0 or 1).
func (s *Slot) Conn(i int) backend.Conn { return s.conns[i] }

// InputPath returns the absolute path of the slot's temp input file.
func (s *Slot) InputPath() string { return s.inputPath }

// OutputPath returns the absolute path of the slot's temp output file.
func (s *Slot) OutputPath() string { return s.outputPath }

// OutputTarget returns the save target for query rewriting: the pipe
// path if streaming is enabled (never, in this version), else the
// output file path.
func (s *Slot) OutputTarget() string {
	if s.stream {
		return s.pipePath
	}
	return s.outputPath
}

// OutputFD returns the lazily-opened output file descriptor, or nil
// if no read has happened yet.
func (s *Slot) OutputFD() *os.File { return s.outFD }

// SetOutputFD stores the output file descriptor after the read
// pipeline opens it for the first time.
func (s *Slot) SetOutputFD(f *os.File) { s.outFD = f }

// LineReader returns the lazily-created buffered line reader wrapping
// the output fd, or nil if read_lines has never been called.
func (s *Slot) LineReader() *bufio.Reader { return s.lineReader }

// SetLineReader stores the buffered line reader after the read
// pipeline creates it for the first time. It must wrap the same
// handle returned by OutputFD so repeated read_lines calls keep
// advancing the same buffered stream.
func (s *Slot) SetLineReader(r *bufio.Reader) { s.lineReader = r }

// Touch sets last_touched to now, marking the slot idle-but-alive.
func (s *Slot) Touch(now time.Time) { s.lastTouched = now }

// TouchBusy sets last_touched a week into the future so the slot
// cannot be reaped while a long-running operation is in flight.
func (s *Slot) TouchBusy(now time.Time) { s.lastTouched = now.Add(7 * 24 * time.Hour) }

// Idle reports whether now-lastTouched exceeds timeout.
func (s *Slot) Idle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.lastTouched) > timeout
}

// Stats returns a snapshot of the slot for diagnostics.
func (s *Slot) Stats() SlotStats {
	return SlotStats{
		Index:       s.index,
		ID:          s.id,
		Available:   s.available,
		QueryActive: s.qid.Active(),
		SaveMode:    s.saveMode,
		Created:     s.created,
		LastTouched: s.lastTouched,
	}
}
