package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/medo6/shim/internal/backend"
	"github.com/medo6/shim/internal/logging"
	"github.com/medo6/shim/internal/metrics"
	"github.com/medo6/shim/internal/session"
)

// ErrSessionNotFound is returned when the requested session id has no
// matching UNAVAILABLE slot. The HTTP layer maps it to a 404.
var ErrSessionNotFound = errors.New("unknown session")

// BackendError wraps a backend error with its classification so the
// HTTP layer can pick the right status code (406 vs 502) and decide
// whether to invalidate the session.
type BackendError struct {
	Class   backend.ErrorClass
	Message string
}

func (e *BackendError) Error() string { return e.Message }

// Params mirrors the /execute_query HTTP parameters.
type Params struct {
	SessionID string
	Query     string
	Save      string
	Release   bool
	Prefix    string
	User      string
	Password  string
}

// Config bundles the executor's static policy knobs.
type Config struct {
	UseAIO         bool
	SaveInstanceID int
}

// Executor resolves a session and runs a query against it, handling
// save-mode rewriting, prefix fragments, and error classification.
type Executor struct {
	store *session.Store
	cfg   Config
}

// NewExecutor builds an Executor bound to store.
func NewExecutor(store *session.Store, cfg Config) *Executor {
	return &Executor{store: store, cfg: cfg}
}

// Execute resolves the session, optionally rewrites the query for
// save, runs any prefix statements, and executes the main query. It
// returns the numeric query id on success.
func (e *Executor) Execute(ctx context.Context, p Params) (uint64, error) {
	slot := e.store.Lookup(p.SessionID)
	if slot == nil {
		return 0, ErrSessionNotFound
	}

	// Hold the slot lock only long enough to read/update metadata.
	// conn0 is never swapped out from under a live session, so it is
	// safe to call against after unlocking — the blocking
	// prepare/execute/complete sequence below must run lock-free or
	// Cancel (which needs the same lock to read conn1) could never run
	// concurrently with it.
	slot.Lock()
	queryText := p.Query
	if p.Save != "" {
		queryText = Rewrite(p.Query, p.Save, slot.OutputTarget(), e.cfg.SaveInstanceID, e.cfg.UseAIO)
		slot.SetSaveMode(ClassifySaveMode(p.Save))
	}
	conn0 := slot.Conn(0)
	slot.TouchBusy(time.Now())
	slot.Unlock()

	if p.Prefix != "" {
		for _, frag := range strings.Split(p.Prefix, ";") {
			if frag == "" {
				continue
			}
			if err := e.runFragment(ctx, conn0, frag); err != nil {
				berr := classify(err)
				if berr.Class == backend.ClassFatal {
					e.store.Release(ctx, slot)
				}
				metrics.QueriesTotal.WithLabelValues("prefix_error").Inc()
				return 0, berr
			}
		}
	}

	prepared, err := conn0.Prepare(ctx, queryText)
	if err != nil {
		e.touch(slot)
		return e.fail(ctx, slot, err)
	}

	qid, err := conn0.Execute(ctx, queryText, prepared)
	if err != nil {
		e.touch(slot)
		return e.fail(ctx, slot, err)
	}
	slot.Lock()
	slot.SetQueryID(qid)
	slot.Unlock()

	if err := conn0.Complete(ctx, qid); err != nil {
		e.touch(slot)
		return e.fail(ctx, slot, err)
	}

	e.touch(slot)
	metrics.QueriesTotal.WithLabelValues("success").Inc()

	if p.Release {
		e.store.Release(ctx, slot)
	}

	return qid.QueryID, nil
}

// touch locks the slot just long enough to stamp last_touched.
func (e *Executor) touch(slot *session.Slot) {
	slot.Lock()
	slot.Touch(time.Now())
	slot.Unlock()
}

// runFragment prepares, executes, and completes a single prefix
// statement on conn. Failure of any step aborts the prefix run.
func (e *Executor) runFragment(ctx context.Context, conn backend.Conn, frag string) error {
	prepared, err := conn.Prepare(ctx, frag)
	if err != nil {
		return err
	}
	qid, err := conn.Execute(ctx, frag, prepared)
	if err != nil {
		return err
	}
	return conn.Complete(ctx, qid)
}

// fail classifies a backend error, invalidates the session on fatal
// errors, and returns the wrapped BackendError for the HTTP layer.
func (e *Executor) fail(ctx context.Context, slot *session.Slot, err error) (uint64, error) {
	berr := classify(err)
	if berr.Class == backend.ClassFatal {
		logging.Errorf("fatal backend error on session %s: %v", slot.ID(), err)
		e.store.Release(ctx, slot)
		metrics.QueriesTotal.WithLabelValues("fatal").Inc()
	} else {
		metrics.QueriesTotal.WithLabelValues("transient").Inc()
	}
	return 0, berr
}

func classify(err error) *BackendError {
	return &BackendError{Class: backend.Classify(err), Message: err.Error()}
}

// Cancel composes and executes a cancel() call on the session's
// reserved second connection. It does not release the session.
func Cancel(ctx context.Context, slot *session.Slot) error {
	slot.Lock()
	qid := slot.QueryID()
	conn1 := slot.Conn(1)
	slot.Unlock()

	if !qid.Active() {
		return ErrNoActiveQuery
	}

	cancelText := fmt.Sprintf("cancel('%d.%d')", qid.CoordinatorID, qid.QueryID)
	prepared, err := conn1.Prepare(ctx, cancelText)
	if err != nil {
		return classify(err)
	}
	_, err = conn1.Execute(ctx, cancelText, prepared)
	if err != nil {
		return classify(err)
	}
	return nil
}

// ErrNoActiveQuery is returned by Cancel when the session has no
// query in flight. The HTTP layer maps it to a 409.
var ErrNoActiveQuery = errors.New("no active query")
