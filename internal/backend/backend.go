// Package backend defines the narrow contract the gateway consumes
// from the native array-database client library. The library itself
// is an external collaborator; this package only describes and
// classifies what the gateway needs from it.
package backend

import (
	"context"
	"errors"
	"strings"
)

// QueryID identifies a query in flight on a connection, as a
// (coordinator, query) pair per the wire protocol.
type QueryID struct {
	CoordinatorID uint64
	QueryID       uint64
}

// Active reports whether the pair denotes a live query (QueryID != 0).
func (q QueryID) Active() bool { return q.QueryID != 0 }

// Prepared is an opaque handle returned by Prepare and consumed by
// Execute.
type Prepared any

// Conn is a single backend connection handle. A session holds two:
// one for prepare/execute/complete, one reserved for cancel.
type Conn interface {
	// Prepare compiles query text into a Prepared plan.
	Prepare(ctx context.Context, text string) (Prepared, error)
	// Execute runs a prepared plan and returns the assigned query id.
	Execute(ctx context.Context, text string, prepared Prepared) (QueryID, error)
	// Complete finalizes a query after Execute returns.
	Complete(ctx context.Context, qid QueryID) error
	// Disconnect tears down the connection.
	Disconnect(ctx context.Context) error
}

// Client connects to the backend and hands back one connection per
// Connect call; a new session calls it twice to get its pair.
type Client interface {
	// Connect authenticates and opens a connection. Returns ErrAuth on
	// credential rejection, or a connection error otherwise.
	Connect(ctx context.Context, host string, port int, user, password string) (Conn, error)
}

// ErrAuth is returned by Connect when the backend rejects credentials.
var ErrAuth = errors.New("backend authentication failed")

// ErrorClass distinguishes fatal connection-level errors from
// transient query-level errors.
type ErrorClass int

const (
	// ClassNone means no error occurred.
	ClassNone ErrorClass = iota
	// ClassTransient is a query syntax/logic error; the session
	// remains usable.
	ClassTransient
	// ClassFatal is a connection-level error; the session must be
	// invalidated.
	ClassFatal
)

// fatalMarkers are substrings that mark a backend error message as
// connection-fatal.
var fatalMarkers = []string{
	"SCIDB_LE_CANT_SEND_RECEIVE",
	"SCIDB_LE_CONNECTION_ERROR",
	"SCIDB_LE_NO_QUORUM",
}

// String renders the class for logging and HTTP-layer dispatch.
func (c ErrorClass) String() string {
	switch c {
	case ClassFatal:
		return "fatal"
	case ClassTransient:
		return "transient"
	default:
		return "none"
	}
}

// Classify inspects an error's message and returns its class. A nil
// error classifies as ClassNone.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassNone
	}
	msg := err.Error()
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return ClassFatal
		}
	}
	return ClassTransient
}
