package httpapi

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medo6/shim/internal/backend"
	"github.com/medo6/shim/internal/buffer"
	"github.com/medo6/shim/internal/query"
	"github.com/medo6/shim/internal/session"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Store) {
	t.Helper()
	dir := t.TempDir()
	bufs := buffer.NewManager(dir)
	fc := backend.NewFakeClient()
	store := session.NewStore(session.Config{
		MaxSessions: 4,
		Timeout:     time.Minute,
		Client:      fc,
	}, bufs)
	exec := query.NewExecutor(store, query.Config{SaveInstanceID: 0})

	docroot := t.TempDir()
	srv := httptest.NewServer(NewRouter(Config{
		Store:    store,
		Executor: exec,
		DocRoot:  docroot,
		Version:  "test",
		Debug:    true,
	}))
	t.Cleanup(srv.Close)
	return srv, store
}

func get(t *testing.T, base, path string, params url.Values) *http.Response {
	t.Helper()
	u := base + path
	if params != nil {
		u += "?" + params.Encode()
	}
	resp, err := http.Get(u)
	require.NoError(t, err)
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// End-to-end scenario: new_session -> execute_query(save) ->
// read_lines -> release_session, after which read_lines returns 404.
func TestScenario_SaveThenReadLinesThenRelease(t *testing.T) {
	srv, store := newTestServer(t)

	resp := get(t, srv.URL, "/new_session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := body(t, resp)
	require.NotEmpty(t, id)

	resp = get(t, srv.URL, "/execute_query", url.Values{
		"id": {id}, "query": {"list()"}, "save": {"csv"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body(t, resp)

	slot := store.Lookup(id)
	require.NotNil(t, slot)
	require.NoError(t, os.WriteFile(slot.OutputPath(), []byte("a,1\nb,2\n"), 0o644))

	resp = get(t, srv.URL, "/read_lines", url.Values{"id": {id}, "n": {"100"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a,1\nb,2\n", body(t, resp))

	resp = get(t, srv.URL, "/release_session", url.Values{"id": {id}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv.URL, "/read_lines", url.Values{"id": {id}, "n": {"1"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body(t, resp)
}

func TestNewSession_ExhaustedReturns503(t *testing.T) {
	dir := t.TempDir()
	bufs := buffer.NewManager(dir)
	fc := backend.NewFakeClient()
	store := session.NewStore(session.Config{
		MaxSessions: 1,
		Timeout:     time.Minute,
		Client:      fc,
	}, bufs)
	exec := query.NewExecutor(store, query.Config{})
	srv := httptest.NewServer(NewRouter(Config{Store: store, Executor: exec, DocRoot: t.TempDir(), Version: "test"}))
	t.Cleanup(srv.Close)

	resp := get(t, srv.URL, "/new_session", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body(t, resp)

	resp = get(t, srv.URL, "/new_session", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body(t, resp)
}

func TestExecuteQuery_UnknownSessionReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL, "/execute_query", url.Values{"id": {"bogus"}, "query": {"list()"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body(t, resp)
}

func TestExecuteQuery_MissingParamsReturns400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL, "/execute_query", url.Values{"id": {"x"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body(t, resp)
}

// ReadBytes before any save returns 410 Gone; after a binary save,
// asking for read_lines returns 416.
func TestScenario_ReadBeforeSaveThenWrongMode(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL, "/new_session", nil)
	id := body(t, resp)

	resp = get(t, srv.URL, "/read_bytes", url.Values{"id": {id}})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	body(t, resp)

	resp = get(t, srv.URL, "/execute_query", url.Values{
		"id": {id}, "query": {"list()"}, "save": {"(string,int64)"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body(t, resp)

	resp = get(t, srv.URL, "/read_lines", url.Values{"id": {id}, "n": {"1"}})
	assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	body(t, resp)
}

func TestCancel_NoActiveQueryReturns409(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL, "/new_session", nil)
	id := body(t, resp)

	resp = get(t, srv.URL, "/cancel", url.Values{"id": {id}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body(t, resp)
}

func TestVersion(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL, "/version", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "test", body(t, resp))
}

func TestStatic_RejectsHtpasswd(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := get(t, srv.URL, "/.htpasswd", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body(t, resp)
}
