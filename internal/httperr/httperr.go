// Package httperr centralizes the error response envelope used by
// every handler in the gateway.
package httperr

import "net/http"

// Write sets the shared CORS/cache headers and writes a plain-text
// error body with the given status and reason.
func Write(w http.ResponseWriter, status int, reason string) {
	setCommonHeaders(w)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reason))
}

// WriteDetailed writes reason followed by the backend's own error
// text, used for 406/502 responses that must surface the raw backend
// message.
func WriteDetailed(w http.ResponseWriter, status int, reason, detail string) {
	setCommonHeaders(w)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(reason + ": " + detail))
}

func setCommonHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")
}

// WriteOK writes a 200 plain-text body with the shared headers.
func WriteOK(w http.ResponseWriter, body string) {
	setCommonHeaders(w)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// WriteOKBinary writes a 200 application/octet-stream body with the
// shared headers.
func WriteOKBinary(w http.ResponseWriter, body []byte) {
	setCommonHeaders(w)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// SetCommonHeaders is exported for handlers that stream a body
// themselves and need the headers set before writing, without going
// through one of the Write* helpers.
func SetCommonHeaders(w http.ResponseWriter) {
	setCommonHeaders(w)
}
