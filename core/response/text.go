package response

import (
	"io"
	"net/http"
)

// ContentTypeExposition is the Prometheus text exposition content type.
const ContentTypeExposition = "text/plain; version=0.0.4; charset=utf-8"

// String writes body as text/plain with status 200.
func String(w http.ResponseWriter, body string) error {
	return Text(w, http.StatusOK, "text/plain; charset=utf-8", body)
}

// Text writes body with an explicit content type and status.
func Text(w http.ResponseWriter, status int, contentType, body string) error {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	return err
}
