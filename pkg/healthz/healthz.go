package healthz

import (
	"io"
	"net/http"
)

// Healthz is a HTTP handler for the /healthz endpoint. It responds with
// status 200 if all registered checks are up to date, and with 500
// otherwise.
func Healthz(w http.ResponseWriter, r *http.Request) {
	ok, info := HealthInfo()
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	io.WriteString(w, info)
}
