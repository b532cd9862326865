package server

import (
	"net/http"

	"github.com/mandelsoft/concerns/pkg/healthz"
)

var default_mux = http.NewServeMux()

func init() {
	default_mux.HandleFunc("/healthz", healthz.Healthz)
}

// Register adds a handler to the handlers shared by all servers
// created with the default flag.
func Register(pattern string, handler http.Handler) {
	default_mux.Handle(pattern, handler)
}
