package server

import (
	"github.com/mandelsoft/logging"
)

var REALM = logging.DefineRealm("concerns/server", "http server")
