package database

import (
	"github.com/mandelsoft/logging"
)

var REALM = logging.DefineRealm("concerns/database", "concern persistence")
