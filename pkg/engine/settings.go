package engine

import (
	"slices"

	"github.com/mandelsoft/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mandelsoft/concerns/pkg/concern"
	"github.com/mandelsoft/concerns/pkg/database"
	"github.com/mandelsoft/concerns/pkg/metrics"
)

const TracerName = "github.com/mandelsoft/concerns/engine"

const DefaultMaxRetries = 10

// Settings configure an engine. The zero value provides an engine
// without persistence, metrics and tracing, denying all manual
// concern removals.
type Settings struct {
	Logging    logging.Context
	Database   database.Database
	Authorizer Authorizer
	Metrics    *metrics.Metrics
	// TracerProvider defaults to the global otel provider.
	TracerProvider trace.TracerProvider
	// LaxMapping disables the constraint validation of new
	// host-component mappings. Violations are then reported by the
	// host-component issue of the cluster only.
	LaxMapping bool
	// MaxRetries limits the repetitions of an event because of
	// concurrent commits.
	MaxRetries int
}

func (s Settings) complete() Settings {
	if s.Logging == nil {
		s.Logging = logging.DefaultContext()
	}
	if s.Authorizer == nil {
		s.Authorizer = DenyAll
	}
	if s.TracerProvider == nil {
		s.TracerProvider = otel.GetTracerProvider()
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	return s
}

// Authorizer decides about the manual removal of concerns.
type Authorizer interface {
	MayRemoveConcern(user string, c *concern.Item) bool
}

type AuthorizerFunc func(user string, c *concern.Item) bool

func (f AuthorizerFunc) MayRemoveConcern(user string, c *concern.Item) bool {
	return f(user, c)
}

var (
	DenyAll  = AuthorizerFunc(func(string, *concern.Item) bool { return false })
	AllowAll = AuthorizerFunc(func(string, *concern.Item) bool { return true })
)

// Users authorizes the given users only.
func Users(users ...string) Authorizer {
	list := slices.Clone(users)
	return AuthorizerFunc(func(user string, _ *concern.Item) bool {
		return slices.Contains(list, user)
	})
}
