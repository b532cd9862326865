package healthz

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/mandelsoft/logging"
)

var REALM = logging.DefineRealm("concerns/healthz", "server health monitoring")

var log = logging.DynamicLogger(logging.DefaultContext(), REALM)

// Tick reports activity for a registered check. Ticks for unknown
// checks are ignored.
func Tick(key string) {
	lock.Lock()
	defer lock.Unlock()

	setCheck(key)
}

// Start registers a check, which is considered outdated if there is
// no tick for three periods.
func Start(key string, period time.Duration) {
	lock.Lock()
	defer lock.Unlock()

	checks[key] = &check{time.Now(), 3 * period}
}

func End(key string) {
	lock.Lock()
	defer lock.Unlock()

	removeCheck(key)
}

type check struct {
	last    time.Time
	timeout time.Duration
}

var (
	checks = map[string]*check{}
	lock   sync.Mutex
)

func setCheck(key string) {
	c := checks[key]
	if c == nil {
		log.Debug("tick for unknown check {{key}}", "key", key)
		return
	}
	c.last = time.Now()
}

func removeCheck(key string) {
	delete(checks, key)
}

func IsHealthy() bool {
	ok, _ := HealthInfo()
	return ok
}

// HealthInfo provides the health state and a report listing the last
// tick of all checks.
func HealthInfo() (bool, string) {
	lock.Lock()
	defer lock.Unlock()

	ok := true
	info := ""
	now := time.Now()
	for _, key := range slices.Sorted(maps.Keys(checks)) {
		c := checks[key]
		limit := now.Add(-c.timeout)
		info = fmt.Sprintf("%s%s: %s\n", info, key, c.last.Format(time.RFC3339))
		if c.last.Before(limit) {
			log.Warn("outdated health check {{key}}", "key", key, "delay", limit.Sub(c.last))
			ok = false
		}
	}
	return ok, info
}
