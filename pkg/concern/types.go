package concern

import (
	"fmt"
)

// Type is the closed set of concern types.
type Type string

const (
	// TypeIssue is derived truth, raised and cleared automatically.
	TypeIssue Type = "issue"
	// TypeFlag is advisory and may be lowered manually.
	TypeFlag Type = "flag"
	// TypeLock represents a running action.
	TypeLock Type = "lock"
)

func (t Type) IsBlocking() bool {
	return t == TypeIssue || t == TypeLock
}

// Cause is the closed set of concern causes.
type Cause string

const (
	CauseConfig        Cause = "config"
	CauseService       Cause = "service"
	CauseImport        Cause = "import"
	CauseHostComponent Cause = "host-component"
	CauseRequirement   Cause = "requirement"
	// CauseJobLock is the reserved marker of lock concerns.
	CauseJobLock Cause = "job_lock"
)

// Causes lists the causes of issues in their canonical order.
func Causes() []Cause {
	return []Cause{CauseConfig, CauseService, CauseImport, CauseHostComponent, CauseRequirement}
}

func ParseCause(s string) (Cause, error) {
	switch c := Cause(s); c {
	case CauseConfig, CauseService, CauseImport, CauseHostComponent, CauseRequirement, CauseJobLock:
		return c, nil
	}
	return "", fmt.Errorf("invalid concern cause %q", s)
}

const (
	NameJobLock            = "job_lock"
	NameAdcmOutdatedConfig = "adcm_outdated_config"
)

// IsReservedName reports whether a name is used for locks or issues
// and therefore not available for flags.
func IsReservedName(name string) bool {
	if name == NameJobLock {
		return true
	}
	for _, c := range Causes() {
		if name == IssueName(c) {
			return true
		}
	}
	return false
}

// IssueName provides the stable name of the issue for a cause.
func IssueName(c Cause) string {
	switch c {
	case CauseHostComponent:
		return "host_component_issue"
	default:
		return string(c) + "_issue"
	}
}
