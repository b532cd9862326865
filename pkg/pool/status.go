package pool

import (
	"errors"
	"time"

	"github.com/mandelsoft/goutils/general"
)

// Status is the result of an action.
// Contract:
// Completed  Error
//  true,      nil: request processed, continue normally
//  true,      err: preconditions not met yet, re-add to the queue rate-limited
//  false,     nil: temporary failure, just re-add to the queue
//  false,     err: invalid request, wait for a new change
type Status struct {
	Completed bool
	Error     error

	// Interval selects a modified reconciliation reschedule for the actual item
	// -1 (default) no modification
	//  0 no reschedule
	//  >0 reschedule after given interval
	// If multiple reconcilers are called for an item the Intervals are combined as follows.
	// - if there is at least one status with Interval> 0,the minimum is used
	// - if all status disable reschedule it will be disabled
	// - status with -1 are ignored
	Interval time.Duration
}

func (s Status) IsSucceeded() bool {
	return s.Completed && s.Error == nil
}

func (s Status) IsDelayed() bool {
	return s.Completed && s.Error != nil
}

func (s Status) IsFailed() bool {
	return !s.Completed && s.Error != nil
}

func (s Status) MustBeRepeated() bool {
	return !s.Completed && s.Error == nil
}

func (s Status) RescheduleAfter(d time.Duration) Status {
	if s.Interval < 0 || d < s.Interval {
		s.Interval = d
	}
	return s
}

func (s Status) Stop() Status {
	s.Interval = 0
	return s
}

func (s Status) StopIfSucceeded() Status {
	if s.IsSucceeded() {
		s.Interval = 0
	}
	return s
}

func StatusCompleted(err ...error) Status {
	return Status{Completed: true, Error: general.Optional(err...), Interval: -1}
}

func StatusFailed(err error) Status {
	return Status{Completed: false, Error: err, Interval: -1}
}

func StatusRedo() Status {
	return Status{Completed: false, Error: nil, Interval: -1}
}

// StatusFor maps the result of an operation. Errors matching one of
// the given temporary errors are retried rate-limited, all others
// are treated as final.
func StatusFor(err error, temporary ...error) Status {
	if err == nil {
		return StatusCompleted()
	}
	for _, t := range temporary {
		if errors.Is(err, t) {
			return StatusCompleted(err)
		}
	}
	return StatusFailed(err)
}
