// Package engine provides the redistribution engine. It is the only
// writer of the concern store. Every state changing event runs the
// detectors of the affected owners, diffs the result against the
// store and (re)computes the related objects of the concerns.
//
// Events are processed in transactions working on copies of the
// object graph and the concern store. Owner locks are acquired in the
// total (kind, id) order, the final commit is optimistic and the event
// is repeated if a concurrent event committed first. Readers always
// see a consistent snapshot and never block.
//
// Running actions are represented by a lock concern, the outdated
// configuration flag is raised automatically on configuration changes
// after the initial state of an object.
package engine
