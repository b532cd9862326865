// Package detect provides the cause detectors. A detector evaluates
// the state of a single object in the object graph and reports the
// causes of the issues the object must currently own.
//
// Detectors are pure functions of the graph state, the same state
// always yields the same findings.
package detect
