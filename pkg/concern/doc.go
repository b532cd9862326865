// Package concern provides concern items and the concern store.
//
// A concern is a typed record owned by exactly one object and stating
// that something requires attention. It appears on all its related
// objects. Issues and locks block state-changing operations on
// the objects they appear on, flags are advisory only.
package concern
