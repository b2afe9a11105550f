// Package trigger holds trigger definitions and fires them.
//
// A trigger binds a tag to a handler. Module triggers do not capture their
// module: each Definition stores the owner's ID, and Fire resolves that ID
// through a Resolver at call time, so a reconfigured module can never be
// reached through a stale reference.
//
// Arguments are declared with a closed set of types (ArgType) and coerced by
// Coerce, which never fails. Owners of multi-instance module types get an
// implicit first "instance" argument; short-form invocations must name the
// instance to reach it.
//
// Fire recovers panics and logs handler errors so one faulty handler cannot
// stop sibling triggers or later tags.
package trigger
