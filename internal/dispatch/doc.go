// Package dispatch turns annotation text into trigger fires.
//
// Process parses the text, then for each invocation in document order fans
// out to every matching trigger (module registration order, then trigger
// registration order). A handler fault never stops sibling triggers or later
// invocations. The module registry's read lock is held for the whole
// annotation.
package dispatch
