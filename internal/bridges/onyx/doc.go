// Package onyx controls Obsidian Onyx lighting consoles through the
// MxManager telnet interface.
//
// Commands:
//
//	GQL n     go cuelist n
//	GTQ n q   go to cue q of cuelist n
//	RQL n     release cuelist n
//
// The session stays open for the life of the module and redials at a fixed
// interval when the console goes away.
package onyx
