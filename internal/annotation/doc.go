// Package annotation parses the command micro-language embedded in slide annotations.
//
// Two forms are recognised:
//
//	tag[arg1, 'arg two', "arg,three"]   short form
//	[tag]anything at all[/tag]          long form
//
// Long-form blocks are extracted first, in order of appearance, and their
// content is returned untouched as a single argument. Short-form tags are then
// read from the remaining text by a small state machine:
//
//	Idle ──ident──▶ InTagName ──'['──▶ InArgs ──quote──▶ InQuote
//	  ▲                 │                 │  ▲               │
//	  └──other──────────┘                 │  └──same quote───┘
//	  └──────────────────────']'──────────┘
//
// The parser is total: malformed or unterminated input never produces an
// error, the incomplete fragment is simply dropped.
//
// Tag names are returned as written. Long-form open and close tags match
// ignoring case; short-form tags are matched exactly by the dispatcher.
package annotation
