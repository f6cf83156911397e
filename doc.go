// Package ptera provides selector-driven probing of instrumented
// programs.
//
// A selector such as "f(x) > g(!y)" names a variable in a dynamic call
// context; the runtime matches selectors against live call stacks (or
// replayed trace streams) and fires callbacks with the captured values.
// The pattern language is in package 'selector', the matching runtime
// in 'overlay', and a command-line tool in 'cmd/ptrace'.
package ptera
