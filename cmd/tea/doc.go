// Command tea is a reference CLI/REPL for the teascript-sub001 engine, a
// showcase for the vm/compiler/bcdump packages the way cmd/retro is for
// db47h/ngaro's vm package -- it is explicitly out of core scope (spec.md
// §1) and is not exercised by any core test.
//
// Usage:
//
//	tea [flags] [script]
//
//	-bc
//	      treat the input as a precompiled bytecode image (see bcdump)
//	-dump filename
//	      compile without running and write a bytecode image to filename
//	-debug
//	      print a full Go stacktrace alongside a VM panic
//	-noraw
//	      disable raw terminal IO in the REPL
//
// With no script argument, tea starts an interactive REPL reading one
// statement at a time from stdin, switching the terminal to raw mode so
// line editing (and the idle-loop cooperative behavior spec.md leaves to
// the host) works the way an embedder's shell would expect.
package main
