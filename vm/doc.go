// Package vm implements the tightly coupled core of the language: the
// NaN-boxed value representation, the heap object model, the string
// interner, the open-addressed hash table and Map object, the tricolour
// mark-and-sweep garbage collector, and the bytecode interpreter loop with
// its call-frame protocol, upvalue capture/closing and method dispatch.
//
// The lexer and compiler packages produce the *gcProto trees this package
// executes; bcdump reads and writes them in the binary dump format. None
// of the standard library (math, time, os, string/list/map method tables)
// lives here -- stdlib collaborators register themselves through
// CreateClass/CreateModule and the stack-oriented CFunction signature,
// exactly as spec.md §4.9 describes the boundary.
package vm
