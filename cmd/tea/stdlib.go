package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/RevengerWizard/teascript-sub001/vm"
)

// registerStdlib wires the handful of global builtins the core's own
// compiled output assumes exist as host-registered globals (spec.md §6's
// registration boundary; compiler/expr.go's string interpolation compiles
// to a call of the global "str"). A real stdlib (math/time/os/string
// methods) is explicitly out of core scope per spec.md §1; this is the
// minimal bootstrap a standalone CLI needs to run anything at all.
func registerStdlib(i *vm.Instance, out io.Writer) {
	i.CreateFunction("str", func(i *vm.Instance, args []vm.Value) (vm.Value, error) {
		return i.InternValue(i.ToString(args[0]))
	}, 1)

	i.CreateFunction("print", func(i *vm.Instance, args []vm.Value) (vm.Value, error) {
		parts := make([]string, len(args))
		for k, a := range args {
			parts[k] = i.ToString(a)
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		return vm.Nil, nil
	}, -1)

	i.CreateFunction("type", func(i *vm.Instance, args []vm.Value) (vm.Value, error) {
		return i.InternValue(args[0].TypeName())
	}, 1)
}
