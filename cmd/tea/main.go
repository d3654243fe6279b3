package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/RevengerWizard/teascript-sub001/bcdump"
	"github.com/RevengerWizard/teascript-sub001/compiler"
	"github.com/RevengerWizard/teascript-sub001/vm"
)

var (
	debug      bool
	noRaw      bool
	asBytecode bool
	dumpTo     string
)

// newInstance boots a VM with stdin/stdout/argv wired the way the teacher's
// newVM wires its options, plus the core's stdlib bootstrap (registerStdlib)
// and an import loader bound to the new instance (compiler.go's documented
// construct-then-Bind pattern: the loader's Load method closes over *Loader,
// so it can be handed to vm.New as an option before the Instance it will
// call back into actually exists).
func newInstance(out io.Writer) *vm.Instance {
	loader := compiler.NewLoader(resolveImport)
	i := vm.New(
		vm.Stdout(out),
		vm.Stdin(os.Stdin),
		vm.Argv(flag.Args()),
		vm.ModuleLoader(loader.Load),
		vm.FileLoader(loader.Load),
	)
	loader.Bind(i)
	registerStdlib(i, out)
	return i
}

// resolveImport opens name (with a ".tea" extension first, then as given)
// relative to the current directory, for compiler.NewLoader's `import`
// support -- a standalone CLI has no package manager, so "resolution" is
// just a filesystem lookup.
func resolveImport(name string) (io.Reader, error) {
	for _, candidate := range []string{name + ".tea", name} {
		if f, err := os.Open(candidate); err == nil {
			return f, nil
		}
	}
	return nil, errors.Errorf("module %q not found", name)
}

func atExit(err error) {
	if err == nil {
		return
	}
	if debug {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
	} else {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(1)
}

func main() {
	flag.BoolVar(&debug, "debug", false, "print a full stacktrace alongside a VM panic")
	flag.BoolVar(&noRaw, "noraw", false, "disable raw terminal IO in the REPL")
	flag.BoolVar(&asBytecode, "bc", false, "treat the input as a precompiled bytecode image")
	flag.StringVar(&dumpTo, "dump", "", "compile without running and write a bytecode image to `filename`")
	flag.Parse()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var err error
	defer func() { atExit(err) }()

	if flag.NArg() == 0 {
		err = repl(out)
		return
	}

	path := flag.Arg(0)
	f, openErr := os.Open(path)
	if openErr != nil {
		err = errors.Wrap(openErr, "open script")
		return
	}
	defer f.Close()

	inst := newInstance(out)

	var proto *vm.Proto
	if asBytecode {
		mod := inst.NewModule(path, path)
		proto, err = bcdump.Load(f, inst, mod)
	} else {
		proto, err = runScript(inst, f, path)
	}
	if err != nil {
		err = errors.Wrap(err, path)
		return
	}

	if dumpTo != "" {
		err = writeDump(proto, dumpTo)
		return
	}

	_, err = inst.Run(proto)
}

func runScript(inst *vm.Instance, src io.Reader, name string) (*vm.Proto, error) {
	proto, _, err := compiler.Compile(inst, src, name)
	return proto, err
}

func writeDump(proto *vm.Proto, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create dump file")
	}
	defer f.Close()
	if err := bcdump.Dump(f, proto); err != nil {
		return errors.Wrap(err, "dump bytecode")
	}
	return nil
}

// repl runs a simple read-compile-run loop, one chunk at a time: lines are
// collected until one that does not end in `{` or `,`, and then the
// collected text is compiled and run. It switches the terminal to raw mode the way the teacher's
// -noraw flag gates cmd/retro's setupIO so Ctrl-D/Ctrl-C behave like an
// embedder's shell would expect; actual line reading still goes through a
// buffered scanner rather than a full line editor, which this thin
// reference CLI does not attempt to provide.
func repl(out *bufio.Writer) error {
	var tearDown func()
	if !noRaw {
		var err error
		tearDown, err = setRawIO()
		if err == nil && tearDown != nil {
			defer tearDown()
		}
	}

	inst := newInstance(out)
	scanner := bufio.NewScanner(os.Stdin)
	var buf strings.Builder
	count := 0
	prompt := func() { fmt.Fprint(out, "> "); out.Flush() }
	prompt()
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" && buf.Len() == 0 {
			prompt()
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		if !strings.HasSuffix(strings.TrimSpace(line), "{") && !strings.HasSuffix(strings.TrimSpace(line), ",") {
			count++
			name := fmt.Sprintf("repl-%d", count)
			proto, _, err := compiler.Compile(inst, strings.NewReader(buf.String()), name)
			buf.Reset()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				prompt()
				continue
			}
			result, runErr := inst.Run(proto)
			if runErr != nil {
				fmt.Fprintln(os.Stderr, runErr)
			} else if !result.IsNil() {
				fmt.Fprintln(out, inst.ToString(result))
			}
			prompt()
		}
	}
	fmt.Fprintln(out)
	return errors.Wrap(scanner.Err(), "read stdin")
}
