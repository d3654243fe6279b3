package compiler_test

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/RevengerWizard/teascript-sub001/compiler"
	"github.com/RevengerWizard/teascript-sub001/vm"
)

func compileOK(t *testing.T, src string) *vm.Proto {
	t.Helper()
	inst := vm.New()
	proto, _, err := compiler.Compile(inst, strings.NewReader(src), "test")
	if err != nil {
		t.Fatalf("%q: unexpected compile error: %v", src, err)
	}
	return proto
}

func compileErr(t *testing.T, src string) *vm.Error {
	t.Helper()
	inst := vm.New()
	_, _, err := compiler.Compile(inst, strings.NewReader(src), "test")
	if err == nil {
		t.Fatalf("%q: expected a compile error, got none", src)
	}
	var verr *vm.Error
	if !errors.As(err, &verr) {
		t.Fatalf("%q: error %v is not a *vm.Error", src, err)
	}
	return verr
}

func TestVarAndExpressions(t *testing.T) {
	for _, src := range []string{
		`var x = 1 + 2 * 3;`,
		`var x = (1 + 2) * 3;`,
		`var x = -1; var y = !true;`,
		`const x = 1; var y = x;`,
		`var x = 1; x = x + 1;`,
		`var x = [1, 2, 3];`,
		`var x = {"a": 1, "b": 2};`,
		`var s = "hello ${1 + 2} world";`,
	} {
		compileOK(t, src)
	}
}

func TestConstAssignmentRejected(t *testing.T) {
	verr := compileErr(t, `const x = 1; x = 2;`)
	if verr.Code != vm.ErrXVCONST {
		t.Fatalf("const-reassign: got code %v, want ErrXVCONST", verr.Code)
	}
}

func TestIfWhileForLoops(t *testing.T) {
	for _, src := range []string{
		`if (true) { var x = 1; } else { var x = 2; }`,
		`var i = 0; while (i < 10) { i = i + 1; if (i == 5) { break; } continue; }`,
		`for (var i = 0; i < 10; i = i + 1) { }`,
		`var list = [1,2,3]; for (var v in list) { }`,
		`var i = 0; do { i = i + 1; } while (i < 3);`,
	} {
		compileOK(t, src)
	}
}

func TestBreakContinueOutsideLoopRejected(t *testing.T) {
	compileErr(t, `break;`)
	compileErr(t, `continue;`)
}

func TestSwitch(t *testing.T) {
	compileOK(t, `
		var x = 1;
		switch (x) {
			1: { var a = 1; }
			2, 3: { var a = 2; }
			default: { var a = 0; }
		}
	`)
}

func TestFunctionsAndClosures(t *testing.T) {
	for _, src := range []string{
		`function add(a, b) { return a + b; }`,
		`function greet(name, greeting = "hi") { return greeting; }`,
		`function sum(...rest) { return rest; }`,
		`function outer() { var x = 1; function inner() { return x; } return inner; }`,
		`var f = (a, b) => a + b;`,
	} {
		compileOK(t, src)
	}
}

func TestDuplicateParamsRejected(t *testing.T) {
	verr := compileErr(t, `function bad(a, a) { }`)
	if verr.Code != vm.ErrXDUPARGS {
		t.Fatalf("got code %v, want ErrXDUPARGS", verr.Code)
	}
}

func TestOptionalBeforeRequiredRejected(t *testing.T) {
	verr := compileErr(t, `function bad(a = 1, b) { }`)
	if verr.Code != vm.ErrXOPT {
		t.Fatalf("got code %v, want ErrXOPT", verr.Code)
	}
}

func TestSpreadMustBeLastAndSingle(t *testing.T) {
	compileErr(t, `function bad(...a, b) { }`)
	compileErr(t, `function bad(...a, ...b) { }`)
}

func TestClassesAndInheritance(t *testing.T) {
	for _, src := range []string{
		`class Animal { speak() { return "..."; } }`,
		`class Animal { speak() { return "..."; } } class Dog < Animal { speak() { return super.speak(); } }`,
		`class Counter { new() { self.n = 0; } inc() { self.n = self.n + 1; } }`,
	} {
		compileOK(t, src)
	}
}

func TestSelfOutsideMethodRejected(t *testing.T) {
	compileErr(t, `var x = self;`)
}

func TestSuperOutsideSubclassRejected(t *testing.T) {
	compileErr(t, `class A { m() { return super.m(); } }`)
}

func TestDestructuringVarConst(t *testing.T) {
	for _, src := range []string{
		`var a, b = [1, 2];`,
		`const a, b, c = [1, 2, 3];`,
		`var a, ...rest = [1, 2, 3];`,
	} {
		compileOK(t, src)
	}
}

func TestMultipleRestTargetsRejected(t *testing.T) {
	verr := compileErr(t, `var ...a, ...b = [1, 2];`)
	if verr.Code != vm.ErrXSINGLEREST {
		t.Fatalf("got code %v, want ErrXSINGLEREST", verr.Code)
	}
}

func TestImportFromImport(t *testing.T) {
	modules := map[string]string{
		"math": `function square(x) { return x * x; }`,
	}
	resolve := func(name string) (io.Reader, error) {
		src, ok := modules[name]
		if !ok {
			return nil, errors.New("module not found")
		}
		return strings.NewReader(src), nil
	}

	for _, src := range []string{
		`import math; var y = math.square(3);`,
		`from math import square; var y = square(3);`,
	} {
		loader := compiler.NewLoader(resolve)
		inst := vm.New(vm.ModuleLoader(loader.Load), vm.FileLoader(loader.Load))
		loader.Bind(inst)
		if _, _, err := compiler.Compile(inst, strings.NewReader(src), "main"); err != nil {
			t.Fatalf("%q: unexpected compile error: %v", src, err)
		}
	}
}

func TestReturnOutsideFunctionRejected(t *testing.T) {
	compileErr(t, `return 1;`)
}
