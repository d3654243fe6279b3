package bcdump_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/RevengerWizard/teascript-sub001/bcdump"
	"github.com/RevengerWizard/teascript-sub001/compiler"
	"github.com/RevengerWizard/teascript-sub001/vm"
)

func compile(t *testing.T, src string) (*vm.Instance, *vm.Proto) {
	t.Helper()
	inst := vm.New()
	proto, _, err := compiler.Compile(inst, strings.NewReader(src), "test")
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return inst, proto
}

func TestRoundTripFlatCode(t *testing.T) {
	_, proto := compile(t, `var x = 1 + 2; var y = "hi";`)

	var buf bytes.Buffer
	if err := bcdump.Dump(&buf, proto); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	inst2 := vm.New()
	mod := inst2.NewModule("reloaded", "reloaded")
	got, err := bcdump.Load(&buf, inst2, mod)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	wantCode := vm.ProtoCode(proto)
	gotCode := vm.ProtoCode(got)
	if !bytes.Equal(wantCode, gotCode) {
		t.Fatalf("code mismatch:\n got %v\nwant %v", gotCode, wantCode)
	}
	if len(vm.ProtoConstants(got)) != len(vm.ProtoConstants(proto)) {
		t.Fatalf("constant count mismatch: got %d, want %d",
			len(vm.ProtoConstants(got)), len(vm.ProtoConstants(proto)))
	}
}

func TestRoundTripNestedProto(t *testing.T) {
	_, proto := compile(t, `
		function outer(a) {
			function inner(b) {
				return a + b;
			}
			return inner;
		}
	`)

	var buf bytes.Buffer
	if err := bcdump.Dump(&buf, proto); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	inst2 := vm.New()
	mod := inst2.NewModule("reloaded", "reloaded")
	got, err := bcdump.Load(&buf, inst2, mod)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	constants := vm.ProtoConstants(got)
	var sawNested bool
	for _, c := range constants {
		if vm.ClassifyConstant(c) == vm.ConstProto {
			sawNested = true
			nested := vm.ConstantProto(c)
			if vm.ProtoName(nested) != "outer" {
				t.Fatalf("nested proto name = %q, want %q", vm.ProtoName(nested), "outer")
			}
		}
	}
	if !sawNested {
		t.Fatalf("expected a nested prototype constant, found none")
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	inst := vm.New()
	mod := inst.NewModule("m", "m")
	_, err := bcdump.Load(strings.NewReader("nope"), inst, mod)
	if err == nil {
		t.Fatalf("expected an error for a non-image input")
	}
}

func TestLoadRejectsTruncatedImage(t *testing.T) {
	_, proto := compile(t, `var x = 1;`)
	var buf bytes.Buffer
	if err := bcdump.Dump(&buf, proto); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()/2]

	inst2 := vm.New()
	mod := inst2.NewModule("m", "m")
	if _, err := bcdump.Load(bytes.NewReader(truncated), inst2, mod); err == nil {
		t.Fatalf("expected an error for a truncated image")
	}
}
