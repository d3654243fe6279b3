// Package bcdump saves a compiled prototype tree to a binary image and
// reloads it without re-running the lexer/parser, the way a teascript
// embedder would ship a precompiled script (spec.md §1 names "bytecode
// dump format" as an out-of-core, external-collaborator concern; this
// package is that collaborator).
//
// Grounded on db47h-ngaro/vm/mem.go's Load/Save pairing: a small fixed
// header, bufio-wrapped readers/writers, encoding/binary for every fixed-
// width field, and github.com/pkg/errors for wrapped, contextual errors.
// Unlike mem.go's flat Cell array, a prototype is a tree (constants may
// themselves be prototypes), so the format recurses depth-first and
// reassembles bottom-up through vm.ProtoBuilder, the same builder the
// compiler package uses.
package bcdump

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/RevengerWizard/teascript-sub001/vm"
)

// magic identifies a teascript bytecode image; version guards against a
// future format change being loaded by an older reader.
const (
	magic   = "TEAB"
	version = 1
)

// Dump writes proto and its full nested prototype tree to w as a single
// binary image.
func Dump(w io.Writer, proto *vm.Proto) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return errors.Wrap(err, "write magic")
	}
	if err := binary.Write(bw, binary.BigEndian, uint32(version)); err != nil {
		return errors.Wrap(err, "write version")
	}
	if err := dumpProto(bw, proto); err != nil {
		return errors.Wrap(err, "dump proto")
	}
	return errors.Wrap(bw.Flush(), "flush")
}

func dumpProto(w *bufio.Writer, p *vm.Proto) error {
	if err := writeString(w, vm.ProtoName(p)); err != nil {
		return err
	}
	if err := writeByte(w, byte(vm.ProtoKindOf(p))); err != nil {
		return err
	}
	required, optional, variadic := vm.ProtoArity(p)
	if err := writeByte(w, required); err != nil {
		return err
	}
	if err := writeByte(w, optional); err != nil {
		return err
	}
	if err := writeBool(w, variadic); err != nil {
		return err
	}
	if err := writeByte(w, vm.ProtoMaxSlots(p)); err != nil {
		return err
	}

	upvalues := vm.ProtoUpvalues(p)
	if err := writeU16(w, len(upvalues)); err != nil {
		return err
	}
	for _, u := range upvalues {
		if err := writeBool(w, u.IsLocal); err != nil {
			return err
		}
		if err := writeByte(w, u.Index); err != nil {
			return err
		}
		if err := writeBool(w, u.IsConst); err != nil {
			return err
		}
	}

	lines := vm.ProtoLines(p)
	if err := writeU32(w, len(lines)); err != nil {
		return err
	}
	for _, e := range lines {
		if err := writeU32(w, e.Offset); err != nil {
			return err
		}
		if err := writeU32(w, e.Line); err != nil {
			return err
		}
	}

	code := vm.ProtoCode(p)
	if err := writeU32(w, len(code)); err != nil {
		return err
	}
	if _, err := w.Write(code); err != nil {
		return errors.Wrap(err, "write code")
	}

	constants := vm.ProtoConstants(p)
	if err := writeU16(w, len(constants)); err != nil {
		return err
	}
	for _, c := range constants {
		if err := dumpConstant(w, c); err != nil {
			return err
		}
	}
	return nil
}

func dumpConstant(w *bufio.Writer, v vm.Value) error {
	kind := vm.ClassifyConstant(v)
	if err := writeByte(w, byte(kind)); err != nil {
		return err
	}
	switch kind {
	case vm.ConstNil:
		return nil
	case vm.ConstBool:
		return writeBool(w, v.AsBool())
	case vm.ConstNumber:
		return binary.Write(w, binary.BigEndian, v.AsNumber())
	case vm.ConstString:
		return writeString(w, vm.ConstantString(v))
	case vm.ConstProto:
		return dumpProto(w, vm.ConstantProto(v))
	default:
		return errors.Errorf("unknown constant kind %d", kind)
	}
}

func writeByte(w *bufio.Writer, b byte) error { return errors.Wrap(w.WriteByte(b), "write byte") }

func writeBool(w *bufio.Writer, b bool) error {
	if b {
		return writeByte(w, 1)
	}
	return writeByte(w, 0)
}

func writeU16(w *bufio.Writer, n int) error {
	return errors.Wrap(binary.Write(w, binary.BigEndian, uint16(n)), "write u16")
}

func writeU32(w *bufio.Writer, n int) error {
	return errors.Wrap(binary.Write(w, binary.BigEndian, uint32(n)), "write u32")
}

func writeString(w *bufio.Writer, s string) error {
	if err := writeU16(w, len(s)); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return errors.Wrap(err, "write string")
}
