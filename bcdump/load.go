package bcdump

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/RevengerWizard/teascript-sub001/vm"
)

// Load reads a binary image written by Dump, rebuilding its prototype tree
// against inst through vm.ProtoBuilder -- the same construction API the
// compiler package uses, so a loaded proto is indistinguishable at runtime
// from one freshly compiled from source. mod is the module namespace every
// rebuilt prototype shares (spec.md §4.6's GET_MODULE/SET_MODULE/
// DEFINE_MODULE address proto.module directly with no fallback); pass a
// fresh vm.Instance.NewModule for a standalone image, or the module an
// import is being resolved into.
func Load(r io.Reader, inst *vm.Instance, mod *vm.Module) (*vm.Proto, error) {
	br := bufio.NewReader(r)
	var gotMagic [4]byte
	if _, err := io.ReadFull(br, gotMagic[:]); err != nil {
		return nil, errors.Wrap(err, "read magic")
	}
	if string(gotMagic[:]) != magic {
		return nil, errors.Errorf("not a teascript bytecode image (bad magic %q)", gotMagic)
	}
	var v uint32
	if err := binary.Read(br, binary.BigEndian, &v); err != nil {
		return nil, errors.Wrap(err, "read version")
	}
	if v != version {
		return nil, errors.Errorf("unsupported bytecode image version %d", v)
	}
	return loadProto(br, inst, mod)
}

func loadProto(r *bufio.Reader, inst *vm.Instance, mod *vm.Module) (*vm.Proto, error) {
	name, err := readString(r)
	if err != nil {
		return nil, errors.Wrap(err, "read name")
	}
	kindByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read kind")
	}
	b := inst.NewProtoBuilder(name, vm.ProtoKind(kindByte), mod)

	required, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read arity")
	}
	optional, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read optional arity")
	}
	variadic, err := readBool(r)
	if err != nil {
		return nil, errors.Wrap(err, "read variadic flag")
	}
	b.SetArity(required, optional, variadic)

	maxSlots, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read max slots")
	}
	b.SetMaxSlots(maxSlots)

	nUpvalues, err := readU16(r)
	if err != nil {
		return nil, errors.Wrap(err, "read upvalue count")
	}
	for k := 0; k < nUpvalues; k++ {
		isLocal, err := readBool(r)
		if err != nil {
			return nil, errors.Wrap(err, "read upvalue is-local")
		}
		idx, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(err, "read upvalue index")
		}
		isConst, err := readBool(r)
		if err != nil {
			return nil, errors.Wrap(err, "read upvalue is-const")
		}
		b.AddUpvalue(vm.UpvalueDesc{IsLocal: isLocal, Index: idx, IsConst: isConst})
	}

	nLines, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "read line table length")
	}
	for k := 0; k < nLines; k++ {
		offset, err := readU32(r)
		if err != nil {
			return nil, errors.Wrap(err, "read line offset")
		}
		line, err := readU32(r)
		if err != nil {
			return nil, errors.Wrap(err, "read line number")
		}
		b.AddLine(offset, line)
	}

	codeLen, err := readU32(r)
	if err != nil {
		return nil, errors.Wrap(err, "read code length")
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, errors.Wrap(err, "read code")
	}
	b.EmitBytes(code...)

	nConstants, err := readU16(r)
	if err != nil {
		return nil, errors.Wrap(err, "read constant count")
	}
	for k := 0; k < nConstants; k++ {
		if err := loadConstant(r, inst, mod, b); err != nil {
			return nil, errors.Wrapf(err, "read constant %d", k)
		}
	}

	proto, _ := b.Finish()
	return proto, nil
}

func loadConstant(r *bufio.Reader, inst *vm.Instance, mod *vm.Module, b *vm.ProtoBuilder) error {
	kindByte, err := r.ReadByte()
	if err != nil {
		return errors.Wrap(err, "read constant kind")
	}
	switch vm.ConstKind(kindByte) {
	case vm.ConstNil:
		b.AddConstant(vm.Nil)
	case vm.ConstBool:
		v, err := readBool(r)
		if err != nil {
			return err
		}
		b.AddConstant(vm.Bool(v))
	case vm.ConstNumber:
		var f float64
		if err := binary.Read(r, binary.BigEndian, &f); err != nil {
			return errors.Wrap(err, "read number")
		}
		b.AddConstant(vm.Number(f))
	case vm.ConstString:
		s, err := readString(r)
		if err != nil {
			return err
		}
		if _, err := b.InternConstant(s); err != nil {
			return errors.Wrap(err, "intern string constant")
		}
	case vm.ConstProto:
		child, err := loadProto(r, inst, mod)
		if err != nil {
			return err
		}
		b.AddConstant(vm.ProtoValue(child))
	default:
		return errors.Errorf("unknown constant kind %d", kindByte)
	}
	return nil
}

func readBool(r *bufio.Reader) (bool, error) {
	b, err := r.ReadByte()
	return b != 0, errors.Wrap(err, "read bool")
}

func readU16(r *bufio.Reader) (int, error) {
	var v uint16
	err := binary.Read(r, binary.BigEndian, &v)
	return int(v), errors.Wrap(err, "read u16")
}

func readU32(r *bufio.Reader) (int, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return int(v), errors.Wrap(err, "read u32")
}

func readString(r *bufio.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Wrap(err, "read string bytes")
	}
	return string(buf), nil
}
