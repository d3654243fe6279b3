package vm

// execImport dispatches the six import opcodes of spec.md §4.6/§4.7. The
// sequence for `import name [as alias][, …]` is IMPORT_NAME (resolve, run,
// push module) [IMPORT_ALIAS (dup for binding)]* IMPORT_END (close the
// sequence); `from mod import a, b as c` follows IMPORT_NAME with one
// IMPORT_VARIABLE per name, then IMPORT_END. Circular imports are resolved
// by caching the module object in the registry before its body executes
// (spec.md §4.6).
func (i *Instance) execImport(op Op, proto *gcProto, frame *CallFrame) error {
	code := proto.code
	switch op {
	case OpImportName:
		k := code[frame.ip]
		frame.ip++
		name := proto.constants[k].AsObject().str()
		mod, err := i.resolveModule(name.chars, i.moduleLoader)
		if err != nil {
			return err
		}
		i.push(FromObject(&mod.object))
		return nil

	case OpImportString:
		k := code[frame.ip]
		frame.ip++
		path := proto.constants[k].AsObject().str()
		mod, err := i.resolveModule(path.chars, i.fileLoader)
		if err != nil {
			return err
		}
		i.push(FromObject(&mod.object))
		return nil

	case OpImportFmt:
		path := i.pop()
		if path.Type() != objString {
			return newError(ErrBADTYPE, "string", path.TypeName())
		}
		mod, err := i.resolveModule(path.AsObject().str().chars, i.fileLoader)
		if err != nil {
			return err
		}
		i.push(FromObject(&mod.object))
		return nil

	case OpImportVariable:
		k := code[frame.ip]
		frame.ip++
		name := proto.constants[k].AsObject().str()
		mod := i.peek(0)
		if mod.Type() != objModule {
			return newError(ErrBADTYPE, "module", mod.TypeName())
		}
		v, ok := mod.AsObject().module().exports.Get(name)
		if !ok {
			return newError(ErrVARMOD, name.chars, mod.AsObject().module().name.chars)
		}
		i.push(v)
		return nil

	case OpImportAlias:
		i.push(i.peek(0))
		return nil

	case OpImportEnd:
		i.pop()
		i.push(Nil)
		return nil
	}
	return nil
}

// resolveModule looks up name in the module registry, compiling and
// running it via load on a miss, and caching the (empty) module object
// before execution so a cycle resolves to the partially-populated module
// instead of recursing forever.
func (i *Instance) resolveModule(name string, load func(string, *gcModule) (*gcProto, error)) (*gcModule, error) {
	if m, ok := i.modules[name]; ok {
		return m, nil
	}
	if load == nil {
		return nil, newError(ErrNOPATH, name)
	}
	modName, err := i.Intern(name)
	if err != nil {
		return nil, err
	}
	mod := i.newModule(modName, name)
	i.modules[name] = mod

	proto, err := load(name, mod)
	if err != nil {
		delete(i.modules, name)
		return nil, err
	}
	if _, err := i.Run(proto); err != nil {
		delete(i.modules, name)
		return nil, err
	}
	return mod, nil
}
