package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NumberToString formats a float64 the way the reference's number→string
// formatter does: integral values print without a trailing ".0", NaN/Inf
// print their textual names, and everything else uses the shortest
// round-tripping decimal representation (spec.md §4, "Formatting";
// round-trip property in §8, "tonumber(tostring(x)) == x").
func NumberToString(n float64) string {
	switch {
	case math.IsNaN(n):
		return "nan"
	case math.IsInf(n, 1):
		return "inf"
	case math.IsInf(n, -1):
		return "-inf"
	case n == math.Trunc(n) && math.Abs(n) < 1e15:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
}

// ParseNumber is the inverse of NumberToString plus the lexer's extended
// literal grammar (hex/octal/binary, inf/infinity/nan, §4.5); used by the
// `tonumber`-style stdlib collaborator and by the constant folder.
func ParseNumber(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	lower := strings.ToLower(t)
	neg := false
	body := lower
	if strings.HasPrefix(body, "-") {
		neg = true
		body = body[1:]
	} else if strings.HasPrefix(body, "+") {
		body = body[1:]
	}
	switch body {
	case "inf", "infinity":
		if neg {
			return math.Inf(-1), true
		}
		return math.Inf(1), true
	case "nan":
		return math.NaN(), true
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return f, true
	}
	if i, err := strconv.ParseInt(t, 0, 64); err == nil {
		return float64(i), true
	}
	if u, err := strconv.ParseUint(t, 0, 64); err == nil {
		return float64(u), true
	}
	return 0, false
}

// ToString implements the core's pretty-printer (spec.md §4, "object
// pretty-print"). It is the fallback the VM uses for `print`/string
// concatenation/interpolation when a value has no user-level `tostring`
// override; stdlib collaborators may call a class's own `tostring` method
// first and only fall back to this for primitives and uncustomized types.
func (i *Instance) ToString(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return NumberToString(v.AsNumber())
	default:
		return i.objectToString(v.AsObject())
	}
}

func (i *Instance) objectToString(o *object) string {
	switch o.typ {
	case objString:
		return o.str().chars
	case objRange:
		r := o.rangeObj()
		return fmt.Sprintf("%s..%s", NumberToString(r.start), NumberToString(r.end))
	case objList:
		return i.listToString(o.list())
	case objMap:
		return i.mapToString(o.mapObj())
	case objFunc:
		name := "anonymous"
		if o.fn().proto.name != nil {
			name = o.fn().proto.name.chars
		}
		return fmt.Sprintf("<function %s>", name)
	case objCFunc:
		return fmt.Sprintf("<function %s>", o.cfunc().name)
	case objClass:
		return fmt.Sprintf("<class %s>", o.class().name.chars)
	case objInstance:
		return fmt.Sprintf("<%s instance>", o.instance().class.name.chars)
	case objMethod:
		return fmt.Sprintf("<bound method %s>", i.ToString(o.method().fn))
	case objModule:
		return fmt.Sprintf("<module %s>", o.module().name.chars)
	case objBuffer:
		return fmt.Sprintf("<buffer %d bytes>", len(o.buffer().data))
	case objFile:
		return fmt.Sprintf("<file %s>", o.file().path)
	case objUserdata:
		return "<userdata>"
	default:
		return "<?>"
	}
}

func (i *Instance) listToString(l *gcList) string {
	var b strings.Builder
	b.WriteByte('[')
	for idx, v := range l.items {
		if idx > 0 {
			b.WriteString(", ")
		}
		if v.Type() == objString {
			b.WriteByte('"')
			b.WriteString(v.AsObject().str().chars)
			b.WriteByte('"')
		} else {
			b.WriteString(i.ToString(v))
		}
	}
	b.WriteByte(']')
	return b.String()
}

func (i *Instance) mapToString(m *gcMap) string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for _, e := range m.entries {
		if !e.used || e.tomb {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		if e.key.Type() == objString {
			b.WriteString(e.key.AsObject().str().chars)
			b.WriteString(" = ")
		} else {
			b.WriteString("[")
			b.WriteString(i.ToString(e.key))
			b.WriteString("] = ")
		}
		b.WriteString(i.ToString(e.value))
	}
	b.WriteByte('}')
	return b.String()
}

// Format implements the stdlib `String.format`-style minimal printf subset
// the core is responsible for driving (spec.md §2, "Formatting" row):
// `%s` (ToString), `%d` (truncated integer), `%g` (NumberToString), `%%`.
// Anything else raises ErrSTRFMT with the offending verb.
func (i *Instance) Format(tmpl string, args []Value) (string, error) {
	var b strings.Builder
	argi := 0
	for idx := 0; idx < len(tmpl); idx++ {
		c := tmpl[idx]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		idx++
		if idx >= len(tmpl) {
			return "", newError(ErrSTRFMT, "%")
		}
		verb := tmpl[idx]
		if verb == '%' {
			b.WriteByte('%')
			continue
		}
		if argi >= len(args) {
			return "", newError(ErrNOVAL)
		}
		arg := args[argi]
		argi++
		switch verb {
		case 's':
			b.WriteString(i.ToString(arg))
		case 'd':
			b.WriteString(strconv.FormatInt(int64(arg.AsNumber()), 10))
		case 'g':
			b.WriteString(NumberToString(arg.AsNumber()))
		default:
			return "", newError(ErrSTRFMT, string(verb))
		}
	}
	return b.String(), nil
}
