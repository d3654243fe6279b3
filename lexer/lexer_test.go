package lexer_test

import (
	"strings"
	"testing"

	"github.com/RevengerWizard/teascript-sub001/lexer"
)

func scanAll(t *testing.T, src string) []lexer.Token {
	t.Helper()
	l := lexer.New(strings.NewReader(src))
	var toks []lexer.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == lexer.EOF || tok.Type == lexer.Error {
			break
		}
	}
	return toks
}

func types(toks []lexer.Token) []lexer.Type {
	out := make([]lexer.Type, len(toks))
	for i, tok := range toks {
		out[i] = tok.Type
	}
	return out
}

func eqTypes(t *testing.T, got []lexer.Type, want ...lexer.Type) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestKeywordsAndIdents(t *testing.T) {
	toks := scanAll(t, "var x = self.foo")
	eqTypes(t, types(toks),
		lexer.Var, lexer.Identifier, lexer.Equal, lexer.Self, lexer.Dot, lexer.Identifier, lexer.EOF)
}

func TestNumbers(t *testing.T) {
	data := []struct {
		src  string
		want float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.14", 3.14},
		{"1_000", 1000},
		{"1e10", 1e10},
		{"1.5e-3", 1.5e-3},
		{"0x1A", 26},
		{"0o17", 15},
		{"0b101", 5},
	}
	for _, d := range data {
		toks := scanAll(t, d.src)
		if len(toks) < 1 || toks[0].Type != lexer.Number {
			t.Fatalf("%q: expected a single number token, got %v", d.src, toks)
		}
		if toks[0].NumberValue != d.want {
			t.Errorf("%q: got %v, want %v", d.src, toks[0].NumberValue, d.want)
		}
	}
}

func TestBadNumber(t *testing.T) {
	toks := scanAll(t, "1e")
	if toks[len(toks)-1].Type != lexer.Error {
		t.Fatalf("expected a trailing error token, got %v", toks)
	}
}

func TestOperators(t *testing.T) {
	toks := scanAll(t, "+ - += -= == != <= >= << >> ** ?? => ... ..")
	eqTypes(t, types(toks),
		lexer.Plus, lexer.Minus, lexer.PlusEqual, lexer.MinusEqual,
		lexer.EqualEqual, lexer.BangEqual, lexer.LessEqual, lexer.GreaterEqual,
		lexer.LessLess, lexer.GreaterGreater, lexer.StarStar, lexer.QuestionQuestion,
		lexer.Arrow, lexer.DotDotDot, lexer.DotDot, lexer.EOF)
}

func TestLineComment(t *testing.T) {
	toks := scanAll(t, "1 // two\n3")
	eqTypes(t, types(toks), lexer.Number, lexer.Number, lexer.EOF)
	if toks[0].NumberValue != 1 || toks[1].NumberValue != 3 {
		t.Fatalf("got %v", toks)
	}
}

func TestBlockComment(t *testing.T) {
	toks := scanAll(t, "1 /* outer /* inner */ still outer */ 2")
	eqTypes(t, types(toks), lexer.Number, lexer.Number, lexer.EOF)
}

func TestUnterminatedBlockComment(t *testing.T) {
	toks := scanAll(t, "/* never closes")
	if toks[len(toks)-1].Type != lexer.Error {
		t.Fatalf("expected error, got %v", toks)
	}
}

func TestSimpleString(t *testing.T) {
	toks := scanAll(t, `"hello, world"`)
	eqTypes(t, types(toks), lexer.String, lexer.EOF)
	if toks[0].StringValue != "hello, world" {
		t.Errorf("got %q", toks[0].StringValue)
	}
}

func TestStringEscapes(t *testing.T) {
	toks := scanAll(t, `"a\tb\nc\x41B"`)
	if toks[0].Type != lexer.String {
		t.Fatalf("got %v", toks)
	}
	want := "a\tb\ncAB"
	if toks[0].StringValue != want {
		t.Errorf("got %q, want %q", toks[0].StringValue, want)
	}
}

func TestUnterminatedString(t *testing.T) {
	toks := scanAll(t, `"no closing quote`)
	if toks[len(toks)-1].Type != lexer.Error {
		t.Fatalf("expected error, got %v", toks)
	}
}

func TestTripleQuotedString(t *testing.T) {
	toks := scanAll(t, "\"\"\"line one\nline two\"\"\"")
	eqTypes(t, types(toks), lexer.String, lexer.EOF)
	if toks[0].StringValue != "line one\nline two" {
		t.Errorf("got %q", toks[0].StringValue)
	}
}

func TestInterpolation(t *testing.T) {
	toks := scanAll(t, `"a${1+2}b"`)
	eqTypes(t, types(toks),
		lexer.InterpStart, lexer.Number, lexer.Plus, lexer.Number, lexer.InterpEnd, lexer.EOF)
	if toks[0].StringValue != "a" {
		t.Errorf("prefix: got %q", toks[0].StringValue)
	}
	if toks[4].StringValue != "b" {
		t.Errorf("suffix: got %q", toks[4].StringValue)
	}
}

func TestInterpolationWithBraceExpr(t *testing.T) {
	// the embedded expression can itself contain balanced braces (e.g. a
	// block-bodied arrow function) without prematurely closing the
	// interpolation.
	toks := scanAll(t, `"x${ {1} }y"`)
	eqTypes(t, types(toks),
		lexer.InterpStart, lexer.LeftBrace, lexer.Number, lexer.RightBrace, lexer.InterpEnd, lexer.EOF)
}

func TestInterpolationDepthLimit(t *testing.T) {
	// 5 nested ${ openings exceed the 4-level limit.
	src := `"${"${"${"${"${1}"}"}"}"}"`
	toks := scanAll(t, src)
	found := false
	for _, tok := range toks {
		if tok.Type == lexer.Error {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error token for excessive interpolation nesting, got %v", toks)
	}
}

func TestShebangAndBOM(t *testing.T) {
	toks := scanAll(t, "\xEF\xBB\xBF#!/usr/bin/env tea\nvar x = 1")
	eqTypes(t, types(toks), lexer.Var, lexer.Identifier, lexer.Equal, lexer.Number, lexer.EOF)
}
