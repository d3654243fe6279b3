package lexer

import (
	"bufio"
	"io"
	"strings"

	"github.com/RevengerWizard/teascript-sub001/vm"
)

const maxInterpDepth = 4

// Lexer is a one-token-lookahead streaming tokenizer over a byte reader. It
// is hand-rolled rather than built on text/scanner because the string
// grammar (triple-delimited literals, ${...} interpolation nested up to 4
// levels, decimal/hex/unicode escapes) needs stateful multi-character
// lookahead text/scanner does not expose; this mirrors how the teacher's
// own asm package keeps a hand-driven character loop for its Forth-like
// token shapes rather than delegating everything to the scanner.
type Lexer struct {
	r        *bufio.Reader
	line     int
	peeked   bool
	peekedR  rune
	peekedSz int
	atStart  bool

	// interps holds one entry per currently-suspended string literal, the
	// innermost (most recently opened) interpolation last. Scanning a `${`
	// inside a string pushes an entry and switches Next() into normal
	// token mode for the embedded expression; the matching unnested `}`
	// pops it and resumes scanning the string body (spec.md §4.5, up to
	// maxInterpDepth levels tracked by this stack).
	interps []interpState
}

// interpState is one suspended string literal waiting to resume after an
// embedded `${ ... }` expression finishes.
type interpState struct {
	delim  rune
	triple bool
	braces int // unmatched '{' seen inside the embedded expression so far
}

// New creates a Lexer reading from r.
func New(r io.Reader) *Lexer {
	return &Lexer{r: bufio.NewReader(r), line: 1, atStart: true}
}

func (l *Lexer) errorAt(code vm.ErrCode, args ...any) Token {
	return Token{Type: Error, Lexeme: vm.NewErrorAt(code, l.line, args...).Error(), Line: l.line}
}

func (l *Lexer) readRune() (rune, int, error) {
	if l.peeked {
		l.peeked = false
		return l.peekedR, l.peekedSz, nil
	}
	return l.r.ReadRune()
}

func (l *Lexer) unreadRune(r rune, sz int) {
	l.peeked = true
	l.peekedR = r
	l.peekedSz = sz
}

func (l *Lexer) peekRune() rune {
	r, sz, err := l.readRune()
	if err != nil {
		return 0
	}
	l.unreadRune(r, sz)
	return r
}

func (l *Lexer) peekRuneAt2() rune {
	r1, sz1, err1 := l.readRune()
	if err1 != nil {
		return 0
	}
	r2, _, err2 := l.r.ReadRune()
	if err2 == nil {
		l.r.UnreadRune()
	}
	l.unreadRune(r1, sz1)
	if err2 != nil {
		return 0
	}
	return r2
}

func (l *Lexer) advance() rune {
	r, _, err := l.readRune()
	if err != nil {
		return 0
	}
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) match(expect rune) bool {
	r, sz, err := l.readRune()
	if err != nil {
		return false
	}
	if r != expect {
		l.unreadRune(r, sz)
		return false
	}
	return true
}

// skipBOMAndShebang consumes a leading UTF-8 BOM and/or a `#!` shebang line,
// per spec.md §4.5.
func (l *Lexer) skipBOMAndShebang() {
	if !l.atStart {
		return
	}
	l.atStart = false
	b, err := l.r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		l.r.Discard(3)
	}
	b2, err := l.r.Peek(2)
	if err == nil && len(b2) == 2 && b2[0] == '#' && b2[1] == '!' {
		for {
			r, _, err := l.r.ReadRune()
			if err != nil || r == '\n' {
				break
			}
		}
		l.line++
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isAlpha(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r >= 0x80
}
func isAlnum(r rune) bool { return isAlpha(r) || isDigit(r) }

func (l *Lexer) skipWhitespaceAndComments() *Token {
	for {
		r := l.peekRune()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			l.advance()
		case r == '/' && l.peekRuneAt2() == '/':
			l.advance()
			l.advance()
			for {
				r := l.peekRune()
				if r == 0 || r == '\n' {
					break
				}
				l.advance()
			}
		case r == '/' && l.peekRuneAt2() == '*':
			l.advance()
			l.advance()
			depth := 1
			for depth > 0 {
				c := l.advance()
				if c == 0 {
					t := l.errorAt(vm.ErrXLCOM)
					return &t
				}
				if c == '/' && l.peekRune() == '*' {
					l.advance()
					depth++
				} else if c == '*' && l.peekRune() == '/' {
					l.advance()
					depth--
				}
			}
		default:
			return nil
		}
	}
}

// Next returns the next token in the stream.
func (l *Lexer) Next() Token {
	l.skipBOMAndShebang()
	if t := l.skipWhitespaceAndComments(); t != nil {
		return *t
	}
	line := l.line
	r := l.advance()
	if r == 0 {
		return Token{Type: EOF, Line: line}
	}

	switch {
	case isAlpha(r):
		return l.identifier(r, line)
	case isDigit(r):
		return l.number(r, line)
	case r == '"' || r == '\'' || r == '`':
		return l.stringLiteral(r, line)
	}

	mk := func(t Type, lex string) Token { return Token{Type: t, Lexeme: lex, Line: line} }

	switch r {
	case '(':
		return mk(LeftParen, "(")
	case ')':
		return mk(RightParen, ")")
	case '{':
		if n := len(l.interps); n > 0 {
			l.interps[n-1].braces++
		}
		return mk(LeftBrace, "{")
	case '}':
		if n := len(l.interps); n > 0 {
			top := &l.interps[n-1]
			if top.braces > 0 {
				top.braces--
				return mk(RightBrace, "}")
			}
			st := *top
			l.interps = l.interps[:n-1]
			return l.resumeString(st.delim, st.triple, line)
		}
		return mk(RightBrace, "}")
	case '[':
		return mk(LeftBracket, "[")
	case ']':
		return mk(RightBracket, "]")
	case ',':
		return mk(Comma, ",")
	case ':':
		return mk(Colon, ":")
	case ';':
		return mk(Semicolon, ";")
	case '~':
		return mk(Tilde, "~")
	case '.':
		if l.match('.') {
			if l.match('.') {
				return mk(DotDotDot, "...")
			}
			return mk(DotDot, "..")
		}
		return mk(Dot, ".")
	case '-':
		if l.match('=') {
			return mk(MinusEqual, "-=")
		}
		return mk(Minus, "-")
	case '+':
		if l.match('=') {
			return mk(PlusEqual, "+=")
		}
		return mk(Plus, "+")
	case '*':
		if l.match('*') {
			if l.match('=') {
				return mk(StarStarEqual, "**=")
			}
			return mk(StarStar, "**")
		}
		if l.match('=') {
			return mk(StarEqual, "*=")
		}
		return mk(Star, "*")
	case '/':
		// a second '/' or a '*' here would already have been consumed by
		// skipWhitespaceAndComments as a line or block comment.
		if l.match('=') {
			return mk(SlashEqual, "/=")
		}
		return mk(Slash, "/")
	case '%':
		if l.match('=') {
			return mk(PercentEqual, "%=")
		}
		return mk(Percent, "%")
	case '&':
		if l.match('=') {
			return mk(AmpEqual, "&=")
		}
		return mk(Amp, "&")
	case '|':
		if l.match('=') {
			return mk(PipeEqual, "|=")
		}
		return mk(Pipe, "|")
	case '^':
		if l.match('=') {
			return mk(CaretEqual, "^=")
		}
		return mk(Caret, "^")
	case '?':
		if l.match('?') {
			if l.match('=') {
				return mk(QuestionQuestionEqual, "??=")
			}
			return mk(QuestionQuestion, "??")
		}
		return mk(Question, "?")
	case '!':
		if l.match('=') {
			return mk(BangEqual, "!=")
		}
		return mk(Bang, "!")
	case '=':
		if l.match('=') {
			return mk(EqualEqual, "==")
		}
		if l.match('>') {
			return mk(Arrow, "=>")
		}
		return mk(Equal, "=")
	case '<':
		if l.match('<') {
			if l.match('=') {
				return mk(LessLessEqual, "<<=")
			}
			return mk(LessLess, "<<")
		}
		if l.match('=') {
			return mk(LessEqual, "<=")
		}
		return mk(Less, "<")
	case '>':
		if l.match('>') {
			if l.match('=') {
				return mk(GreaterGreaterEqual, ">>=")
			}
			return mk(GreaterGreater, ">>")
		}
		if l.match('=') {
			return mk(GreaterEqual, ">=")
		}
		return mk(Greater, ">")
	case '$':
		// bare `$` outside of a string literal is only meaningful as the
		// start of `${` inside interpolation; elsewhere it is unexpected.
		t := l.errorAt(vm.ErrXCHAR)
		return t
	default:
		t := l.errorAt(vm.ErrXCHAR)
		return t
	}
}

func (l *Lexer) identifier(first rune, line int) Token {
	var b strings.Builder
	b.WriteRune(first)
	for isAlnum(l.peekRune()) {
		b.WriteRune(l.advance())
	}
	text := b.String()
	if kw, ok := Keywords[text]; ok {
		return Token{Type: kw, Lexeme: text, Line: line}
	}
	return Token{Type: Identifier, Lexeme: text, Line: line}
}

func (l *Lexer) number(first rune, line int) Token {
	var b strings.Builder
	b.WriteRune(first)

	isBasePrefix := first == '0' && (l.peekRune() == 'x' || l.peekRune() == 'X' ||
		l.peekRune() == 'o' || l.peekRune() == 'O' || l.peekRune() == 'b' || l.peekRune() == 'B')
	if isBasePrefix {
		b.WriteRune(l.advance())
		for isAlnum(l.peekRune()) || l.peekRune() == '_' {
			r := l.advance()
			if r != '_' {
				b.WriteRune(r)
			}
		}
		text := b.String()
		n, ok := vm.ParseNumber(text)
		if !ok {
			return l.errorAt(vm.ErrXNUMBER)
		}
		return Token{Type: Number, Lexeme: text, Line: line, NumberValue: n}
	}

	for isDigit(l.peekRune()) || l.peekRune() == '_' {
		r := l.advance()
		if r != '_' {
			b.WriteRune(r)
		}
	}
	if l.peekRune() == '.' && isDigit(l.peekRuneAt2()) {
		b.WriteRune(l.advance())
		for isDigit(l.peekRune()) || l.peekRune() == '_' {
			r := l.advance()
			if r != '_' {
				b.WriteRune(r)
			}
		}
	}
	if r := l.peekRune(); r == 'e' || r == 'E' {
		b.WriteRune(l.advance())
		if r := l.peekRune(); r == '+' || r == '-' {
			b.WriteRune(l.advance())
		}
		if !isDigit(l.peekRune()) {
			return l.errorAt(vm.ErrXNUMBER)
		}
		for isDigit(l.peekRune()) {
			b.WriteRune(l.advance())
		}
	}
	text := b.String()
	n, ok := vm.ParseNumber(text)
	if !ok {
		return l.errorAt(vm.ErrXNUMBER)
	}
	return Token{Type: Number, Lexeme: text, Line: line, NumberValue: n}
}

// stringLiteral scans a string starting after the opening delimiter has
// already been consumed by Next's outer switch (delim is that consumed
// rune). Handles the triple-delimiter multi-line form, all escape
// sequences, and ${...} interpolation up to maxInterpDepth nesting.
func (l *Lexer) stringLiteral(delim rune, line int) Token {
	triple := false
	if l.peekRune() == delim && l.peekRuneAt2() == delim {
		l.advance()
		l.advance()
		triple = true
	}
	return l.scanStringBody(delim, triple, line, String, InterpStart)
}

// resumeString continues scanning a string literal after an embedded
// ${...} expression's closing brace (consumed by Next's '}' case). Since
// it is resuming mid-literal, not opening one, the piece it produces is
// either InterpEnd (closing delimiter reached) or InterpMid (another
// ${ reached), never a plain String/InterpStart.
func (l *Lexer) resumeString(delim rune, triple bool, line int) Token {
	return l.scanStringBody(delim, triple, line, InterpEnd, InterpMid)
}

// scanStringBody scans literal text and escapes up to either the closing
// delimiter (returning endType) or the next `${` (returning midType,
// pushing a suspend state so Next() resumes here later).
func (l *Lexer) scanStringBody(delim rune, triple bool, line int, endType, midType Type) Token {
	var b strings.Builder
	for {
		r := l.peekRune()
		if r == 0 {
			return l.errorAt(vm.ErrXSTR)
		}
		if !triple && r == '\n' {
			return l.errorAt(vm.ErrXSTR)
		}
		if r == delim {
			if triple {
				if l.peekRuneAt2() != delim {
					b.WriteRune(l.advance())
					continue
				}
				l.advance()
				l.advance()
				if l.peekRune() != delim {
					return l.errorAt(vm.ErrXSTR)
				}
				l.advance()
			} else {
				l.advance()
			}
			text := b.String()
			return Token{Type: endType, Lexeme: text, StringValue: text, Line: line}
		}
		if r == '\\' {
			l.advance()
			esc, errTok := l.escape()
			if errTok.Type == Error {
				return errTok
			}
			b.WriteString(esc)
			continue
		}
		if r == '$' && l.peekRuneAt2() == '{' {
			if len(l.interps) >= maxInterpDepth {
				return l.errorAt(vm.ErrXSFMT)
			}
			l.advance()
			l.advance()
			l.interps = append(l.interps, interpState{delim: delim, triple: triple})
			text := b.String()
			return Token{Type: midType, Lexeme: text, StringValue: text, Line: line}
		}
		b.WriteRune(l.advance())
	}
}

// escape consumes and decodes one escape sequence (the leading backslash
// has already been consumed). Returns the decoded text, or a zero Token
// with Type != Error paired with an error Token on failure -- callers check
// err.Type == Error.
func (l *Lexer) escape() (string, Token) {
	r := l.advance()
	switch r {
	case 'a':
		return "\a", Token{}
	case 'b':
		return "\b", Token{}
	case 'e':
		return "\x1b", Token{}
	case 'f':
		return "\f", Token{}
	case 'n':
		return "\n", Token{}
	case 'r':
		return "\r", Token{}
	case 't':
		return "\t", Token{}
	case 'v':
		return "\v", Token{}
	case '\\':
		return "\\", Token{}
	case '"':
		return "\"", Token{}
	case '\'':
		return "'", Token{}
	case '`':
		return "`", Token{}
	case '$':
		return "$", Token{}
	case '0':
		return "\x00", Token{}
	case 'x':
		return l.hexEscape(2)
	case 'u':
		return l.hexEscape(4)
	case 'U':
		return l.hexEscape(8)
	case 0:
		return "", l.errorAt(vm.ErrXESC)
	default:
		if isDigit(r) {
			val := int(r - '0')
			for n := 0; n < 2 && isDigit(l.peekRune()); n++ {
				val = val*10 + int(l.advance()-'0')
			}
			if val > 255 {
				return "", l.errorAt(vm.ErrXESC)
			}
			return string(rune(val)), Token{}
		}
		return "", l.errorAt(vm.ErrXESC)
	}
}

func (l *Lexer) hexEscape(digits int) (string, Token) {
	var errCode vm.ErrCode
	if digits == 2 {
		errCode = vm.ErrXHESC
	} else {
		errCode = vm.ErrXUESC
	}
	val := 0
	for n := 0; n < digits; n++ {
		r := l.peekRune()
		var d int
		switch {
		case r >= '0' && r <= '9':
			d = int(r - '0')
		case r >= 'a' && r <= 'f':
			d = int(r-'a') + 10
		case r >= 'A' && r <= 'F':
			d = int(r-'A') + 10
		default:
			return "", l.errorAt(errCode)
		}
		l.advance()
		val = val*16 + d
	}
	if digits == 2 {
		return string(byte(val)), Token{}
	}
	return string(rune(val)), Token{}
}

