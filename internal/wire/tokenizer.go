package wire

import (
	"strconv"

	imapcore "github.com/driftmail/go-imapcore"
)

// Tokenizer lexes a Source into IMAP tokens. It operates in line mode,
// switching to byte-counted mode only while consuming a {n} literal, and
// never blocks for bytes beyond what the current token requires.
type Tokenizer struct {
	src  Source
	line []byte
	pos  int
	have bool
}

// NewTokenizer creates a tokenizer reading from src.
func NewTokenizer(src Source) *Tokenizer {
	return &Tokenizer{src: src}
}

func (t *Tokenizer) fill() error {
	if t.have {
		return nil
	}
	line, err := t.src.ReadLine()
	if err != nil {
		return err
	}
	t.line = line
	t.pos = 0
	t.have = true
	return nil
}

func (t *Tokenizer) peek() (byte, bool) {
	if t.pos >= len(t.line) {
		return 0, false
	}
	return t.line[t.pos], true
}

// Next returns the next token. Literal payloads are consumed in full before
// Next returns; lexing then resumes on the following line.
func (t *Tokenizer) Next() (Token, error) {
	if err := t.fill(); err != nil {
		return Token{}, err
	}

	// SP separates tokens and is consumed silently
	for {
		ch, ok := t.peek()
		if !ok || ch != ' ' {
			break
		}
		t.pos++
	}

	ch, ok := t.peek()
	if !ok || ch == '\n' || ch == '\r' {
		// end of the physical line
		t.have = false
		return Token{Kind: TokenCRLF}, nil
	}

	switch ch {
	case '(':
		t.pos++
		return Token{Kind: TokenListOpen}, nil
	case ')':
		t.pos++
		return Token{Kind: TokenListClose}, nil
	case '"':
		return t.quoted()
	case '{':
		return t.literal()
	default:
		return t.atom()
	}
}

func (t *Tokenizer) atom() (Token, error) {
	start := t.pos
	for {
		ch, ok := t.peek()
		if !ok || !IsAtomChar(ch) {
			break
		}
		t.pos++
	}
	if t.pos == start {
		return Token{}, imapcore.BadResponseErrorf("invalid byte %q in atom", t.line[t.pos])
	}
	data := make([]byte, t.pos-start)
	copy(data, t.line[start:t.pos])
	return Token{Kind: TokenAtom, Data: data}, nil
}

func (t *Tokenizer) quoted() (Token, error) {
	t.pos++ // opening quote
	var data []byte
	for {
		ch, ok := t.peek()
		if !ok {
			return Token{}, imapcore.BadResponseErrorf("unterminated quoted string")
		}
		t.pos++
		switch ch {
		case '"':
			return Token{Kind: TokenQuoted, Data: data}, nil
		case '\r', '\n':
			return Token{}, imapcore.BadResponseErrorf("CR or LF inside quoted string")
		case '\\':
			esc, ok := t.peek()
			if !ok {
				return Token{}, imapcore.BadResponseErrorf("unterminated escape in quoted string")
			}
			t.pos++
			data = append(data, esc)
		default:
			data = append(data, ch)
		}
	}
}

func (t *Tokenizer) literal() (Token, error) {
	t.pos++ // opening brace
	start := t.pos
	for {
		ch, ok := t.peek()
		if !ok || ch < '0' || ch > '9' {
			break
		}
		t.pos++
	}
	if t.pos == start {
		return Token{}, imapcore.BadResponseErrorf("literal without a size")
	}
	size, err := strconv.Atoi(string(t.line[start:t.pos]))
	if err != nil {
		return Token{}, imapcore.BadResponseErrorf("bad literal size: %v", err)
	}
	ch, ok := t.peek()
	if !ok || ch != '}' {
		return Token{}, imapcore.BadResponseErrorf("literal size not closed by '}'")
	}
	t.pos++

	// the literal marker must end the physical line
	for {
		ch, ok := t.peek()
		if !ok || ch == '\r' || ch == '\n' {
			break
		}
		if ch != ' ' {
			return Token{}, imapcore.BadResponseErrorf("trailing bytes after literal marker")
		}
		t.pos++
	}
	t.have = false

	data, err := t.src.ReadExact(size)
	if err != nil {
		return Token{}, err
	}
	return Token{Kind: TokenLiteral, Data: data}, nil
}
