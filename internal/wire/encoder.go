package wire

import (
	"fmt"
	"strconv"
	"strings"

	imapcore "github.com/driftmail/go-imapcore"
	"github.com/driftmail/go-imapcore/utf7"
)

// maxQuoted is the longest payload emitted as a quoted string; anything
// larger goes out as a synchronizing literal.
const maxQuoted = 4096

// Field is a command argument. Supported dynamic types:
//
//   - string: quoted, or promoted to a literal when it contains CR/LF or
//     exceeds maxQuoted
//   - Raw: written verbatim (command keywords, flags, search criteria)
//   - Num: an unsigned decimal number
//   - Literal: always sent as a synchronizing literal
//   - Mailbox: modified UTF-7 encoded name, INBOX special-cased
//   - []Field: a parenthesized list, rules applied recursively
//   - imapcore.SeqSet: sequence-set syntax
//   - nil: NIL
type Field = interface{}

// Raw is an atom written without quoting.
type Raw string

// Num is a decimal number field.
type Num uint32

// Literal is a payload always sent as a synchronizing literal.
type Literal []byte

// Mailbox is a mailbox name, encoded with modified UTF-7 on the wire.
type Mailbox string

// Line is one wire line of an encoded command, including its CRLF. When
// WantContinuation is set the line ends in a literal marker and the sender
// must await a "+" continuation before writing the next line.
type Line struct {
	Data             []byte
	WantContinuation bool
}

type encoder struct {
	lines []Line
	cur   []byte
}

// Command serializes a tagged command into wire lines.
func Command(tag, name string, fields ...Field) ([]Line, error) {
	e := &encoder{}
	e.raw(tag)
	e.raw(" ")
	e.raw(name)
	for _, f := range fields {
		e.raw(" ")
		if err := e.field(f); err != nil {
			return nil, err
		}
	}
	e.endLine(false)
	return e.lines, nil
}

func (e *encoder) raw(s string) {
	e.cur = append(e.cur, s...)
}

func (e *encoder) endLine(wantCont bool) {
	e.cur = append(e.cur, '\r', '\n')
	e.lines = append(e.lines, Line{Data: e.cur, WantContinuation: wantCont})
	e.cur = nil
}

func (e *encoder) field(f Field) error {
	switch f := f.(type) {
	case nil:
		e.raw("NIL")
	case string:
		e.str(f)
	case Raw:
		e.raw(string(f))
	case Num:
		e.raw(strconv.FormatUint(uint64(f), 10))
	case uint32:
		e.raw(strconv.FormatUint(uint64(f), 10))
	case int:
		e.raw(strconv.Itoa(f))
	case Literal:
		e.literal([]byte(f))
	case Mailbox:
		e.mailbox(string(f))
	case []Field:
		e.raw("(")
		for i, el := range f {
			if i > 0 {
				e.raw(" ")
			}
			if err := e.field(el); err != nil {
				return err
			}
		}
		e.raw(")")
	case imapcore.SeqSet:
		s := f.String()
		if s == "" {
			return fmt.Errorf("wire: cannot encode empty sequence set")
		}
		e.raw(s)
	default:
		return fmt.Errorf("wire: cannot encode field of type %T", f)
	}
	return nil
}

func (e *encoder) str(s string) {
	if !validQuoted(s) {
		e.literal([]byte(s))
		return
	}
	e.raw(Quote(s))
}

func (e *encoder) literal(b []byte) {
	e.raw("{")
	e.raw(strconv.Itoa(len(b)))
	e.raw("}")
	e.endLine(true)
	e.cur = append(e.cur, b...)
}

func (e *encoder) mailbox(name string) {
	if strings.EqualFold(name, "INBOX") {
		e.raw("INBOX")
		return
	}
	enc, err := utf7.Encode(name)
	if err != nil {
		// unencodable runes fall through as-is; the string rules still
		// guarantee a valid wire form
		enc = name
	}
	e.str(enc)
}

// validQuoted reports whether s may be emitted as a quoted string. CR, LF
// and oversized payloads force a literal.
func validQuoted(s string) bool {
	if len(s) > maxQuoted {
		return false
	}
	return !strings.ContainsAny(s, "\r\n")
}

// Quote wraps s in double quotes, escaping backslashes and quotes and
// stripping CTL bytes.
func Quote(s string) string {
	var sb strings.Builder
	sb.Grow(2 + len(s))
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < 0x20 || ch == 0x7f {
			continue
		}
		if ch == '"' || ch == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(ch)
	}
	sb.WriteByte('"')
	return sb.String()
}
