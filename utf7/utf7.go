// Package utf7 implements the modified UTF-7 encoding used for mailbox
// names, defined in RFC 3501 section 5.1.3.
package utf7

import (
	"encoding/base64"
	"errors"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

const (
	min = 0x20 // minimum self-representing value
	max = 0x7e // maximum self-representing value
)

// base64 with ',' in place of '/', unpadded
var b64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+,").WithPadding(base64.NoPadding)

var ErrInvalidUTF7 = errors.New("utf7: invalid modified UTF-7")

// Encoding is the modified UTF-7 encoding.
var Encoding encoding.Encoding = modUTF7{}

type modUTF7 struct{}

func (modUTF7) NewDecoder() *encoding.Decoder {
	return &encoding.Decoder{Transformer: &decoder{}}
}

func (modUTF7) NewEncoder() *encoding.Encoder {
	return &encoding.Encoder{Transformer: &encoder{}}
}

// Encode converts a UTF-8 mailbox name to its wire form.
func Encode(name string) (string, error) {
	return Encoding.NewEncoder().String(name)
}

// Decode converts a wire-form mailbox name to UTF-8.
func Decode(name string) (string, error) {
	return Encoding.NewDecoder().String(name)
}

type encoder struct{}

func (e *encoder) Reset() {}

func (e *encoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(src[nSrc:]) {
				err = transform.ErrShortSrc
				return
			}
			err = ErrInvalidUTF7
			return
		}

		if r >= min && r <= max {
			var out []byte
			if r == '&' {
				out = []byte("&-")
			} else {
				out = []byte{byte(r)}
			}
			if nDst+len(out) > len(dst) {
				err = transform.ErrShortDst
				return
			}
			nDst += copy(dst[nDst:], out)
			nSrc += size
			continue
		}

		// gather the whole run of non-representable runes so the base64
		// section is emitted in one piece
		var runes []rune
		consumed := 0
		for nSrc+consumed < len(src) {
			r, size := utf8.DecodeRune(src[nSrc+consumed:])
			if r == utf8.RuneError && size == 1 {
				if !atEOF && !utf8.FullRune(src[nSrc+consumed:]) {
					err = transform.ErrShortSrc
					return
				}
				err = ErrInvalidUTF7
				return
			}
			if r >= min && r <= max {
				break
			}
			runes = append(runes, r)
			consumed += size
		}
		if nSrc+consumed == len(src) && !atEOF {
			// the run may continue in the next chunk
			err = transform.ErrShortSrc
			return
		}

		u16 := utf16.Encode(runes)
		raw := make([]byte, len(u16)*2)
		for i, v := range u16 {
			raw[i*2] = byte(v >> 8)
			raw[i*2+1] = byte(v)
		}
		out := make([]byte, 0, 2+b64.EncodedLen(len(raw)))
		out = append(out, '&')
		out = append(out, b64.EncodeToString(raw)...)
		out = append(out, '-')

		if nDst+len(out) > len(dst) {
			err = transform.ErrShortDst
			return
		}
		nDst += copy(dst[nDst:], out)
		nSrc += consumed
	}
	return
}

type decoder struct{}

func (d *decoder) Reset() {}

func (d *decoder) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		ch := src[nSrc]
		if ch != '&' {
			if ch < min || ch > max {
				err = ErrInvalidUTF7
				return
			}
			if nDst+1 > len(dst) {
				err = transform.ErrShortDst
				return
			}
			dst[nDst] = ch
			nDst++
			nSrc++
			continue
		}

		end := nSrc + 1
		for end < len(src) && src[end] != '-' {
			end++
		}
		if end == len(src) {
			if !atEOF {
				err = transform.ErrShortSrc
				return
			}
			err = ErrInvalidUTF7
			return
		}

		var out []byte
		if end == nSrc+1 {
			out = []byte{'&'}
		} else {
			raw, decErr := b64.DecodeString(string(src[nSrc+1 : end]))
			if decErr != nil || len(raw)%2 != 0 {
				err = ErrInvalidUTF7
				return
			}
			u16 := make([]uint16, len(raw)/2)
			for i := range u16 {
				u16[i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
			}
			out = []byte(string(utf16.Decode(u16)))
		}
		if nDst+len(out) > len(dst) {
			err = transform.ErrShortDst
			return
		}
		nDst += copy(dst[nDst:], out)
		nSrc = end + 1
	}
	return
}
