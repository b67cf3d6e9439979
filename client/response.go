package client

import (
	"strings"

	imapcore "github.com/driftmail/go-imapcore"
)

// Response is the outcome of one command: the tagged status plus every
// untagged frame observed while the command was in flight.
type Response struct {
	Tag     string
	Command string

	Status imapcore.StatusType
	// Code is the bracketed response code of the status line, without the
	// brackets, e.g. "READ-WRITE" or "UIDVALIDITY 3857529045".
	Code string
	Text string

	Untagged []imapcore.List
}

func (r *Response) serverError() error {
	return &imapcore.ServerError{Status: r.Status, Code: r.Code, Text: r.Text}
}

// frameHead returns the textual payload of the frame's leading value.
func frameHead(f imapcore.List) string {
	if len(f) == 0 {
		return ""
	}
	s, _ := imapcore.TextOf(f[0])
	return s
}

// classifyTagged fills the response from a tagged status frame:
// tag SP (OK|NO|BAD|BYE) [SP [code]] SP text.
func classifyTagged(f imapcore.List, resp *Response) error {
	if len(f) < 2 {
		return imapcore.BadResponseErrorf("short tagged response %v", f)
	}
	typ, ok := imapcore.TextOf(f[1])
	if !ok {
		return imapcore.BadResponseErrorf("tagged response without a status atom")
	}
	status := imapcore.StatusType(strings.ToUpper(typ))
	switch status {
	case imapcore.StatusOK, imapcore.StatusNo, imapcore.StatusBad, imapcore.StatusBye:
	default:
		return imapcore.BadResponseErrorf("unknown status condition %q", typ)
	}
	resp.Status = status
	resp.Code, resp.Text = splitCode(f[2:])
	return nil
}

// splitCode separates a leading bracketed response code from the
// human-readable text. The tokenizer keeps brackets inside atoms, so
// "[UIDVALIDITY 3857529045]" arrives as the atoms "[UIDVALIDITY" and
// "3857529045]".
func splitCode(rest imapcore.List) (code, text string) {
	i := 0
	if i < len(rest) {
		if s, ok := imapcore.TextOf(rest[i]); ok && strings.HasPrefix(s, "[") {
			var parts []string
			s = strings.TrimPrefix(s, "[")
			for {
				done := strings.HasSuffix(s, "]")
				parts = append(parts, strings.TrimSuffix(s, "]"))
				i++
				if done || i >= len(rest) {
					break
				}
				s, ok = imapcore.TextOf(rest[i])
				if !ok {
					break
				}
			}
			code = strings.Join(parts, " ")
		}
	}
	var words []string
	for ; i < len(rest); i++ {
		words = append(words, rest[i].String())
	}
	return code, strings.Join(words, " ")
}
