package client

import (
	"strconv"
	"strings"

	imapcore "github.com/driftmail/go-imapcore"
	"github.com/driftmail/go-imapcore/internal/wire"
	"github.com/driftmail/go-imapcore/utf7"
)

// MailboxStatus is the state of a mailbox accumulated from a SELECT or
// EXAMINE exchange.
type MailboxStatus struct {
	Name           string
	Flags          []string
	PermanentFlags []string
	Exists         uint32
	Recent         uint32
	UIDValidity    uint32
	UIDNext        uint32
	Unseen         uint32
	ReadOnly       bool
}

// FolderInfo describes one LIST entry.
type FolderInfo struct {
	Name      string
	Delimiter string
	Flags     []string
}

// selectCodes maps a response-code keyword of an untagged OK line to the
// field it fills.
var selectCodes = map[string]func(st *MailboxStatus, arg imapcore.Value){
	"UIDVALIDITY": func(st *MailboxStatus, arg imapcore.Value) {
		if n, ok := codeNumber(arg); ok {
			st.UIDValidity = n
		}
	},
	"UIDNEXT": func(st *MailboxStatus, arg imapcore.Value) {
		if n, ok := codeNumber(arg); ok {
			st.UIDNext = n
		}
	},
	"UNSEEN": func(st *MailboxStatus, arg imapcore.Value) {
		if n, ok := codeNumber(arg); ok {
			st.Unseen = n
		}
	},
	"PERMANENTFLAGS": func(st *MailboxStatus, arg imapcore.Value) {
		if l, ok := arg.(imapcore.List); ok {
			st.PermanentFlags = flagStrings(l)
		}
	},
}

// Select opens a mailbox read-write.
func (c *Conn) Select(name string) (*MailboxStatus, error) {
	return c.selectCmd("SELECT", name)
}

// Examine opens a mailbox read-only.
func (c *Conn) Examine(name string) (*MailboxStatus, error) {
	return c.selectCmd("EXAMINE", name)
}

func (c *Conn) selectCmd(verb, name string) (*MailboxStatus, error) {
	resp, err := c.roundTrip(verb, wire.Mailbox(name))
	if err != nil {
		return nil, err
	}
	st := &MailboxStatus{Name: name}
	for _, f := range resp.Untagged {
		applySelectFrame(st, f)
	}
	if verb == "EXAMINE" || strings.HasPrefix(resp.Code, "READ-ONLY") {
		st.ReadOnly = true
	}
	c.state = imapcore.StateSelected
	c.mailbox = name
	return st, nil
}

func applySelectFrame(st *MailboxStatus, f imapcore.List) {
	if len(f) < 3 {
		return
	}
	// number SP EXISTS / number SP RECENT
	if n, ok := imapcore.NumberOf(f[1]); ok {
		switch kw, _ := imapcore.TextOf(f[2]); strings.ToUpper(kw) {
		case "EXISTS":
			st.Exists = n
		case "RECENT":
			st.Recent = n
		}
		return
	}
	kw, _ := imapcore.TextOf(f[1])
	switch strings.ToUpper(kw) {
	case "FLAGS":
		if l, ok := f[2].(imapcore.List); ok {
			st.Flags = flagStrings(l)
		}
	case "OK":
		code, _ := imapcore.TextOf(f[2])
		if !strings.HasPrefix(code, "[") || len(f) < 4 {
			return
		}
		keyword := strings.ToUpper(strings.TrimSuffix(strings.TrimPrefix(code, "["), "]"))
		if handler, ok := selectCodes[keyword]; ok {
			handler(st, f[3])
		}
	}
}

func codeNumber(v imapcore.Value) (uint32, bool) {
	s, ok := imapcore.TextOf(v)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(s, "]"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func flagStrings(l imapcore.List) []string {
	flags := make([]string, 0, len(l))
	for _, v := range l {
		if s, ok := imapcore.TextOf(v); ok {
			flags = append(flags, s)
		}
	}
	return flags
}

// Status queries the given STATUS attributes (e.g. MESSAGES, UNSEEN,
// UIDNEXT). Keys in the result are lowercased.
func (c *Conn) Status(name string, attrs []string) (map[string]uint32, error) {
	fields := make([]wire.Field, 0, len(attrs))
	for _, a := range attrs {
		fields = append(fields, wire.Raw(strings.ToUpper(a)))
	}
	resp, err := c.roundTrip("STATUS", wire.Mailbox(name), fields)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint32)
	for _, f := range resp.Untagged {
		if len(f) < 4 || !isUntaggedType(f, "STATUS") {
			continue
		}
		pairs, ok := f[len(f)-1].(imapcore.List)
		if !ok {
			continue
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			key, ok := imapcore.TextOf(pairs[i])
			if !ok {
				continue
			}
			if n, ok := imapcore.NumberOf(pairs[i+1]); ok {
				out[strings.ToLower(key)] = n
			}
		}
	}
	return out, nil
}

// List lists folders matching pattern under ref. Names are decoded from
// modified UTF-7.
func (c *Conn) List(ref, pattern string) (map[string]FolderInfo, error) {
	resp, err := c.roundTrip("LIST", ref, pattern)
	if err != nil {
		return nil, err
	}
	out := make(map[string]FolderInfo)
	for _, f := range resp.Untagged {
		if len(f) < 5 || !isUntaggedType(f, "LIST") {
			continue
		}
		info := FolderInfo{}
		if l, ok := f[2].(imapcore.List); ok {
			info.Flags = flagStrings(l)
		}
		if s, ok := imapcore.TextOf(f[3]); ok && !strings.EqualFold(s, "NIL") {
			info.Delimiter = s
		}
		name, ok := imapcore.TextOf(f[4])
		if !ok {
			continue
		}
		if decoded, err := utf7.Decode(name); err == nil {
			name = decoded
		}
		info.Name = name
		out[name] = info
	}
	return out, nil
}

// Create makes a new folder.
func (c *Conn) Create(name string) error {
	_, err := c.roundTrip("CREATE", wire.Mailbox(name))
	return err
}

// Rename renames a folder.
func (c *Conn) Rename(from, to string) error {
	_, err := c.roundTrip("RENAME", wire.Mailbox(from), wire.Mailbox(to))
	return err
}

// Delete removes a folder.
func (c *Conn) Delete(name string) error {
	_, err := c.roundTrip("DELETE", wire.Mailbox(name))
	return err
}

// Subscribe adds a folder to the subscription list.
func (c *Conn) Subscribe(name string) error {
	_, err := c.roundTrip("SUBSCRIBE", wire.Mailbox(name))
	return err
}

// Unsubscribe removes a folder from the subscription list.
func (c *Conn) Unsubscribe(name string) error {
	_, err := c.roundTrip("UNSUBSCRIBE", wire.Mailbox(name))
	return err
}

// CloseMailbox closes the selected mailbox, expunging deleted messages.
func (c *Conn) CloseMailbox() error {
	if c.state != imapcore.StateSelected {
		return imapcore.ProtocolErrorf("no mailbox selected")
	}
	if _, err := c.roundTrip("CLOSE"); err != nil {
		return err
	}
	c.state = imapcore.StateAuthenticated
	c.mailbox = ""
	return nil
}

// Unselect closes the selected mailbox without expunging. Requires the
// UNSELECT extension.
func (c *Conn) Unselect() error {
	if c.state != imapcore.StateSelected {
		return imapcore.ProtocolErrorf("no mailbox selected")
	}
	if _, err := c.roundTrip("UNSELECT"); err != nil {
		return err
	}
	c.state = imapcore.StateAuthenticated
	c.mailbox = ""
	return nil
}

// isUntaggedType reports whether the untagged frame's type atom (second
// position, or third for numbered responses) matches typ.
func isUntaggedType(f imapcore.List, typ string) bool {
	if len(f) < 2 {
		return false
	}
	if s, ok := imapcore.TextOf(f[1]); ok && strings.EqualFold(s, typ) {
		return true
	}
	if len(f) >= 3 {
		if _, isNum := imapcore.NumberOf(f[1]); isNum {
			if s, ok := imapcore.TextOf(f[2]); ok && strings.EqualFold(s, typ) {
				return true
			}
		}
	}
	return false
}
