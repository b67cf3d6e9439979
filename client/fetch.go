package client

import (
	"strings"
	"time"

	imapcore "github.com/driftmail/go-imapcore"
	"github.com/driftmail/go-imapcore/internal/wire"
)

// internalDateLayout is the INTERNALDATE form of RFC 3501.
const internalDateLayout = "02-Jan-2006 15:04:05 -0700"

// FetchResult holds one message's fetched items, keyed by upper-cased item
// name. Values are raw response values: opaque strings for header/body
// payloads, lists for FLAGS, atoms for numbers.
type FetchResult map[string]imapcore.Value

// Text returns the item's payload as a string.
func (r FetchResult) Text(item string) (string, bool) {
	v, ok := r[strings.ToUpper(item)]
	if !ok {
		return "", false
	}
	return imapcore.TextOf(v)
}

// Number returns the item's payload as a number.
func (r FetchResult) Number(item string) (uint32, bool) {
	v, ok := r[strings.ToUpper(item)]
	if !ok {
		return 0, false
	}
	return imapcore.NumberOf(v)
}

func (c *Conn) uidPrefix(name string, mode imapcore.SeqMode) string {
	if mode == imapcore.ModeUID {
		return "UID " + name
	}
	return name
}

// Fetch requests the given items for the messages in set and reassembles
// the untagged FETCH responses into a map keyed by UID (ModeUID) or by
// sequence number (ModeMsgn).
//
// Servers place the UID pair anywhere in the response; it is located by key
// name, never by position. When set addresses a single id, entries for
// other ids are skipped.
func (c *Conn) Fetch(set imapcore.SeqSet, items []string, mode imapcore.SeqMode) (map[uint32]FetchResult, error) {
	itemFields := make([]wire.Field, 0, len(items))
	for _, it := range items {
		itemFields = append(itemFields, wire.Raw(strings.ToUpper(it)))
	}
	var itemArg wire.Field = itemFields
	if len(itemFields) == 1 {
		itemArg = itemFields[0]
	}
	resp, err := c.roundTrip(c.uidPrefix("FETCH", mode), set, itemArg)
	if err != nil {
		return nil, err
	}
	return reassembleFetch(resp.Untagged, set, mode), nil
}

func reassembleFetch(untagged []imapcore.List, set imapcore.SeqSet, mode imapcore.SeqMode) map[uint32]FetchResult {
	single, haveSingle := set.Single()
	out := make(map[uint32]FetchResult)
	for _, f := range untagged {
		if len(f) < 4 || !isUntaggedType(f, "FETCH") {
			continue
		}
		msgn, ok := imapcore.NumberOf(f[1])
		if !ok {
			continue
		}
		pairs, ok := f[len(f)-1].(imapcore.List)
		if !ok {
			continue
		}
		items := pairMap(pairs)

		var uid uint32
		if v, ok := items["UID"]; ok {
			uid, _ = imapcore.NumberOf(v)
		}

		key := msgn
		if mode == imapcore.ModeUID {
			if uid == 0 {
				continue
			}
			key = uid
		}
		if haveSingle && key != single {
			continue
		}
		out[key] = items
	}
	return out
}

// pairMap folds a FETCH key/value list into a map. Keys of the BODY[...]
// family may lex into several tokens when the section contains a
// parenthesized field list; those are stitched back together.
func pairMap(pairs imapcore.List) FetchResult {
	items := make(FetchResult)
	i := 0
	for i < len(pairs) {
		key, ok := imapcore.TextOf(pairs[i])
		if !ok {
			i++
			continue
		}
		i++
		if strings.HasPrefix(strings.ToUpper(key), "BODY[") && !strings.Contains(key, "]") {
			for i < len(pairs) {
				part := pairs[i].String()
				key += " " + part
				i++
				if strings.Contains(part, "]") {
					break
				}
			}
		}
		if i >= len(pairs) {
			break
		}
		items[strings.ToUpper(key)] = pairs[i]
		i++
	}
	return items
}

// Content fetches the full raw message bodies (BODY[]).
func (c *Conn) Content(set imapcore.SeqSet, mode imapcore.SeqMode) (map[uint32]string, error) {
	return c.fetchText(set, "BODY[]", mode)
}

// Headers fetches the raw message headers (RFC822.HEADER).
func (c *Conn) Headers(set imapcore.SeqSet, mode imapcore.SeqMode) (map[uint32]string, error) {
	return c.fetchText(set, "RFC822.HEADER", mode)
}

func (c *Conn) fetchText(set imapcore.SeqSet, item string, mode imapcore.SeqMode) (map[uint32]string, error) {
	res, err := c.Fetch(set, []string{item}, mode)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]string, len(res))
	for id, items := range res {
		if s, ok := items.Text(item); ok {
			out[id] = s
		}
	}
	return out, nil
}

// Flags fetches the flag lists.
func (c *Conn) Flags(set imapcore.SeqSet, mode imapcore.SeqMode) (map[uint32][]string, error) {
	res, err := c.Fetch(set, []string{"FLAGS"}, mode)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32][]string, len(res))
	for id, items := range res {
		if l, ok := items["FLAGS"].(imapcore.List); ok {
			out[id] = flagStrings(l)
		}
	}
	return out, nil
}

// Sizes fetches the message sizes (RFC822.SIZE).
func (c *Conn) Sizes(set imapcore.SeqSet, mode imapcore.SeqMode) (map[uint32]uint32, error) {
	res, err := c.Fetch(set, []string{"RFC822.SIZE"}, mode)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]uint32, len(res))
	for id, items := range res {
		if n, ok := items.Number("RFC822.SIZE"); ok {
			out[id] = n
		}
	}
	return out, nil
}

// UIDs resolves sequence numbers to UIDs.
func (c *Conn) UIDs(msgns imapcore.SeqSet) (map[uint32]uint32, error) {
	res, err := c.Fetch(msgns, []string{"UID"}, imapcore.ModeMsgn)
	if err != nil {
		return nil, err
	}
	out := make(map[uint32]uint32, len(res))
	for msgn, items := range res {
		if uid, ok := items.Number("UID"); ok {
			out[msgn] = uid
		}
	}
	return out, nil
}

// StoreAction selects how a STORE changes the flag set.
type StoreAction int

const (
	StoreSet StoreAction = iota
	StoreAdd
	StoreRemove
)

func (a StoreAction) item(silent bool) string {
	var item string
	switch a {
	case StoreAdd:
		item = "+FLAGS"
	case StoreRemove:
		item = "-FLAGS"
	default:
		item = "FLAGS"
	}
	if silent {
		item += ".SILENT"
	}
	return item
}

// Store changes message flags. Unless silent, the server echoes the new
// flag state, returned in FETCH reassembly form.
func (c *Conn) Store(set imapcore.SeqSet, action StoreAction, flags []string, silent bool, mode imapcore.SeqMode) (map[uint32]FetchResult, error) {
	flagFields := make([]wire.Field, 0, len(flags))
	for _, fl := range flags {
		flagFields = append(flagFields, wire.Raw(fl))
	}
	resp, err := c.roundTrip(c.uidPrefix("STORE", mode), set, wire.Raw(action.item(silent)), flagFields)
	if err != nil {
		return nil, err
	}
	if silent {
		return nil, nil
	}
	return reassembleFetch(resp.Untagged, nil, mode), nil
}

// Append uploads a message to a folder. flags may be nil; a zero date omits
// INTERNALDATE. The message goes out as a synchronizing literal.
func (c *Conn) Append(folder string, msg []byte, flags []string, date time.Time) error {
	fields := []wire.Field{wire.Mailbox(folder)}
	if len(flags) > 0 {
		flagFields := make([]wire.Field, 0, len(flags))
		for _, fl := range flags {
			flagFields = append(flagFields, wire.Raw(fl))
		}
		fields = append(fields, flagFields)
	}
	if !date.IsZero() {
		fields = append(fields, date.Format(internalDateLayout))
	}
	fields = append(fields, wire.Literal(msg))
	_, err := c.roundTrip("APPEND", fields...)
	return err
}

// Copy copies messages into another folder.
func (c *Conn) Copy(folder string, set imapcore.SeqSet, mode imapcore.SeqMode) error {
	_, err := c.roundTrip(c.uidPrefix("COPY", mode), set, wire.Mailbox(folder))
	return err
}

// Move moves messages into another folder. Requires the MOVE extension.
func (c *Conn) Move(folder string, set imapcore.SeqSet, mode imapcore.SeqMode) error {
	_, err := c.roundTrip(c.uidPrefix("MOVE", mode), set, wire.Mailbox(folder))
	return err
}

// Search runs a SEARCH with raw criteria tokens (e.g. "UNSEEN", or
// "SINCE", "1-Feb-1994"). No criteria searches ALL. An empty id list is a
// valid, successful result.
func (c *Conn) Search(criteria []string, mode imapcore.SeqMode) ([]uint32, error) {
	fields := make([]wire.Field, 0, len(criteria))
	for _, cr := range criteria {
		fields = append(fields, wire.Raw(cr))
	}
	if len(fields) == 0 {
		fields = append(fields, wire.Raw("ALL"))
	}
	resp, err := c.roundTrip(c.uidPrefix("SEARCH", mode), fields...)
	if err != nil {
		return nil, err
	}
	var ids []uint32
	for _, f := range resp.Untagged {
		if len(f) < 2 || !isUntaggedType(f, "SEARCH") {
			continue
		}
		for _, v := range f[2:] {
			if n, ok := imapcore.NumberOf(v); ok {
				ids = append(ids, n)
			}
		}
	}
	return ids, nil
}

// Expunge permanently removes deleted messages and returns the expunged
// sequence numbers.
func (c *Conn) Expunge() ([]uint32, error) {
	resp, err := c.roundTrip("EXPUNGE")
	if err != nil {
		return nil, err
	}
	var msgns []uint32
	for _, f := range resp.Untagged {
		if len(f) < 3 || !isUntaggedType(f, "EXPUNGE") {
			continue
		}
		if n, ok := imapcore.NumberOf(f[1]); ok {
			msgns = append(msgns, n)
		}
	}
	return msgns, nil
}
