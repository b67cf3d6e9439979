package client

import (
	"sort"
	"strconv"
	"strings"

	imapcore "github.com/driftmail/go-imapcore"
	"github.com/driftmail/go-imapcore/internal/wire"
)

// Capability queries the server's capabilities. The result is cached for
// Has.
func (c *Conn) Capability() ([]string, error) {
	resp, err := c.roundTrip("CAPABILITY")
	if err != nil {
		return nil, err
	}
	var caps []string
	for _, f := range resp.Untagged {
		if len(f) < 2 || !isUntaggedType(f, "CAPABILITY") {
			continue
		}
		for _, v := range f[2:] {
			if s, ok := imapcore.TextOf(v); ok {
				caps = append(caps, s)
			}
		}
	}
	c.caps = make(map[string]bool, len(caps))
	for _, name := range caps {
		c.caps[strings.ToUpper(name)] = true
	}
	return caps, nil
}

// Has reports whether a previously fetched capability list contains name.
// It never performs I/O; call Capability first.
func (c *Conn) Has(name string) bool {
	return c.caps[strings.ToUpper(name)]
}

// Noop sends NOOP and returns any untagged data the server chose to
// deliver, typically mailbox size changes.
func (c *Conn) Noop() ([]imapcore.List, error) {
	resp, err := c.roundTrip("NOOP")
	if err != nil {
		return nil, err
	}
	return resp.Untagged, nil
}

// ID exchanges implementation identifiers with the server (RFC 2971). A nil
// map sends NIL. The server's identifiers come back as a map.
func (c *Conn) ID(ids map[string]string) (map[string]string, error) {
	var field wire.Field
	if ids == nil {
		field = nil
	} else {
		keys := make([]string, 0, len(ids))
		for k := range ids {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var pairs []wire.Field
		for _, k := range keys {
			pairs = append(pairs, k, ids[k])
		}
		field = pairs
	}
	resp, err := c.roundTrip("ID", field)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, f := range resp.Untagged {
		if len(f) < 3 || !isUntaggedType(f, "ID") {
			continue
		}
		pairs, ok := f[2].(imapcore.List)
		if !ok {
			continue
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			k, kok := imapcore.TextOf(pairs[i])
			v, vok := imapcore.TextOf(pairs[i+1])
			if kok && vok {
				out[k] = v
			}
		}
	}
	return out, nil
}

// QuotaResource is the usage and limit of one quota resource.
type QuotaResource struct {
	Usage int64
	Limit int64
}

// QuotaData is one QUOTA response entry.
type QuotaData struct {
	Root      string
	Resources map[string]QuotaResource
}

// GetQuota queries the quota of a quota root (RFC 2087).
func (c *Conn) GetQuota(root string) (*QuotaData, error) {
	resp, err := c.roundTrip("GETQUOTA", root)
	if err != nil {
		return nil, err
	}
	quotas := quotaFrames(resp.Untagged)
	for i := range quotas {
		if quotas[i].Root == root {
			return &quotas[i], nil
		}
	}
	if len(quotas) > 0 {
		return &quotas[0], nil
	}
	return nil, imapcore.BadResponseErrorf("GETQUOTA without a QUOTA response")
}

// GetQuotaRoot queries the quota roots of a folder and their quotas.
func (c *Conn) GetQuotaRoot(folder string) ([]string, []QuotaData, error) {
	resp, err := c.roundTrip("GETQUOTAROOT", wire.Mailbox(folder))
	if err != nil {
		return nil, nil, err
	}
	var roots []string
	for _, f := range resp.Untagged {
		if len(f) < 3 || !isUntaggedType(f, "QUOTAROOT") {
			continue
		}
		for _, v := range f[3:] {
			if s, ok := imapcore.TextOf(v); ok {
				roots = append(roots, s)
			}
		}
	}
	return roots, quotaFrames(resp.Untagged), nil
}

func quotaFrames(untagged []imapcore.List) []QuotaData {
	var out []QuotaData
	for _, f := range untagged {
		if len(f) < 4 || !isUntaggedType(f, "QUOTA") {
			continue
		}
		root, _ := imapcore.TextOf(f[2])
		data := QuotaData{Root: root, Resources: make(map[string]QuotaResource)}
		triples, ok := f[3].(imapcore.List)
		if !ok {
			continue
		}
		for i := 0; i+2 < len(triples); i += 3 {
			name, ok := imapcore.TextOf(triples[i])
			if !ok {
				continue
			}
			usage, uok := int64Of(triples[i+1])
			limit, lok := int64Of(triples[i+2])
			if uok && lok {
				data.Resources[strings.ToUpper(name)] = QuotaResource{Usage: usage, Limit: limit}
			}
		}
		out = append(out, data)
	}
	return out
}

func int64Of(v imapcore.Value) (int64, bool) {
	s, ok := imapcore.TextOf(v)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
