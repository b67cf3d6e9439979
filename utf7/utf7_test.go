package utf7_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftmail/go-imapcore/utf7"
)

var vectors = []struct {
	utf8 string
	wire string
}{
	{"INBOX", "INBOX"},
	{"Entwürfe", "Entw&APw-rfe"},
	{"Boîte", "Bo&AO4-te"},
	{"Tom & Jerry", "Tom &- Jerry"},
	{"日本語", "&ZeVnLIqe-"},
	{"mail/&", "mail/&-"},
	{"", ""},
}

func TestEncode(t *testing.T) {
	for _, v := range vectors {
		got, err := utf7.Encode(v.utf8)
		require.NoError(t, err, "encode %q", v.utf8)
		assert.Equal(t, v.wire, got, "encode %q", v.utf8)
	}
}

func TestDecode(t *testing.T) {
	for _, v := range vectors {
		got, err := utf7.Decode(v.wire)
		require.NoError(t, err, "decode %q", v.wire)
		assert.Equal(t, v.utf8, got, "decode %q", v.wire)
	}
}

func TestDecodeInvalid(t *testing.T) {
	for _, in := range []string{"&", "abc&", "&!!!-"} {
		_, err := utf7.Decode(in)
		assert.Error(t, err, "decode %q", in)
	}
}

func TestRoundTripSupplementary(t *testing.T) {
	// surrogate pairs survive the UTF-16 leg
	in := "mail-📬"
	enc, err := utf7.Encode(in)
	require.NoError(t, err)
	dec, err := utf7.Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, in, dec)
}
