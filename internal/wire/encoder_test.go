package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imapcore "github.com/driftmail/go-imapcore"
	"github.com/driftmail/go-imapcore/stream"
)

func TestCommandSimple(t *testing.T) {
	lines, err := Command("TAG1", "NOOP")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "TAG1 NOOP\r\n", string(lines[0].Data))
	assert.False(t, lines[0].WantContinuation)
}

func TestCommandQuotesStrings(t *testing.T) {
	lines, err := Command("TAG1", "LOGIN", "user@example.org", `pa"ss\word`)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "TAG1 LOGIN \"user@example.org\" \"pa\\\"ss\\\\word\"\r\n", string(lines[0].Data))
}

func TestCommandStripsCTL(t *testing.T) {
	lines, err := Command("TAG1", "LOGIN", "user", "pa\x01ss")
	require.NoError(t, err)
	assert.Equal(t, "TAG1 LOGIN \"user\" \"pass\"\r\n", string(lines[0].Data))
}

func TestCommandLiteralSplitsLines(t *testing.T) {
	lines, err := Command("TAG2", "APPEND", Mailbox("Sent"), Literal([]byte("a\r\nb")))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "TAG2 APPEND \"Sent\" {4}\r\n", string(lines[0].Data))
	assert.True(t, lines[0].WantContinuation)
	assert.Equal(t, "a\r\nb\r\n", string(lines[1].Data))
	assert.False(t, lines[1].WantContinuation)
}

func TestCommandStringWithCRLFBecomesLiteral(t *testing.T) {
	lines, err := Command("TAG1", "LOGIN", "user", "pass\r\nword")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "TAG1 LOGIN \"user\" {10}\r\n", string(lines[0].Data))
	assert.True(t, lines[0].WantContinuation)
	assert.Equal(t, "pass\r\nword\r\n", string(lines[1].Data))
}

func TestCommandList(t *testing.T) {
	lines, err := Command("TAG3", "STORE", imapcore.SeqSetNum(7), Raw("+FLAGS"), []Field{Raw(`\Seen`), Raw(`\Deleted`)})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "TAG3 STORE 7 +FLAGS (\\Seen \\Deleted)\r\n", string(lines[0].Data))
}

func TestCommandNestedList(t *testing.T) {
	lines, err := Command("TAG1", "X", []Field{Raw("A"), []Field{Raw("B"), Raw("C")}, Raw("D")})
	require.NoError(t, err)
	assert.Equal(t, "TAG1 X (A (B C) D)\r\n", string(lines[0].Data))
}

func TestCommandSeqSetForms(t *testing.T) {
	tests := []struct {
		name string
		set  imapcore.SeqSet
		want string
	}{
		{"single", imapcore.SeqSetNum(4), "4"},
		{"range", imapcore.SeqSetRange(2, 9), "2:9"},
		{"open", imapcore.SeqSetRange(1, imapcore.Star), "1:*"},
		{"list", imapcore.SeqSetNum(1, 5, 9), "1,5,9"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lines, err := Command("T", "FETCH", tc.set, Raw("UID"))
			require.NoError(t, err)
			assert.Equal(t, "T FETCH "+tc.want+" UID\r\n", string(lines[0].Data))
		})
	}
}

func TestCommandEmptySeqSet(t *testing.T) {
	_, err := Command("T", "FETCH", imapcore.SeqSet{}, Raw("UID"))
	assert.Error(t, err)
}

func TestCommandMailboxUTF7(t *testing.T) {
	lines, err := Command("T", "SELECT", Mailbox("Entwürfe"))
	require.NoError(t, err)
	assert.Equal(t, "T SELECT \"Entw&APw-rfe\"\r\n", string(lines[0].Data))
}

func TestCommandMailboxInbox(t *testing.T) {
	lines, err := Command("T", "SELECT", Mailbox("inbox"))
	require.NoError(t, err)
	assert.Equal(t, "T SELECT INBOX\r\n", string(lines[0].Data))
}

func TestCommandNIL(t *testing.T) {
	lines, err := Command("T", "ID", nil)
	require.NoError(t, err)
	assert.Equal(t, "T ID NIL\r\n", string(lines[0].Data))
}

// Round-trip properties: whatever the encoder emits, the parser reads back
// byte for byte.

func TestQuotedRoundTrip(t *testing.T) {
	inputs := []string{
		"Hello, world!",
		`back\slash and "quote"`,
		"päth/с-юникодом",
		"",
	}
	for _, in := range inputs {
		s := stream.NewFake()
		s.FeedLine(Quote(in))
		v, err := NewParser(s).Parse()
		require.NoError(t, err)
		assert.Equal(t, imapcore.String(in), v, "round trip of %q", in)
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte("plain"),
		[]byte("with\r\nnewlines\r\n"),
		{0, 1, 2, 0xff, '(', ')', '"', '{'},
		{},
	}
	for _, in := range inputs {
		lines, err := Command("T", "X", Literal(in))
		require.NoError(t, err)

		s := stream.NewFake()
		// replay what the client would put on the wire, minus tag and name
		s.Feed([]byte("{"))
		s.Feed(lines[0].Data[len("T X {"):])
		s.Feed(lines[1].Data)
		v, err := NewParser(s).Parse()
		require.NoError(t, err)
		assert.Equal(t, imapcore.String(in), v, "round trip of %q", in)
	}
}

func TestNestingRoundTrip(t *testing.T) {
	fields := []Field{Raw("A"), []Field{Raw("B"), []Field{Raw("C1"), Raw("C2")}}, Raw("D")}
	lines, err := Command("T", "X", fields...)
	require.NoError(t, err)

	s := stream.NewFake()
	s.Feed(lines[0].Data)
	v, err := NewParser(s).Parse()
	require.NoError(t, err)
	assert.Equal(t, imapcore.List{
		imapcore.Atom("T"), imapcore.Atom("X"),
		imapcore.List{
			imapcore.Atom("A"),
			imapcore.List{
				imapcore.Atom("B"),
				imapcore.List{imapcore.Atom("C1"), imapcore.Atom("C2")},
			},
			imapcore.Atom("D"),
		},
	}, v)
}
