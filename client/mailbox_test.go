package client_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imapcore "github.com/driftmail/go-imapcore"
	"github.com/driftmail/go-imapcore/stream"
)

func TestSelect(t *testing.T) {
	c, _ := newTestConn(t, func(s *stream.FakeStream) {
		s.FeedLine(`* FLAGS (\Answered \Flagged \Deleted \Seen \Draft)`)
		s.FeedLine(`* OK [PERMANENTFLAGS (\Deleted \Seen \*)] Limited`)
		s.FeedLine("* 172 EXISTS")
		s.FeedLine("* 1 RECENT")
		s.FeedLine("* OK [UNSEEN 12] Message 12 is first unseen")
		s.FeedLine("* OK [UIDVALIDITY 3857529045] UIDs valid")
		s.FeedLine("* OK [UIDNEXT 4392] Predicted next UID")
		s.FeedLine("TAG1 OK [READ-WRITE] SELECT completed")
	})
	st, err := c.Select("INBOX")
	require.NoError(t, err)

	assert.Equal(t, uint32(172), st.Exists)
	assert.Equal(t, uint32(1), st.Recent)
	assert.Equal(t, uint32(12), st.Unseen)
	assert.Equal(t, uint32(3857529045), st.UIDValidity)
	assert.Equal(t, uint32(4392), st.UIDNext)
	assert.Equal(t, []string{`\Answered`, `\Flagged`, `\Deleted`, `\Seen`, `\Draft`}, st.Flags)
	assert.Equal(t, []string{`\Deleted`, `\Seen`, `\*`}, st.PermanentFlags)
	assert.False(t, st.ReadOnly)

	assert.Equal(t, imapcore.StateSelected, c.State())
	assert.Equal(t, "INBOX", c.Mailbox())
}

func TestExamineIsReadOnly(t *testing.T) {
	c, _ := newTestConn(t, func(s *stream.FakeStream) {
		s.FeedLine("* 3 EXISTS")
		s.FeedLine("TAG1 OK [READ-ONLY] EXAMINE completed")
	})
	st, err := c.Examine("INBOX")
	require.NoError(t, err)
	assert.True(t, st.ReadOnly)
	assert.Equal(t, uint32(3), st.Exists)
}

func TestSelectNonexistent(t *testing.T) {
	c, _ := newTestConn(t, func(s *stream.FakeStream) {
		s.FeedLine("TAG1 NO [NONEXISTENT] Unknown mailbox")
	})
	_, err := c.Select("NoSuch")
	var serr *imapcore.ServerError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "NONEXISTENT", serr.Code)
	assert.NotEqual(t, imapcore.StateSelected, c.State())
}

func TestStatus(t *testing.T) {
	c, s := newTestConn(t, func(s *stream.FakeStream) {
		s.FeedLine(`* STATUS "INBOX" (MESSAGES 231 UIDNEXT 44292 UNSEEN 3)`)
		s.FeedLine("TAG1 OK STATUS completed")
	})
	got, err := c.Status("INBOX", []string{"messages", "uidnext", "unseen"})
	require.NoError(t, err)
	assert.Equal(t, map[string]uint32{"messages": 231, "uidnext": 44292, "unseen": 3}, got)
	assert.Contains(t, s.Written(), "TAG1 STATUS INBOX (MESSAGES UIDNEXT UNSEEN)\r\n")
}

func TestList(t *testing.T) {
	c, _ := newTestConn(t, func(s *stream.FakeStream) {
		s.FeedLine(`* LIST (\HasNoChildren) "/" "INBOX"`)
		s.FeedLine(`* LIST (\HasChildren \Noselect) "/" "Archive"`)
		s.FeedLine(`* LIST () "/" "Entw&APw-rfe"`)
		s.FeedLine("TAG1 OK LIST completed")
	})
	folders, err := c.List("", "*")
	require.NoError(t, err)
	require.Len(t, folders, 3)

	assert.Equal(t, []string{`\HasNoChildren`}, folders["INBOX"].Flags)
	assert.Equal(t, "/", folders["INBOX"].Delimiter)

	archive := folders["Archive"]
	assert.Contains(t, archive.Flags, `\Noselect`)

	// mailbox names are decoded from modified UTF-7
	assert.Contains(t, folders, "Entwürfe")
}

func TestListEscapedName(t *testing.T) {
	c, _ := newTestConn(t, func(s *stream.FakeStream) {
		s.FeedLine(`* LIST () "/" "My \"special\" folder"`)
		s.FeedLine("TAG1 OK LIST completed")
	})
	folders, err := c.List("", "*")
	require.NoError(t, err)
	assert.Contains(t, folders, `My "special" folder`)
}

func TestCreateRenameDelete(t *testing.T) {
	c, s := newTestConn(t, func(s *stream.FakeStream) {
		s.FeedLine("TAG1 OK CREATE completed")
		s.FeedLine("TAG2 OK RENAME completed")
		s.FeedLine("TAG3 OK DELETE completed")
	})
	require.NoError(t, c.Create("Drafts"))
	require.NoError(t, c.Rename("Drafts", "Sketches"))
	require.NoError(t, c.Delete("Sketches"))

	written := s.Written()
	assert.Contains(t, written, "TAG1 CREATE \"Drafts\"\r\n")
	assert.Contains(t, written, "TAG2 RENAME \"Drafts\" \"Sketches\"\r\n")
	assert.Contains(t, written, "TAG3 DELETE \"Sketches\"\r\n")
}

func TestCloseMailbox(t *testing.T) {
	c, _ := newTestConn(t, func(s *stream.FakeStream) {
		s.FeedLine("* 3 EXISTS")
		s.FeedLine("TAG1 OK SELECT completed")
		s.FeedLine("TAG2 OK CLOSE completed")
	})
	_, err := c.Select("INBOX")
	require.NoError(t, err)
	require.NoError(t, c.CloseMailbox())
	assert.Equal(t, imapcore.StateAuthenticated, c.State())
	assert.Equal(t, "", c.Mailbox())
}
