package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imapcore "github.com/driftmail/go-imapcore"
)

func TestFakeStreamServesLinesInOrder(t *testing.T) {
	s := NewFake()
	s.FeedLine("* OK ready")
	s.FeedLine("TAG1 OK done")

	line, err := s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "* OK ready\r\n", string(line))

	line, err = s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "TAG1 OK done\r\n", string(line))
}

func TestFakeStreamReadExactAcrossFeeds(t *testing.T) {
	s := NewFake()
	s.Feed([]byte("Hel"))
	s.Feed([]byte("lo!"))

	b, err := s.ReadExact(6)
	require.NoError(t, err)
	assert.Equal(t, "Hello!", string(b))
}

func TestFakeStreamMixedLineAndRawReads(t *testing.T) {
	s := NewFake()
	s.FeedLine("{5}")
	s.Feed([]byte("Hello"))
	s.FeedLine("")

	line, err := s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "{5}\r\n", string(line))

	b, err := s.ReadExact(5)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(b))

	line, err = s.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "\r\n", string(line))
}

func TestFakeStreamDrainedReportsClosed(t *testing.T) {
	s := NewFake()
	_, err := s.ReadLine()
	var cerr *imapcore.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, imapcore.ConnClosed, cerr.Kind)
	assert.True(t, s.Meta().EOF)
}

func TestFakeStreamDrainedReportsTimeout(t *testing.T) {
	s := NewFake()
	s.TimeoutWhenEmpty = true
	_, err := s.ReadLine()
	var cerr *imapcore.ConnectionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, imapcore.ConnTimedOut, cerr.Kind)
	assert.True(t, s.Meta().TimedOut)
}

func TestFakeStreamLog(t *testing.T) {
	s := NewFake()
	require.NoError(t, s.Write([]byte("TAG1 STARTTLS\r\n")))
	require.NoError(t, s.StartTLS(nil))
	require.NoError(t, s.Write([]byte("TAG2 NOOP\r\n")))

	log := s.Log()
	require.Len(t, log, 3)
	assert.Equal(t, MarkStartTLS, string(log[1]))
	assert.Equal(t, 1, s.StartTLSCount())
}
