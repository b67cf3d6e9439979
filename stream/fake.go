package stream

import (
	"bytes"
	"crypto/tls"
	"io"
	"time"

	imapcore "github.com/driftmail/go-imapcore"
)

// FakeStream is a scripted Stream for tests. Feed it server bytes up front;
// readers consume them in order, either line by line or byte-counted.
//
// Everything written to the stream is appended to the Log: writes as raw
// bytes, TLS upgrades as the MarkStartTLS entry. The log order is what tests
// assert on when command/upgrade sequencing matters.
type FakeStream struct {
	script bytes.Buffer
	log    [][]byte

	// TimeoutWhenEmpty makes reads past the end of the script report a
	// timeout instead of a closed connection. Poll tests rely on it.
	TimeoutWhenEmpty bool

	timeout time.Duration
	meta    Meta
	closed  bool
}

// MarkStartTLS is the log entry recorded when StartTLS is called.
const MarkStartTLS = "<starttls>"

// NewFake creates an empty fake stream.
func NewFake() *FakeStream {
	return &FakeStream{}
}

// Feed appends raw bytes to the script.
func (s *FakeStream) Feed(p []byte) { s.script.Write(p) }

// FeedLine appends a line to the script, adding the CRLF.
func (s *FakeStream) FeedLine(line string) {
	s.script.WriteString(line)
	s.script.WriteString("\r\n")
}

func (s *FakeStream) drained() error {
	if s.TimeoutWhenEmpty {
		s.meta = Meta{TimedOut: true}
		return &imapcore.ConnectionError{Kind: imapcore.ConnTimedOut, Err: io.EOF}
	}
	s.meta = Meta{EOF: true}
	return &imapcore.ConnectionError{Kind: imapcore.ConnClosed, Err: io.EOF}
}

func (s *FakeStream) ReadLine() ([]byte, error) {
	if s.script.Len() == 0 {
		return nil, s.drained()
	}
	line, err := s.script.ReadBytes('\n')
	if err != nil {
		// partial line at end of script
		return nil, s.drained()
	}
	return line, nil
}

func (s *FakeStream) ReadExact(n int) ([]byte, error) {
	if s.script.Len() < n {
		return nil, s.drained()
	}
	buf := make([]byte, n)
	io.ReadFull(&s.script, buf)
	return buf, nil
}

func (s *FakeStream) Write(p []byte) error {
	if s.closed {
		s.meta = Meta{EOF: true}
		return &imapcore.ConnectionError{Kind: imapcore.ConnClosed, Err: io.ErrClosedPipe}
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	s.log = append(s.log, cp)
	return nil
}

func (s *FakeStream) SetTimeout(d time.Duration) { s.timeout = d }

func (s *FakeStream) StartTLS(cfg *tls.Config) error {
	s.log = append(s.log, []byte(MarkStartTLS))
	return nil
}

func (s *FakeStream) Close() error {
	s.closed = true
	return nil
}

func (s *FakeStream) IsOpen() bool { return !s.closed }

func (s *FakeStream) Meta() Meta { return s.meta }

// Log returns everything written so far, in order.
func (s *FakeStream) Log() [][]byte { return s.log }

// Written returns the raw writes joined together, with StartTLS markers
// included, for coarse assertions.
func (s *FakeStream) Written() string {
	var sb bytes.Buffer
	for _, entry := range s.log {
		sb.Write(entry)
	}
	return sb.String()
}

// StartTLSCount returns how many times StartTLS was invoked.
func (s *FakeStream) StartTLSCount() int {
	n := 0
	for _, entry := range s.log {
		if string(entry) == MarkStartTLS {
			n++
		}
	}
	return n
}
