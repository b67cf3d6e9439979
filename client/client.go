// Package client implements the IMAP4rev1 connection engine: command
// tagging, the literal continuation handshake, tagged/untagged response
// demultiplexing, authentication dialogues and IDLE.
//
// A Conn is synchronous and single-threaded: at most one command is in
// flight, and the connection is not safe for concurrent use. Callers
// serialize access externally or use one connection per task.
package client

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	imapcore "github.com/driftmail/go-imapcore"
	"github.com/driftmail/go-imapcore/internal/wire"
	"github.com/driftmail/go-imapcore/stream"
)

// Options configures a connection.
type Options struct {
	// Transport selects tcp, tls/ssl or starttls. Empty means tcp.
	Transport stream.Transport
	// Timeout applies to every read and write on the stream. Zero disables
	// deadlines.
	Timeout time.Duration
	// TLSConfig is used for implicit TLS and STARTTLS upgrades.
	TLSConfig *tls.Config
	// Debug receives raw ingress and egress bytes, if set.
	Debug io.Writer
}

// Conn is a connection to an IMAP server.
type Conn struct {
	s    stream.Stream
	p    *wire.Parser
	opts Options

	state   imapcore.ConnState
	tagN    uint64
	mailbox string
	caps    map[string]bool

	// untagged frames that arrived before the IDLE continuation, handed out
	// by Poll, NextNotification and Done
	queue []imapcore.List

	idleTag string
}

// debugSource tees everything the parser reads to the debug writer.
type debugSource struct {
	src wire.Source
	w   io.Writer
}

func (d debugSource) ReadLine() ([]byte, error) {
	line, err := d.src.ReadLine()
	if err == nil {
		d.w.Write(line)
	}
	return line, err
}

func (d debugSource) ReadExact(n int) ([]byte, error) {
	b, err := d.src.ReadExact(n)
	if err == nil {
		d.w.Write(b)
	}
	return b, err
}

// New creates a connection over an established stream. No I/O is performed;
// the caller reads the server greeting with Greeting, or uses Connect which
// does both.
func New(s stream.Stream, opts *Options) *Conn {
	if opts == nil {
		opts = &Options{}
	}
	var src wire.Source = s
	if opts.Debug != nil {
		src = debugSource{src: s, w: opts.Debug}
	}
	return &Conn{
		s:     s,
		p:     wire.NewParser(src),
		opts:  *opts,
		state: imapcore.StateGreeting,
	}
}

// Connect dials host:port, reads the greeting and, for the starttls
// transport, upgrades the connection. Port 0 picks the default for the
// transport (993 for tls, 143 otherwise).
func Connect(host string, port int, opts *Options) (*Conn, error) {
	if opts == nil {
		opts = &Options{}
	}
	if port == 0 {
		if opts.Transport == stream.TransportTLS || opts.Transport == stream.TransportSSL {
			port = 993
		} else {
			port = 143
		}
	}
	s, err := stream.Dial(opts.Transport, host, port, opts.Timeout, opts.TLSConfig)
	if err != nil {
		return nil, err
	}
	c := New(s, opts)
	if err := c.Greeting(); err != nil {
		s.Close()
		return nil, err
	}
	if opts.Transport == stream.TransportStartTLS {
		if err := c.StartTLS(opts.TLSConfig); err != nil {
			s.Close()
			return nil, err
		}
	}
	return c, nil
}

// Greeting reads the server greeting. "* OK" leaves the connection in the
// not-authenticated state; "* PREAUTH" skips straight to authenticated.
func (c *Conn) Greeting() error {
	if c.state != imapcore.StateGreeting {
		return imapcore.ProtocolErrorf("greeting already read")
	}
	f, err := c.readFrame()
	if err != nil {
		return &imapcore.ConnectionError{Kind: imapcore.ConnFailed, Err: err}
	}
	if len(f) < 2 || frameHead(f) != "*" {
		return &imapcore.ConnectionError{Kind: imapcore.ConnFailed, Err: fmt.Errorf("malformed greeting %v", f)}
	}
	typ, _ := imapcore.TextOf(f[1])
	switch imapcore.StatusType(strings.ToUpper(typ)) {
	case imapcore.StatusOK:
		c.state = imapcore.StateNotAuthenticated
	case imapcore.StatusPreauth:
		c.state = imapcore.StateAuthenticated
	default:
		return &imapcore.ConnectionError{Kind: imapcore.ConnFailed, Err: fmt.Errorf("server refused connection: %v", f)}
	}
	return nil
}

// State returns the connection state.
func (c *Conn) State() imapcore.ConnState { return c.state }

// Mailbox returns the currently selected mailbox, if any.
func (c *Conn) Mailbox() string { return c.mailbox }

func (c *Conn) nextTag() string {
	c.tagN++
	return fmt.Sprintf("TAG%d", c.tagN)
}

func (c *Conn) write(p []byte) error {
	if c.opts.Debug != nil {
		c.opts.Debug.Write(p)
	}
	err := c.s.Write(p)
	if err != nil {
		c.markDead(err)
	}
	return err
}

// markDead drops the connection state when the peer is gone so a tainted
// connection cannot be reused. Timeouts are not fatal: IDLE loops rely on
// read timeouts for cancellation.
func (c *Conn) markDead(err error) {
	var cerr *imapcore.ConnectionError
	if errors.As(err, &cerr) && cerr.Kind == imapcore.ConnClosed {
		c.state = imapcore.StateDisconnected
	}
}

func (c *Conn) readFrame() (imapcore.List, error) {
	v, err := c.p.Parse()
	if err != nil {
		c.markDead(err)
		return nil, err
	}
	return imapcore.ListOf(v), nil
}

// roundTrip dispatches one command and blocks until its tagged status
// arrives. Untagged frames observed on the way accumulate into the response;
// a NO, BAD or BYE status is returned as a *imapcore.ServerError alongside
// the response.
func (c *Conn) roundTrip(name string, fields ...wire.Field) (*Response, error) {
	switch c.state {
	case imapcore.StateDisconnected, imapcore.StateLoggedOut:
		return nil, &imapcore.ConnectionError{Kind: imapcore.ConnClosed, Err: fmt.Errorf("connection is %v", c.state)}
	case imapcore.StateGreeting:
		return nil, imapcore.ProtocolErrorf("greeting not read yet")
	case imapcore.StateIdle:
		return nil, imapcore.ProtocolErrorf("connection is idling; call Done first")
	}

	tag := c.nextTag()
	lines, err := wire.Command(tag, name, fields...)
	if err != nil {
		return nil, err
	}

	resp := &Response{Tag: tag, Command: name}
	for _, line := range lines {
		if err := c.write(line.Data); err != nil {
			return resp, err
		}
		if line.WantContinuation {
			if err := c.awaitContinuation(resp); err != nil {
				return resp, err
			}
		}
	}
	return c.collectTagged(resp)
}

// awaitContinuation reads until the server acknowledges a pending literal
// with "+". Untagged frames are preserved; a tagged status instead of the
// continuation aborts the literal with the classified error.
func (c *Conn) awaitContinuation(resp *Response) error {
	for {
		f, err := c.readFrame()
		if err != nil {
			return err
		}
		switch head := frameHead(f); {
		case head == "+":
			return nil
		case head == "*":
			resp.Untagged = append(resp.Untagged, f)
		case strings.EqualFold(head, resp.Tag):
			if err := classifyTagged(f, resp); err != nil {
				return err
			}
			if resp.Status == imapcore.StatusOK {
				return imapcore.ProtocolErrorf("tagged OK while awaiting continuation")
			}
			return resp.serverError()
		default:
			return imapcore.ProtocolErrorf("expected continuation, got %q", head)
		}
	}
}

// collectTagged reads frames until the response's tag line, accumulating
// untagged data.
func (c *Conn) collectTagged(resp *Response) (*Response, error) {
	for {
		f, err := c.readFrame()
		if err != nil {
			return resp, err
		}
		switch head := frameHead(f); {
		case head == "*":
			resp.Untagged = append(resp.Untagged, f)
		case head == "+":
			return resp, imapcore.ProtocolErrorf("unexpected continuation request")
		case strings.EqualFold(head, resp.Tag):
			if err := classifyTagged(f, resp); err != nil {
				return resp, err
			}
			if resp.Status != imapcore.StatusOK {
				return resp, resp.serverError()
			}
			return resp, nil
		default:
			return resp, imapcore.ProtocolErrorf("response for unknown tag %q", head)
		}
	}
}

// Logout sends LOGOUT, waits for the BYE + tagged OK pair best-effort, and
// closes the stream. Errors during teardown are swallowed; repeated calls
// are no-ops.
func (c *Conn) Logout() error {
	switch c.state {
	case imapcore.StateLoggedOut:
		return nil
	case imapcore.StateDisconnected:
		c.state = imapcore.StateLoggedOut
		c.s.Close()
		return nil
	}
	if c.state == imapcore.StateIdle {
		// protocol-level cancellation of IDLE before LOGOUT
		c.write([]byte("DONE\r\n"))
		c.state = imapcore.StateSelected
	}
	c.roundTrip("LOGOUT")
	c.state = imapcore.StateLoggedOut
	c.mailbox = ""
	c.s.Close()
	return nil
}

// Close abortively drops the connection without a LOGOUT exchange.
func (c *Conn) Close() error {
	if c.state == imapcore.StateDisconnected || c.state == imapcore.StateLoggedOut {
		return nil
	}
	c.state = imapcore.StateDisconnected
	return c.s.Close()
}
