package client

import (
	"errors"
	"strings"
	"time"

	imapcore "github.com/driftmail/go-imapcore"
)

// pollTimeout bounds the nonblocking read Poll performs while idling.
const pollTimeout = 10 * time.Millisecond

// Idle enters the IDLE push-notification state (RFC 2177). It blocks until
// the server acknowledges with a continuation; afterwards the server may
// deliver untagged notifications, drained with Poll or NextNotification,
// until Done terminates the command.
func (c *Conn) Idle() error {
	if c.state != imapcore.StateSelected {
		return imapcore.ProtocolErrorf("IDLE requires a selected mailbox")
	}
	tag := c.nextTag()
	if err := c.write([]byte(tag + " IDLE\r\n")); err != nil {
		return err
	}
	resp := &Response{Tag: tag, Command: "IDLE"}
	for {
		f, err := c.readFrame()
		if err != nil {
			return err
		}
		switch head := frameHead(f); {
		case head == "+":
			c.state = imapcore.StateIdle
			c.idleTag = tag
			c.queue = append(c.queue, resp.Untagged...)
			return nil
		case head == "*":
			resp.Untagged = append(resp.Untagged, f)
		case strings.EqualFold(head, tag):
			if err := classifyTagged(f, resp); err != nil {
				return err
			}
			return resp.serverError()
		default:
			return imapcore.ProtocolErrorf("unexpected response %q to IDLE", head)
		}
	}
}

// Poll drains pending untagged notifications without blocking. While
// idling it additionally performs a short nonblocking read of the stream;
// a read timeout just means no data was pushed.
func (c *Conn) Poll() ([]imapcore.List, error) {
	out := c.queue
	c.queue = nil

	if c.state != imapcore.StateIdle {
		return out, nil
	}

	c.s.SetTimeout(pollTimeout)
	defer c.s.SetTimeout(c.opts.Timeout)
	for {
		f, err := c.readFrame()
		if err != nil {
			if isTimeout(err) {
				return out, nil
			}
			return out, err
		}
		out = append(out, f)
	}
}

// NextNotification blocks until the server pushes an untagged frame. Only
// valid while idling; callers needing cancellation set a read timeout via
// Options.Timeout and treat a timeout as "retry".
func (c *Conn) NextNotification() (imapcore.List, error) {
	if len(c.queue) > 0 {
		f := c.queue[0]
		c.queue = c.queue[1:]
		return f, nil
	}
	if c.state != imapcore.StateIdle {
		return nil, imapcore.ProtocolErrorf("not idling")
	}
	return c.readFrame()
}

// Done terminates IDLE: it writes DONE and consumes the tagged OK. Untagged
// frames the server interleaves before the acknowledgment — commonly EXISTS
// and EXPUNGE — are preserved and returned.
func (c *Conn) Done() ([]imapcore.List, error) {
	if c.state != imapcore.StateIdle {
		return nil, imapcore.ProtocolErrorf("not idling")
	}
	if err := c.write([]byte("DONE\r\n")); err != nil {
		return nil, err
	}
	resp := &Response{Tag: c.idleTag, Command: "IDLE"}
	resp.Untagged = c.queue
	c.queue = nil
	if _, err := c.collectTagged(resp); err != nil {
		return resp.Untagged, err
	}
	c.state = imapcore.StateSelected
	c.idleTag = ""
	return resp.Untagged, nil
}

func isTimeout(err error) bool {
	var cerr *imapcore.ConnectionError
	return errors.As(err, &cerr) && cerr.Kind == imapcore.ConnTimedOut
}
