package client

import (
	"crypto/tls"
	"encoding/base64"
	"errors"

	gosasl "github.com/emersion/go-sasl"

	imapcore "github.com/driftmail/go-imapcore"
)

// Login authenticates with the LOGIN command. A NO or BAD status surfaces
// as *imapcore.AuthError carrying the server's text.
func (c *Conn) Login(username, password string) error {
	_, err := c.roundTrip("LOGIN", username, password)
	if err != nil {
		return authErr(err)
	}
	c.state = imapcore.StateAuthenticated
	return nil
}

// Authenticate runs a SASL exchange with the AUTHENTICATE command. The
// initial response, when the mechanism provides one, is sent on the command
// line. Server challenges arrive as "+" continuations; an empty mechanism
// response is sent as a bare continuation line, which is how the XOAUTH2
// error dialogue is acknowledged.
func (c *Conn) Authenticate(saslClient gosasl.Client) error {
	switch c.state {
	case imapcore.StateDisconnected, imapcore.StateLoggedOut, imapcore.StateGreeting, imapcore.StateIdle:
		return imapcore.ProtocolErrorf("cannot authenticate while %v", c.state)
	}

	mech, ir, err := saslClient.Start()
	if err != nil {
		return err
	}

	tag := c.nextTag()
	line := tag + " AUTHENTICATE " + mech
	if ir != nil {
		line += " " + encodeSASL(ir)
	}
	if err := c.write([]byte(line + "\r\n")); err != nil {
		return err
	}

	resp := &Response{Tag: tag, Command: "AUTHENTICATE"}
	for {
		f, err := c.readFrame()
		if err != nil {
			return err
		}
		switch head := frameHead(f); {
		case head == "+":
			challenge, err := decodeSASL(challengeText(f))
			if err != nil {
				return imapcore.BadResponseErrorf("bad SASL challenge: %v", err)
			}
			out, err := saslClient.Next(challenge)
			if err != nil {
				// abort the exchange, then collect the tagged status
				if werr := c.write([]byte("*\r\n")); werr != nil {
					return werr
				}
				if _, cerr := c.collectTagged(resp); cerr != nil {
					return authErr(cerr)
				}
				return &imapcore.AuthError{Err: err}
			}
			var reply string
			if len(out) > 0 {
				reply = encodeSASL(out)
			}
			if err := c.write([]byte(reply + "\r\n")); err != nil {
				return err
			}
		case head == "*":
			resp.Untagged = append(resp.Untagged, f)
		default:
			if err := classifyTagged(f, resp); err != nil {
				return err
			}
			if resp.Status != imapcore.StatusOK {
				return authErr(resp.serverError())
			}
			c.state = imapcore.StateAuthenticated
			return nil
		}
	}
}

// StartTLS issues STARTTLS and upgrades the stream exactly once, after the
// tagged OK and before any further command is written.
func (c *Conn) StartTLS(cfg *tls.Config) error {
	if c.state != imapcore.StateNotAuthenticated {
		return imapcore.ProtocolErrorf("STARTTLS requires the not-authenticated state")
	}
	if _, err := c.roundTrip("STARTTLS"); err != nil {
		var serr *imapcore.ServerError
		if errors.As(err, &serr) {
			return &imapcore.ConnectionError{Kind: imapcore.ConnFailed, Err: serr}
		}
		return err
	}
	if err := c.s.StartTLS(cfg); err != nil {
		c.state = imapcore.StateDisconnected
		return err
	}
	return nil
}

func authErr(err error) error {
	var serr *imapcore.ServerError
	if errors.As(err, &serr) {
		return &imapcore.AuthError{Err: serr}
	}
	return err
}

// encodeSASL renders a SASL payload for the wire; an empty payload is "=".
func encodeSASL(b []byte) string {
	if len(b) == 0 {
		return "="
	}
	return base64.StdEncoding.EncodeToString(b)
}

func decodeSASL(s string) ([]byte, error) {
	if s == "" || s == "=" {
		// an empty challenge is distinct from no challenge
		return []byte{}, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

// challengeText extracts the challenge payload of a "+" frame.
func challengeText(f imapcore.List) string {
	if len(f) < 2 {
		return ""
	}
	s, _ := imapcore.TextOf(f[1])
	return s
}
