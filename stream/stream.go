// Package stream provides the byte-oriented duplex transport the connection
// engine runs on: deadline-aware reads and writes, in-band TLS upgrade and a
// scriptable test double.
package stream

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	imapcore "github.com/driftmail/go-imapcore"
)

// Transport selects how a connection is established.
type Transport string

const (
	// TransportTCP is a plaintext connection.
	TransportTCP Transport = "tcp"
	// TransportTLS is implicit TLS from the first byte.
	TransportTLS Transport = "tls"
	// TransportSSL is an alias for TransportTLS.
	TransportSSL Transport = "ssl"
	// TransportStartTLS dials plaintext; the connection engine upgrades
	// in-band after a successful STARTTLS command.
	TransportStartTLS Transport = "starttls"
)

// Meta describes how the last I/O operation failed.
type Meta struct {
	TimedOut bool
	EOF      bool
}

// Stream is a duplex byte transport.
//
// ReadExact loops until n bytes are gathered; it never short-returns.
// ReadLine reads through the next '\n', inclusive.
type Stream interface {
	ReadLine() ([]byte, error)
	ReadExact(n int) ([]byte, error)
	Write(p []byte) error
	SetTimeout(d time.Duration)
	StartTLS(cfg *tls.Config) error
	Close() error
	IsOpen() bool
	Meta() Meta
}

// Dial opens a stream to host:port using the given transport. A zero
// timeout disables deadlines.
func Dial(transport Transport, host string, port int, timeout time.Duration, tlsCfg *tls.Config) (Stream, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := &net.Dialer{Timeout: timeout}

	var (
		conn net.Conn
		err  error
	)
	switch transport {
	case TransportTLS, TransportSSL:
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: host}
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	case TransportTCP, TransportStartTLS, "":
		conn, err = dialer.Dial("tcp", addr)
	default:
		return nil, &imapcore.ConnectionError{Kind: imapcore.ConnFailed, Err: fmt.Errorf("unknown transport %q", transport)}
	}
	if err != nil {
		return nil, &imapcore.ConnectionError{Kind: imapcore.ConnFailed, Err: err}
	}
	return NewNet(conn, timeout), nil
}

// NetStream is a Stream over a net.Conn.
type NetStream struct {
	conn    net.Conn
	br      *bufio.Reader
	timeout time.Duration
	meta    Meta
	open    bool
}

// NewNet wraps an established connection.
func NewNet(conn net.Conn, timeout time.Duration) *NetStream {
	return &NetStream{
		conn:    conn,
		br:      bufio.NewReader(conn),
		timeout: timeout,
		open:    true,
	}
}

func (s *NetStream) deadline() time.Time {
	if s.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.timeout)
}

// classify maps an I/O error to the connection error taxonomy and records
// the failure meta.
func (s *NetStream) classify(err error) error {
	s.meta = Meta{}
	var nerr net.Error
	switch {
	case errors.As(err, &nerr) && nerr.Timeout():
		s.meta.TimedOut = true
		return &imapcore.ConnectionError{Kind: imapcore.ConnTimedOut, Err: err}
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed):
		s.meta.EOF = true
		return &imapcore.ConnectionError{Kind: imapcore.ConnClosed, Err: err}
	default:
		return &imapcore.ConnectionError{Kind: imapcore.ConnFailed, Err: err}
	}
}

func (s *NetStream) ReadLine() ([]byte, error) {
	if err := s.conn.SetReadDeadline(s.deadline()); err != nil {
		return nil, s.classify(err)
	}
	line, err := s.br.ReadBytes('\n')
	if err != nil {
		return nil, s.classify(err)
	}
	return line, nil
}

func (s *NetStream) ReadExact(n int) ([]byte, error) {
	if err := s.conn.SetReadDeadline(s.deadline()); err != nil {
		return nil, s.classify(err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.br, buf); err != nil {
		return nil, s.classify(err)
	}
	return buf, nil
}

func (s *NetStream) Write(p []byte) error {
	if err := s.conn.SetWriteDeadline(s.deadline()); err != nil {
		return s.classify(err)
	}
	if _, err := s.conn.Write(p); err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *NetStream) SetTimeout(d time.Duration) { s.timeout = d }

// StartTLS upgrades the connection in-band. Any bytes already buffered were
// read before the upgrade point and would break the handshake.
func (s *NetStream) StartTLS(cfg *tls.Config) error {
	if s.br.Buffered() > 0 {
		return imapcore.ProtocolErrorf("%d bytes buffered before TLS upgrade", s.br.Buffered())
	}
	if cfg == nil {
		cfg = &tls.Config{}
	}
	tlsConn := tls.Client(s.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return &imapcore.ConnectionError{Kind: imapcore.ConnFailed, Err: err}
	}
	s.conn = tlsConn
	s.br.Reset(tlsConn)
	return nil
}

func (s *NetStream) Close() error {
	if !s.open {
		return nil
	}
	s.open = false
	return s.conn.Close()
}

func (s *NetStream) IsOpen() bool { return s.open }

func (s *NetStream) Meta() Meta { return s.meta }
