// Package sasl provides SASL mechanisms for the connection engine beyond
// what the go-sasl library ships.
package sasl

import (
	gosasl "github.com/emersion/go-sasl"
)

type xoauth2Client struct {
	username string
	token    string
}

func (a *xoauth2Client) Start() (mech string, ir []byte, err error) {
	ir = []byte("user=" + a.username + "\x01auth=Bearer " + a.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

// Next handles the error challenge XOAUTH2 servers send on rejection. The
// protocol expects an empty continuation line back, after which the server
// issues the tagged NO.
func (a *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	return nil, nil
}

// NewXoauth2Client returns an XOAUTH2 mechanism client, as described in
// https://developers.google.com/gmail/imap/xoauth2-protocol.
func NewXoauth2Client(username, token string) gosasl.Client {
	return &xoauth2Client{username: username, token: token}
}
