package mailstore

import "github.com/emersion/go-sasl"

// xoauth2Client implements sasl.Client for Gmail's XOAUTH2 mechanism, since
// go-sasl only ships PLAIN/LOGIN/ANONYMOUS/EXTERNAL out of the box.
// Grounded on the teacher's minimal, hand-rolled auth helpers in
// backends/p_redis.go (constructing a protocol exchange by hand rather than
// pulling in a full client library for one mechanism).
type xoauth2Client struct {
	username string
	token    string
}

func (c *xoauth2Client) Start() (mech string, ir []byte, err error) {
	ir = []byte("user=" + c.username + "\x01auth=Bearer " + c.token + "\x01\x01")
	return "XOAUTH2", ir, nil
}

func (c *xoauth2Client) Next(challenge []byte) ([]byte, error) {
	// The server sends at most one error challenge before failing the
	// connection; nothing to send back.
	return nil, nil
}

var _ sasl.Client = (*xoauth2Client)(nil)
