// Package client sends length-delimited frames to a framer server and
// matches replies to requests.
//
//	c, err := client.Dial(ctx, "tcp://localhost:7000")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	reply, err := c.Request(ctx, []byte{0x01, 0x07}, []byte("ping"))
//
// By default the frame header is the correlation key: a reply is matched to
// the pending request with the same header bytes. WithKeyFunc replaces that
// rule, for example with a sequence number carried in the payload.
package client
