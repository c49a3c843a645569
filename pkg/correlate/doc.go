// Package correlate pairs responses with the requests that caused them.
//
// Request/response protocols over a framed stream carry a key in each frame
// (a sequence number, a transaction ID). The sender registers the key with
// a Table before writing the request; whoever reads responses extracts the
// key and calls Match. Entries that never see a response are failed with
// ErrTimeout.
//
//	t := correlate.New[uint16, framing.Frame]()
//	ch, err := t.Enqueue(seq, 5*time.Second)
//	// write the request
//	r := <-ch
//	if r.Err != nil {
//	    // timed out, canceled or closed
//	}
package correlate
