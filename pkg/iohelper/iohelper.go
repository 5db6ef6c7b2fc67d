// Package iohelper bounds reads of untrusted HTTP response bodies.
// Every probe reads bodies from hosts it does not control; unlimited
// io.ReadAll would let one hostile response exhaust memory.
package iohelper

import "io"

// drainLimit caps how much DrainAndClose reads before closing.
const drainLimit = 64 * 1024

// ReadBody reads at most maxSize bytes from r. A nil reader yields an
// empty slice.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose consumes what remains of r and closes it when it is a
// ReadCloser, so the underlying connection can go back to the keep-alive
// pool. Always returns nil for use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(r, drainLimit))
	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
