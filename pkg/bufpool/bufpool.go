// Package bufpool provides sync.Pool-backed buffer reuse for hot paths
// like favicon hashing, where every probe builds the same transient
// buffers.
package bufpool

import (
	"bytes"
	"strings"
	"sync"
)

// maxPooledSize caps what goes back into a pool. Oversized buffers are
// dropped so one large response does not pin memory forever.
const maxPooledSize = 64 * 1024

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

var builderPool = sync.Pool{
	New: func() any { return new(strings.Builder) },
}

// Get returns an empty bytes.Buffer from the pool.
func Get() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool. Nil and oversized buffers are
// dropped.
func Put(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledSize {
		return
	}
	buf.Reset()
	bufferPool.Put(buf)
}

// GetString returns an empty strings.Builder from the pool.
func GetString() *strings.Builder {
	sb := builderPool.Get().(*strings.Builder)
	sb.Reset()
	return sb
}

// PutString returns a builder to the pool. Nil and oversized builders
// are dropped.
func PutString(sb *strings.Builder) {
	if sb == nil || sb.Cap() > maxPooledSize {
		return
	}
	sb.Reset()
	builderPool.Put(sb)
}
