package iohelper

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestReadBody_Limits(t *testing.T) {
	data, err := ReadBody(strings.NewReader("hello world"), 5)
	if err != nil {
		t.Fatalf("ReadBody() error: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("ReadBody() = %q, want %q", data, "hello")
	}
}

func TestReadBody_NilReader(t *testing.T) {
	data, err := ReadBody(nil, 100)
	if err != nil {
		t.Fatalf("ReadBody(nil) error: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("ReadBody(nil) = %q, want empty", data)
	}
}

type trackingCloser struct {
	io.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestDrainAndClose(t *testing.T) {
	rc := &trackingCloser{Reader: bytes.NewReader(make([]byte, 1024))}
	if err := DrainAndClose(rc); err != nil {
		t.Fatalf("DrainAndClose() error: %v", err)
	}
	if !rc.closed {
		t.Error("DrainAndClose() did not close the reader")
	}

	// Remaining data was consumed.
	n, _ := rc.Read(make([]byte, 1))
	if n != 0 {
		t.Error("DrainAndClose() left unread data")
	}
}

func TestDrainAndClose_PlainReader(t *testing.T) {
	// A non-closer reader is drained without panic.
	if err := DrainAndClose(strings.NewReader("leftover")); err != nil {
		t.Errorf("DrainAndClose() error: %v", err)
	}
	if err := DrainAndClose(nil); err != nil {
		t.Errorf("DrainAndClose(nil) error: %v", err)
	}
}
