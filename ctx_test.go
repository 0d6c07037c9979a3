package octoserve

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

type mockAddr string

func (a mockAddr) Network() string { return "tcp" }
func (a mockAddr) String() string  { return string(a) }

// mockConn is a net.Conn that records writes and reports a fixed remote
// address.
type mockConn struct {
	bytes.Buffer
	remote   net.Addr
	writeErr error
	closed   bool
}

func (c *mockConn) Write(b []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	return c.Buffer.Write(b)
}
func (c *mockConn) Close() error                       { c.closed = true; return nil }
func (c *mockConn) LocalAddr() net.Addr                { return mockAddr("127.0.0.1:8080") }
func (c *mockConn) RemoteAddr() net.Addr               { return c.remote }
func (c *mockConn) SetDeadline(t time.Time) error      { return nil }
func (c *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr net.Addr
		expected   string
	}{
		{"no remote address", nil, "0.0.0.0"},
		{"empty remote address", mockAddr(""), "0.0.0.0"},
		{"address without port", mockAddr("192.168.1.1"), "192.168.1.1"},
		{"address with port", mockAddr("192.168.1.1:8080"), "192.168.1.1"},
		{"IPv6 without port", mockAddr("::1"), "::1"},
		{"IPv6 with port", mockAddr("[::1]:8080"), "::1"},
		{"malformed address", mockAddr("not-an-ip"), "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCtx(&mockConn{remote: tt.remoteAddr})
			if got := c.ClientIP(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestCtxIdentity(t *testing.T) {
	a := newCtx(&mockConn{})
	b := newCtx(&mockConn{})

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected unique connection ids, got %q and %q", a.ID, b.ID)
	}
	if a.Elapsed() < 0 {
		t.Errorf("Elapsed should never be negative, got %v", a.Elapsed())
	}
}

func TestCtxOutcome(t *testing.T) {
	c := newCtx(&mockConn{})
	if c.Outcome() != "ok" {
		t.Errorf("Expected ok, got %s", c.Outcome())
	}

	c.Failed = true
	c.Kind = NotFound
	if c.Outcome() != "not_found" {
		t.Errorf("Expected not_found, got %s", c.Outcome())
	}
}

func TestResponseWriterBuffersUntilFlush(t *testing.T) {
	conn := &mockConn{}
	w := NewResponseWriter(conn)

	w.Write([]byte("HTTP/1.1 200 OK\r\n"))
	if conn.Len() != 0 {
		t.Errorf("Expected nothing on the wire before Flush, got %q", conn.String())
	}
	if !w.Written() || w.Bytes != 17 {
		t.Errorf("Expected 17 bytes recorded, got %d", w.Bytes)
	}

	w.Flush()
	if conn.String() != "HTTP/1.1 200 OK\r\n" {
		t.Errorf("Unexpected wire bytes %q", conn.String())
	}
	if w.Err != nil {
		t.Errorf("Unexpected error %v", w.Err)
	}
}

func TestResponseWriterRecordsFirstError(t *testing.T) {
	broken := errors.New("connection reset by peer")
	conn := &mockConn{writeErr: broken}
	w := NewResponseWriter(conn)

	// Larger than the buffer, so the write reaches the connection.
	payload := make([]byte, DefaultWriteBufferSize*2)
	if _, err := w.Write(payload); err != broken {
		t.Errorf("Expected the connection error, got %v", err)
	}
	if _, err := w.Write([]byte("more")); err != broken {
		t.Errorf("Expected later writes to fail with the first error, got %v", err)
	}
	w.Flush()
	if w.Err != broken {
		t.Errorf("Expected the first error to be kept, got %v", w.Err)
	}
}

func TestServeConnWithMockConn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Root = newTestSite(t)
	srv := NewServer(cfg)
	defer srv.Close()

	conn := &mockConn{remote: mockAddr("10.0.0.7:51234")}
	conn.WriteString("GET /app.js HTTP/1.1\r\n\r\n")
	srv.ServeConn(conn)

	expected := "HTTP/1.1 200 OK\r\nContent-Type: application/javascript\r\nContent-Length: 18\r\n\r\nconsole.log('hi');"
	if conn.String() != expected {
		t.Errorf("Expected %q, got %q", expected, conn.String())
	}
	if !conn.closed {
		t.Error("Expected the connection to be closed")
	}
	if srv.Stats().OK != 1 {
		t.Errorf("Expected one ok response, got %+v", srv.Stats())
	}
}
