package octoserve

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// Ctx is the per-connection state owned by the worker serving it.
type Ctx struct {
	Conn      net.Conn
	ID        string
	StartTime int64
	Writer    *ResponseWriter

	Target string
	Kind   ErrorKind
	Failed bool
}

func newCtx(conn net.Conn) *Ctx {
	return &Ctx{
		Conn:      conn,
		ID:        uuid.New().String(),
		StartTime: time.Now().UnixNano(),
		Writer:    NewResponseWriter(conn),
	}
}

// ClientIP returns the remote host without its port.
func (c *Ctx) ClientIP() string {
	if c.Conn == nil || c.Conn.RemoteAddr() == nil {
		return "0.0.0.0"
	}
	addr := c.Conn.RemoteAddr().String()
	if addr == "" {
		return "0.0.0.0"
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// Elapsed returns the time spent on the connection so far.
func (c *Ctx) Elapsed() time.Duration {
	return time.Duration(time.Now().UnixNano() - c.StartTime)
}

// Outcome names the result of the connection for logs and metrics.
func (c *Ctx) Outcome() string {
	if !c.Failed {
		return "ok"
	}
	return c.Kind.String()
}
