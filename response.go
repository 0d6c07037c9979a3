package octoserve

import (
	"bytes"
	"io"
	"strconv"
)

// Protocol is the HTTP version written on the status line.
type Protocol int

const (
	ProtocolHTTP09 Protocol = iota
	ProtocolHTTP10
	ProtocolHTTP11
	ProtocolHTTP20
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP09:
		return "HTTP/0.9"
	case ProtocolHTTP10:
		return "HTTP/1.0"
	case ProtocolHTTP11:
		return "HTTP/1.1"
	case ProtocolHTTP20:
		return "HTTP/2.0"
	default:
		return "HTTP/1.1"
	}
}

// Status is the response status the server knows how to produce.
type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusInternalServerError
)

// Line returns the code and reason phrase, e.g. "404 Not Found".
func (s Status) Line() string {
	switch s {
	case StatusNotFound:
		return "404 Not Found"
	case StatusInternalServerError:
		return "500 Internal Server Error"
	default:
		return "200 OK"
	}
}

// Code returns the numeric status code.
func (s Status) Code() int {
	switch s {
	case StatusNotFound:
		return 404
	case StatusInternalServerError:
		return 500
	default:
		return 200
	}
}

// Response is a single HTTP response owned by the worker handling the connection.
//
// The payload and the Content-Length option are independent: SetPayload never
// recomputes the length, so callers either set both or use SetBody.
type Response struct {
	protocol Protocol
	status   Status
	options  [headerCount]string
	present  [headerCount]bool
	payload  []byte
}

// NewResponse creates a 200 OK response with no options and an empty payload.
// Protocols other than HTTP/1.1 are accepted but logged as unsupported.
func NewResponse(protocol Protocol) *Response {
	if protocol != ProtocolHTTP11 {
		logger.Warn().
			Str("protocol", protocol.String()).
			Msg("[octoserve] protocol is not directly supported, only proceed if you know what you are doing")
	}
	return &Response{
		protocol: protocol,
		status:   StatusOK,
		payload:  []byte{},
	}
}

func (r *Response) Protocol() Protocol { return r.protocol }

func (r *Response) Status() Status { return r.status }

func (r *Response) SetStatus(status Status) {
	r.status = status
}

// SetOption inserts or replaces a header value.
func (r *Response) SetOption(name HeaderName, value string) {
	if name < 0 || name >= headerCount {
		return
	}
	r.options[name] = value
	r.present[name] = true
}

// Option returns the header value and whether it was set.
func (r *Response) Option(name HeaderName) (string, bool) {
	if name < 0 || name >= headerCount {
		return "", false
	}
	return r.options[name], r.present[name]
}

// SetPayload replaces the payload. Content-Length is left untouched.
func (r *Response) SetPayload(payload []byte) {
	r.payload = payload
}

// SetBody replaces the payload and sets Content-Length to match it.
func (r *Response) SetBody(payload []byte) {
	r.SetOption(HeaderContentLength, strconv.Itoa(len(payload)))
	r.SetPayload(payload)
}

func (r *Response) Payload() []byte { return r.payload }

// SerializeHeader renders the status line and header block, terminated by an
// empty line.
func (r *Response) SerializeHeader() []byte {
	var b bytes.Buffer
	b.WriteString(r.protocol.String())
	b.WriteByte(' ')
	b.WriteString(r.status.Line())
	b.Write(crlf)
	for name := HeaderName(0); name < headerCount; name++ {
		if !r.present[name] {
			continue
		}
		b.WriteString(name.String())
		b.WriteString(": ")
		b.WriteString(r.options[name])
		b.Write(crlf)
	}
	b.Write(crlf)
	return b.Bytes()
}

// Transmit writes the header block and the payload to w. Delivery is best
// effort: write errors are logged and dropped.
func (r *Response) Transmit(w io.Writer) {
	if _, err := w.Write(r.SerializeHeader()); err != nil {
		logger.Debug().Err(err).Msg("[octoserve] failed to write response header")
		return
	}
	if len(r.payload) == 0 {
		return
	}
	if _, err := w.Write(r.payload); err != nil {
		logger.Debug().Err(err).Msg("[octoserve] failed to write response payload")
	}
}
