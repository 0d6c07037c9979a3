package octoserve

import (
	"bufio"
	"io"
)

const DefaultWriteBufferSize = 4096

// ResponseWriter buffers writes to a connection and remembers how many bytes
// went out and the first error hit.
type ResponseWriter struct {
	w     *bufio.Writer
	Bytes int64
	Err   error
}

func NewResponseWriter(w io.Writer) *ResponseWriter {
	return &ResponseWriter{
		w: bufio.NewWriterSize(w, DefaultWriteBufferSize),
	}
}

func (w *ResponseWriter) Write(data []byte) (int, error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err := w.w.Write(data)
	w.Bytes += int64(n)
	if err != nil {
		w.Err = err
	}
	return n, err
}

// Flush pushes buffered bytes to the connection. Errors are recorded, not
// returned.
func (w *ResponseWriter) Flush() {
	if err := w.w.Flush(); err != nil && w.Err == nil {
		w.Err = err
	}
}

// Written reports whether anything has been written.
func (w *ResponseWriter) Written() bool {
	return w.Bytes > 0
}
