package octoserve

import (
	"bufio"
	"io"
	"strings"
)

// MaxHeaderBytes caps how much of a request is read before it is rejected.
const MaxHeaderBytes = 1 << 20

// Router turns one raw request into a Response or a *RequestError.
type Router struct {
	root           string
	homeName       string
	maxHeaderBytes int64
}

func NewRouter(cfg *Config) *Router {
	return &Router{
		root:           cfg.Root,
		homeName:       cfg.HomeName,
		maxHeaderBytes: MaxHeaderBytes,
	}
}

// Route reads a request from r and builds the response for its target.
func (rt *Router) Route(r io.Reader) (*Response, error) {
	target, err := rt.ReadTarget(r)
	if err != nil {
		return nil, err
	}
	return rt.Serve(target)
}

// ReadTarget reads the request line and header block from r and returns the
// request target.
func (rt *Router) ReadTarget(r io.Reader) (string, error) {
	return readRequestTarget(r, rt.maxHeaderBytes)
}

// Serve builds the response for a request target.
func (rt *Router) Serve(target string) (*Response, error) {
	contentType, ok := getContentType(target)
	if !ok {
		reqErr := newRequestError(InternalError, "unsupported file extension")
		reqErr.Path = target
		return nil, reqErr
	}
	if contentType == ContentTypeHTML {
		target = pageTarget(target, rt.homeName)
	}

	response := NewResponse(ProtocolHTTP11)
	response.SetOption(HeaderContentType, contentType)

	content, err := readFile(fsPath(rt.root, target), target)
	if err != nil {
		return nil, err
	}
	response.SetBody(content)
	return response, nil
}

// readRequestTarget consumes the request line and header block and returns the
// second token of the request line. Headers are read but not interpreted.
func readRequestTarget(r io.Reader, max int64) (string, error) {
	lr := &io.LimitedReader{R: r, N: max}
	br := bufio.NewReader(lr)

	var requestLine string
	first := true
	for {
		raw, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", wrapRequestError(err, ReadFailed, "failed to read request")
		}
		if err == io.EOF && lr.N <= 0 {
			return "", newRequestError(ReadFailed, "request header too large")
		}

		line := strings.TrimRight(raw, "\r\n")
		if line == "" {
			break
		}
		if first {
			requestLine = line
			first = false
		}
		if err == io.EOF {
			break
		}
	}

	fields := strings.Fields(requestLine)
	if len(fields) < 2 {
		return "", newRequestError(ReadFailed, "missing request target")
	}
	return fields[1], nil
}
