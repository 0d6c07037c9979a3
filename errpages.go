package octoserve

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	ErrorPagesDir = "__errors__"

	badRequestResponse = "HTTP/1.1 400 BAD REQUEST"
)

type errorPage struct {
	file       string
	statusLine string
	fallback   string

	once  sync.Once
	bytes []byte
}

// ErrorPages holds the fully rendered error responses. Each page is read from
// disk the first time it is needed and kept for the lifetime of the value, even
// if the source file later disappears.
type ErrorPages struct {
	root  string
	pages [InternalError + 1]*errorPage
}

// NewErrorPages prepares the error pages found under <root>/__errors__.
func NewErrorPages(root string) *ErrorPages {
	ep := &ErrorPages{root: root}
	ep.pages[NotFound] = &errorPage{
		file:       "404.html",
		statusLine: "HTTP/1.1 404 NOT FOUND",
		fallback:   "<html><body><h1>404</h1></body></html>",
	}
	ep.pages[InternalError] = &errorPage{
		file:       "500.html",
		statusLine: "HTTP/1.1 500 Internal Server Error",
		fallback:   "<html><body><h1>500</h1></body></html>",
	}
	return ep
}

// Bytes returns the raw response written to the client for kind.
func (ep *ErrorPages) Bytes(kind ErrorKind) []byte {
	if kind == ReadFailed {
		return []byte(badRequestResponse)
	}
	if kind != NotFound {
		kind = InternalError
	}

	page := ep.pages[kind]
	page.once.Do(func() {
		page.bytes = ep.render(page)
	})
	return page.bytes
}

func (ep *ErrorPages) render(page *errorPage) []byte {
	path := filepath.Join(ep.root, ErrorPagesDir, page.file)
	body, err := os.ReadFile(path)
	if err != nil {
		logger.Warn().Err(err).Str("file", path).Msg("[octoserve] error page unavailable, using the built-in page")
		body = []byte(page.fallback)
	}
	// Content-Len is the header name these pages have always been served with.
	return []byte(fmt.Sprintf("%s\r\nContent-Len: %d\r\n\r\n%s", page.statusLine, len(body), body))
}
