package octoserve

// HeaderName is the closed set of response headers the server emits.
type HeaderName int

const (
	HeaderContentType HeaderName = iota
	HeaderContentLength

	headerCount
)

var headerNames = [headerCount]string{
	HeaderContentType:   "Content-Type",
	HeaderContentLength: "Content-Length",
}

func (h HeaderName) String() string {
	if h < 0 || h >= headerCount {
		return "Unknown"
	}
	return headerNames[h]
}

// ContentType constants
const (
	ContentTypeHTML       = "text/html"
	ContentTypeCSS        = "text/css"
	ContentTypePNG        = "image/png"
	ContentTypeIcon       = "image/x-icon"
	ContentTypeJavaScript = "application/javascript"
	ContentTypeWasm       = "application/wasm"
)

var crlf = []byte("\r\n")
