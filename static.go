package octoserve

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// contentTypes maps every served extension to its content type. Targets
// without an extension are HTML pages.
var contentTypes = map[string]string{
	"html": ContentTypeHTML,
	"css":  ContentTypeCSS,
	"png":  ContentTypePNG,
	"ico":  ContentTypeIcon,
	"js":   ContentTypeJavaScript,
	"wasm": ContentTypeWasm,
}

// extension returns the text after the last '.' of the final path component.
// A component that only starts with a dot has no extension.
func extension(target string) (string, bool) {
	base := path.Base(target)
	if base == "/" || base == "." || base == ".." {
		return "", false
	}
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		return "", false
	}
	return base[idx+1:], true
}

// getContentType returns the content type for a request target, or false when
// the extension is not served.
func getContentType(target string) (string, bool) {
	ext, ok := extension(target)
	if !ok {
		return ContentTypeHTML, true
	}
	contentType, ok := contentTypes[ext]
	return contentType, ok
}

// pageTarget turns a request for an HTML page into the file that holds it:
// "/" becomes the home page and a missing .html suffix is added.
func pageTarget(target, homeName string) string {
	if target == "/" {
		target = "/" + homeName
	}
	if !strings.HasSuffix(target, ".html") {
		target += ".html"
	}
	return target
}

// fsPath maps a request target under root. The target is cleaned as a rooted
// path, so ".." segments cannot climb above root.
func fsPath(root, target string) string {
	return filepath.Join(root, filepath.FromSlash(path.Clean("/"+target)))
}

// readFile loads the whole file. Failing to open it is NotFound, failing to
// read it once open is InternalError.
func readFile(fullPath, target string) ([]byte, error) {
	file, err := os.Open(fullPath)
	if err != nil {
		reqErr := wrapRequestError(err, NotFound, "failed to open file")
		reqErr.Path = target
		return nil, reqErr
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		reqErr := wrapRequestError(err, InternalError, "failed to read file")
		reqErr.Path = target
		return nil, reqErr
	}
	return content, nil
}
